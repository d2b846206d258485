/*
Package claim provides the core indemnification engine.

PURPOSE:
  This package contains the domain model and algorithms for computing the
  compensation owed for an insured loss, reconciling it against amounts
  already paid, and rolling the result up into claim-level status
  indicators that drive downstream workflow.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A monetary amount with a currency
  - Claim / Loss: A declared insured event and its container
  - DeliveredService: The pairing of a Loss with a contractual benefit
  - Indemnification: A computed or manually entered compensation record
  - DetailLine: One itemized component of an Indemnification

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing record references
  3. Replaceability: Indemnifications in status "calculated" are transient
     and fully replaced by the next calculation run, never merged
  4. Derived values: DetailLine.Amount and claim sub-status are always
     recomputed from their inputs, never independently authoritative

USAGE:
  svc := loss.InitDeliveredServices(option, benefits, chains)[0]
  ok, errs := calculator.Calculate(ctx, svc)

SEE ALSO:
  - calculator.go: The indemnification calculation algorithm
  - status.go: Validation state machine and sub-status aggregation
  - selector.go: Batch filter grammar for bulk validate/reject
*/
package claim

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Amount with currency
// =============================================================================

type Currency string

type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

func NewMoney(value string, currency Currency) Money {
	d, err := decimal.NewFromString(value)
	if err != nil {
		d = decimal.Zero
	}
	return Money{Amount: d, Currency: currency}
}

func ZeroMoney(currency Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) Add(d decimal.Decimal) Money { return Money{Amount: m.Amount.Add(d), Currency: m.Currency} }
func (m Money) IsZero() bool                { return m.Amount.IsZero() }
func (m Money) IsPositive() bool            { return m.Amount.IsPositive() }
func (m Money) Neg() Money                  { return Money{Amount: m.Amount.Neg(), Currency: m.Currency} }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClaimID string
type LossID string
type ServiceID string
type IndemnificationID string
type DetailLineID string
type PartyID string
type BenefitID string
type OptionID string

// =============================================================================
// PARTIES AND CONTRACT REFERENCES
// =============================================================================

// Party is a person or organization referenced by the claim (claimant,
// beneficiary, policy owner). The full party model lives outside the engine.
type Party struct {
	ID   PartyID
	Name string
}

// Option is the subscribed contractual option a Delivered Service binds to.
// It carries everything the calculator needs from the contract side.
type Option struct {
	ID           OptionID
	MainCurrency Currency
	PolicyOwner  Party
	CoveredData  string
}

// IndemnificationKind is derived from the benefit: a capital benefit pays
// once, a period benefit pays over a date range, an annuity pays repeatedly.
type IndemnificationKind string

const (
	KindCapital IndemnificationKind = "capital"
	KindPeriod  IndemnificationKind = "period"
	KindAnnuity IndemnificationKind = "annuity"
)

// Benefit identifies the contractual benefit being delivered.
type Benefit struct {
	ID   BenefitID
	Code string
	Name string
	Kind IndemnificationKind
}

// Expense is a cost linked to a Delivered Service. Expenses may be incurred
// in currencies other than the option's main currency; those currencies are
// part of the calculation set.
type Expense struct {
	Amount Money
	Label  string
}

// =============================================================================
// CLAIM - Top-level container
// =============================================================================

type ClaimStatus string

const (
	ClaimOpen     ClaimStatus = "open"
	ClaimClosed   ClaimStatus = "closed"
	ClaimReopened ClaimStatus = "reopened"
)

type ReopenedReason string

const (
	ReopenedRelapse        ReopenedReason = "relapse"
	ReopenedReclamation    ReopenedReason = "reclamation"
	ReopenedRegularization ReopenedReason = "regularization"
)

type Claim struct {
	ID              ClaimID
	Number          string
	Status          ClaimStatus
	SubStatus       SubStatus
	ReopenedReason  ReopenedReason
	DeclarationDate Date
	EndDate         *Date
	Claimant        Party
	Losses          []*Loss
}

// =============================================================================
// LOSS - A single declared insured event
// =============================================================================

// LossDescriptor categorizes the loss. WithEndDate marks descriptors that
// mandate an end date on the loss (e.g. temporary incapacity).
type LossDescriptor struct {
	Code        string
	Name        string
	WithEndDate bool
}

// EventDescriptor categorizes the triggering event (accident, illness...).
type EventDescriptor struct {
	Code string
	Name string
}

type Loss struct {
	ID         LossID
	Claim      *Claim
	StartDate  Date
	EndDate    *Date
	Descriptor LossDescriptor
	Event      EventDescriptor

	// MainLoss links a relapse loss back to the loss it relapses from.
	// INVARIANT: a relapse loss always references a main loss of the
	// same claim.
	MainLoss  *Loss
	SubLosses []*Loss

	Services []*DeliveredService
}

// =============================================================================
// DELIVERED SERVICE - Loss x benefit, owner of the calculation
// =============================================================================

type ServiceStatus string

const (
	ServiceApplicable  ServiceStatus = "applicable"
	ServiceNotEligible ServiceStatus = "not_eligible"
	ServiceCalculated  ServiceStatus = "calculated"
	ServiceDelivered   ServiceStatus = "delivered"
)

type DeliveredService struct {
	ID      ServiceID
	Loss    *Loss
	Option  Option
	Benefit Benefit
	Status  ServiceStatus

	ComplementaryData map[string]string
	Expenses          []Expense

	// Rules resolves the eligibility and indemnification rules for this
	// service, in priority order (option before coverage before product).
	Rules ProviderChain

	// Indemnifications is kept ordered by start date.
	// INVARIANT: members in status "calculated" are transient results that
	// the next calculation run fully replaces, never merges.
	Indemnifications []*Indemnification
}

// MainCurrency is the currency indemnifications are settled in.
func (s *DeliveredService) MainCurrency() Currency {
	return s.Option.MainCurrency
}

// CurrenciesInPlay returns the distinct currencies a calculation must cover:
// the main currency plus every currency present on linked expenses.
func (s *DeliveredService) CurrenciesInPlay() []Currency {
	seen := map[Currency]bool{s.MainCurrency(): true}
	currencies := []Currency{s.MainCurrency()}
	for _, e := range s.Expenses {
		if !seen[e.Amount.Currency] {
			seen[e.Amount.Currency] = true
			currencies = append(currencies, e.Amount.Currency)
		}
	}
	return currencies
}

// =============================================================================
// INDEMNIFICATION - A compensation record
// =============================================================================

type IndemnificationStatus string

const (
	StatusCalculated IndemnificationStatus = "calculated"
	StatusValidated  IndemnificationStatus = "validated"
	StatusRejected   IndemnificationStatus = "rejected"
	StatusPaid       IndemnificationStatus = "paid"
)

type Indemnification struct {
	ID      IndemnificationID
	Service *DeliveredService
	Kind    IndemnificationKind

	// StartDate/EndDate are meaningful only for the period kind.
	StartDate Date
	EndDate   Date

	Status IndemnificationStatus

	// Amount is currency-rounded, in the service's main currency.
	Amount Money

	// LocalAmount is set only when the rule computed in a currency other
	// than the main one; Amount then holds the converted value.
	LocalAmount *Money

	Beneficiary Party
	Customer    Party

	// Manual marks user-entered overrides the calculator must never
	// silently overwrite.
	Manual bool

	Details []*DetailLine
}

// CurrencyInPlay is the currency this record was computed in: the local
// currency when set, the service's main currency otherwise.
func (i *Indemnification) CurrencyInPlay() Currency {
	if i.LocalAmount != nil {
		return i.LocalAmount.Currency
	}
	return i.Amount.Currency
}

// AmountIn returns the amount expressed in the given currency, when this
// record was computed in it. Zero otherwise.
func (i *Indemnification) AmountIn(currency Currency) decimal.Decimal {
	if i.LocalAmount != nil {
		if i.LocalAmount.Currency == currency {
			return i.LocalAmount.Amount
		}
		return decimal.Zero
	}
	if i.Amount.Currency == currency {
		return i.Amount.Amount
	}
	return decimal.Zero
}

// =============================================================================
// DETAIL LINE - One itemized component of an indemnification
// =============================================================================

// DetailKind enumerates detail line categories. The declaration order is
// significant: detail lines are built and rolled up in this order, and the
// indemnification end date is the end date of the last line processed.
type DetailKind string

const (
	DetailWaitingPeriod  DetailKind = "waiting_period"
	DetailDeductible     DetailKind = "deductible"
	DetailBenefit        DetailKind = "benefit"
	DetailLimit          DetailKind = "limit"
	DetailRegularization DetailKind = "regularization"
)

// DetailKindOrder is the fixed enumeration order for detail construction.
var DetailKindOrder = []DetailKind{
	DetailWaitingPeriod,
	DetailDeductible,
	DetailBenefit,
	DetailLimit,
	DetailRegularization,
}

type DetailLine struct {
	ID              DetailLineID
	Indemnification *Indemnification
	Kind            DetailKind
	StartDate       *Date
	EndDate         *Date
	AmountPerUnit   decimal.Decimal
	UnitCount       decimal.Decimal

	// Amount is always the product AmountPerUnit x UnitCount, set by
	// ComputeAmount. Never assigned independently.
	Amount decimal.Decimal
}

// ComputeAmount recomputes the derived amount from its two inputs.
func (d *DetailLine) ComputeAmount() {
	d.Amount = d.AmountPerUnit.Mul(d.UnitCount)
}
