/*
Package factory provides JSON to Go benefit conversion.

PURPOSE:
  Converts JSON benefit definitions into claim.Benefit records and their
  rule provider chains. This enables product configuration without code
  changes - actuaries can define benefits in JSON, and the factory creates
  the proper Go structs and rules.

WHY JSON?
  - Non-developers can modify benefit terms
  - Easy integration with an admin UI
  - Version control for product definitions
  - Database storage of benefit configs

JSON SCHEMA:
  {
    "id": "ben-daily-std",
    "code": "daily_allowance",
    "name": "Daily Allowance",
    "kind": "period",
    "currency": "EUR",
    "eligibility": {
      "covered_loss_codes": ["temporary_incapacity"],
      "min_loss_days": 3
    },
    "indemnification": {
      "daily_amount": "52.30",
      "deductible_days": 3,
      "max_days_paid": 365,
      "annual_revaluation_rate": "0.02",
      "expense_reimbursement_rate": "0.8"
    }
  }

KEY FEATURES:
  - Validates JSON structure
  - Sets sensible defaults
  - Builds the rule provider chain for the calculator
  - Catalog keeps chains addressable by benefit code, so services loaded
    from storage get their chains reattached before calculation

USAGE:
  f := factory.NewBenefitFactory()
  benefit, chain, err := f.ParseBenefit(jsonString)

  catalog := factory.NewCatalog()
  catalog.Register(benefit, chain)
  catalog.Reattach(claimRecord)

SEE ALSO:
  - claim/rules.go: Rule and ProviderChain definitions
  - rules.go: The concrete rule implementations
  - presets.go: Go-based benefit configurations
*/
package factory

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/warp/claims-engine/claim"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// BenefitJSON is the JSON representation of a benefit and its rules.
type BenefitJSON struct {
	ID              string               `json:"id"`
	Code            string               `json:"code"`
	Name            string               `json:"name"`
	Kind            string               `json:"kind"` // capital, period, annuity
	Currency        string               `json:"currency"`
	Eligibility     *EligibilityJSON     `json:"eligibility,omitempty"`
	Indemnification *IndemnificationJSON `json:"indemnification,omitempty"`
}

// EligibilityJSON represents eligibility restrictions. Absent restrictions
// mean the benefit always pays.
type EligibilityJSON struct {
	CoveredLossCodes []string `json:"covered_loss_codes,omitempty"`
	MinLossDays      int      `json:"min_loss_days,omitempty"`
}

// IndemnificationJSON represents the compensation terms. Decimal fields are
// strings to keep exact precision through the JSON round trip.
type IndemnificationJSON struct {
	DailyAmount              string `json:"daily_amount,omitempty"`
	CapitalAmount            string `json:"capital_amount,omitempty"`
	MonthlyAmount            string `json:"monthly_amount,omitempty"`
	DeductibleDays           int    `json:"deductible_days,omitempty"`
	MaxDaysPaid              int    `json:"max_days_paid,omitempty"`
	AnnualRevaluationRate    string `json:"annual_revaluation_rate,omitempty"`
	ExpenseReimbursementRate string `json:"expense_reimbursement_rate,omitempty"`
}

// =============================================================================
// BENEFIT FACTORY
// =============================================================================

// BenefitFactory converts JSON benefit definitions to Go structs.
type BenefitFactory struct{}

// NewBenefitFactory creates a new benefit factory.
func NewBenefitFactory() *BenefitFactory {
	return &BenefitFactory{}
}

// ParseBenefit parses a JSON string into a Benefit and its rule chain.
func (f *BenefitFactory) ParseBenefit(jsonStr string) (claim.Benefit, claim.ProviderChain, error) {
	var bj BenefitJSON
	if err := json.Unmarshal([]byte(jsonStr), &bj); err != nil {
		return claim.Benefit{}, nil, fmt.Errorf("failed to parse benefit JSON: %w", err)
	}
	return f.FromJSON(bj)
}

// FromJSON converts BenefitJSON to claim.Benefit and a provider chain.
func (f *BenefitFactory) FromJSON(bj BenefitJSON) (claim.Benefit, claim.ProviderChain, error) {
	benefit := claim.Benefit{
		ID:   claim.BenefitID(bj.ID),
		Code: bj.Code,
		Name: bj.Name,
		Kind: parseKind(bj.Kind),
	}

	rules := make(map[claim.RuleKind]claim.Rule)
	if bj.Eligibility != nil {
		rules[claim.RuleEligibility] = &EligibilityRule{
			CoveredLossCodes: bj.Eligibility.CoveredLossCodes,
			MinLossDays:      bj.Eligibility.MinLossDays,
		}
	}
	if bj.Indemnification != nil {
		rule, err := parseIndemnificationRule(benefit.Kind, claim.Currency(bj.Currency), *bj.Indemnification)
		if err != nil {
			return claim.Benefit{}, nil, err
		}
		rules[claim.RuleIndemnification] = rule
	}

	chain := claim.ProviderChain{&claim.StaticProvider{Rules: rules}}
	return benefit, chain, nil
}

func parseKind(s string) claim.IndemnificationKind {
	switch s {
	case "capital":
		return claim.KindCapital
	case "annuity":
		return claim.KindAnnuity
	default:
		return claim.KindPeriod
	}
}

func parseIndemnificationRule(kind claim.IndemnificationKind, currency claim.Currency, ij IndemnificationJSON) (claim.Rule, error) {
	switch kind {
	case claim.KindCapital:
		amount, err := parseDecimal(ij.CapitalAmount, "capital_amount")
		if err != nil {
			return nil, err
		}
		return &CapitalRule{Amount: amount, Currency: currency}, nil

	case claim.KindAnnuity:
		amount, err := parseDecimal(ij.MonthlyAmount, "monthly_amount")
		if err != nil {
			return nil, err
		}
		return &AnnuityRule{MonthlyAmount: amount, Currency: currency}, nil

	default:
		daily, err := parseDecimal(ij.DailyAmount, "daily_amount")
		if err != nil {
			return nil, err
		}
		rule := &DailyBenefitRule{
			DailyAmount:    daily,
			Currency:       currency,
			DeductibleDays: ij.DeductibleDays,
			MaxDaysPaid:    ij.MaxDaysPaid,
		}
		if ij.AnnualRevaluationRate != "" {
			rate, err := parseDecimal(ij.AnnualRevaluationRate, "annual_revaluation_rate")
			if err != nil {
				return nil, err
			}
			rule.AnnualRevaluationRate = rate
		}
		if ij.ExpenseReimbursementRate != "" {
			rate, err := parseDecimal(ij.ExpenseReimbursementRate, "expense_reimbursement_rate")
			if err != nil {
				return nil, err
			}
			rule.ExpenseReimbursementRate = rate
		}
		return rule, nil
	}
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("missing required field %s", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}

// =============================================================================
// CATALOG - Benefit registry with chain reattachment
// =============================================================================

// Catalog keeps registered benefits and their rule chains addressable by
// code. Storage does not persist rule chains, so claims loaded from a store
// pass through Reattach before any calculation.
type Catalog struct {
	benefits map[string]claim.Benefit
	chains   map[string]claim.ProviderChain
}

func NewCatalog() *Catalog {
	return &Catalog{
		benefits: make(map[string]claim.Benefit),
		chains:   make(map[string]claim.ProviderChain),
	}
}

// Register adds a benefit and its chain to the catalog.
func (c *Catalog) Register(benefit claim.Benefit, chain claim.ProviderChain) {
	c.benefits[benefit.Code] = benefit
	c.chains[benefit.Code] = chain
}

// Benefit looks up a registered benefit by code.
func (c *Catalog) Benefit(code string) (claim.Benefit, bool) {
	b, ok := c.benefits[code]
	return b, ok
}

// Benefits returns every registered benefit.
func (c *Catalog) Benefits() []claim.Benefit {
	out := make([]claim.Benefit, 0, len(c.benefits))
	for _, b := range c.benefits {
		out = append(out, b)
	}
	return out
}

// Chains returns the chain map keyed by benefit ID, the shape the loss
// service factory consumes.
func (c *Catalog) Chains() map[claim.BenefitID]claim.ProviderChain {
	out := make(map[claim.BenefitID]claim.ProviderChain, len(c.chains))
	for code, chain := range c.chains {
		out[c.benefits[code].ID] = chain
	}
	return out
}

// Reattach restores the rule chains of every service in the claim graph.
func (c *Catalog) Reattach(cl *claim.Claim) {
	for _, loss := range cl.Losses {
		for _, svc := range loss.Services {
			if chain, ok := c.chains[svc.Benefit.Code]; ok {
				svc.Rules = chain
			}
		}
	}
}
