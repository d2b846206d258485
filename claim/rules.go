/*
rules.go - Interface to the external, declaratively-configured rule evaluator

PURPOSE:
  Rule evaluation is an opaque call: the engine hands a structured context
  to a rule and gets back either an eligibility verdict or detail-line
  groups. The rule language itself lives outside this module.

RULE RESOLUTION:
  Which level of the product hierarchy (option, coverage, product) defines
  a rule kind is resolved through an explicit, priority-ordered provider
  chain supplied at service construction. The first provider that has a
  rule of the requested kind wins. There is no runtime ancestor probing.

DEFAULT ELIGIBILITY:
  A service whose chain defines no eligibility rule is eligible. Benefits
  without configured restrictions pay out.

SEE ALSO:
  - calculator.go: Invokes the resolved rules
  - factory/: Concrete fixture rules for demos and tests
*/
package claim

import "github.com/shopspring/decimal"

// =============================================================================
// RULE KINDS AND CONTEXT
// =============================================================================

type RuleKind string

const (
	RuleEligibility     RuleKind = "eligibility"
	RuleIndemnification RuleKind = "indemnification"
)

// RuleContext carries everything a rule may consult. The evaluation date is
// the loss start date so the rules in force when the loss occurred apply.
type RuleContext struct {
	EvaluationDate Date
	StartDate      Date
	EndDate        *Date
	Loss           *Loss
	Option         Option
	Service        *DeliveredService
	CoveredData    string
	PolicyOwner    Party
	Currency       Currency
}

// =============================================================================
// RULE RESULTS
// =============================================================================

// EligibilityResult is the outcome of an eligibility rule. Messages carry
// the rule's own explanation of a refusal.
type EligibilityResult struct {
	Eligible bool
	Messages []string
}

// DetailSpec is one detail line as returned by an indemnification rule.
type DetailSpec struct {
	StartDate     *Date
	EndDate       *Date
	AmountPerUnit decimal.Decimal
	UnitCount     decimal.Decimal
}

// RuleResult is the structured outcome of a rule evaluation. Exactly one of
// Eligibility or Details is populated, depending on the rule kind.
type RuleResult struct {
	Eligibility *EligibilityResult
	Details     map[DetailKind][]DetailSpec
}

// Rule is an externally evaluated piece of business logic.
type Rule interface {
	Evaluate(ctx RuleContext) (RuleResult, []error)
}

// =============================================================================
// PROVIDER CHAIN - Explicit, priority-ordered rule resolution
// =============================================================================

// RuleProvider is one level of the product hierarchy able to define rules.
type RuleProvider interface {
	HasRule(kind RuleKind) bool
	RuleFor(kind RuleKind) Rule
}

// ProviderChain resolves rules by priority: earlier providers shadow later
// ones. A service chain is typically [option, coverage, product].
type ProviderChain []RuleProvider

// Resolve returns the highest-priority rule of the given kind.
func (c ProviderChain) Resolve(kind RuleKind) (Rule, bool) {
	for _, p := range c {
		if p.HasRule(kind) {
			return p.RuleFor(kind), true
		}
	}
	return nil, false
}

// StaticProvider is a RuleProvider backed by a fixed rule set. Product
// configuration layers build these; tests use them directly.
type StaticProvider struct {
	Rules map[RuleKind]Rule
}

func (p *StaticProvider) HasRule(kind RuleKind) bool {
	_, ok := p.Rules[kind]
	return ok
}

func (p *StaticProvider) RuleFor(kind RuleKind) Rule {
	return p.Rules[kind]
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(ctx RuleContext) (RuleResult, []error)

func (f RuleFunc) Evaluate(ctx RuleContext) (RuleResult, []error) { return f(ctx) }

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================

// DocumentRequestService reports whether every supporting-material request
// attached to a claim is complete. The engine only reads this boolean; it
// does not manage document requests.
type DocumentRequestService interface {
	IsComplete(c *Claim) bool
}

// NoPendingDocuments is the collaborator used when document chasing is not
// wired: every claim is considered complete.
type NoPendingDocuments struct{}

func (NoPendingDocuments) IsComplete(*Claim) bool { return true }
