/*
errors.go - Centralized error types for the indemnification engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Outer layers (api, store) wrap these errors with additional context.

ERROR CATEGORIES:
  1. Rule evaluation errors - surfaced verbatim from the rule invoker
  2. Calculation errors - missing details, preconditions
  3. Lookup errors - missing records
  4. Selector errors - malformed batch filter strings

PROPAGATION POLICY:
  Ineligibility and missing-detail situations are business outcomes, not
  panics: Calculate returns them in its (ok, errs) pair so an orchestrator
  covering many services can aggregate partial results without aborting
  siblings. Persistence errors are propagated unmodified, never recovered
  locally.

SEE ALSO:
  - calculator.go: Produces rule and missing-detail errors
  - selector.go: Produces selector errors
*/
package claim

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingDetails is returned when a rule call yields zero detail
	// lines for a requested period. Aborts continuation for that currency
	// only.
	ErrMissingDetails = errors.New("rule returned no detail lines")

	// ErrRuleNotFound is returned when no provider in the chain defines a
	// rule of the requested kind.
	ErrRuleNotFound = errors.New("no rule of this kind in provider chain")

	// ErrServiceIncomplete is returned when Calculate is invoked on a
	// service missing its loss, option or benefit.
	ErrServiceIncomplete = errors.New("delivered service is missing loss, option or benefit")

	// ErrNoExchangeRate is returned when a currency conversion has no
	// configured rate.
	ErrNoExchangeRate = errors.New("no exchange rate configured")

	// ErrClaimNotFound is returned when a referenced claim doesn't exist.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrLossNotFound is returned when a referenced loss doesn't exist.
	ErrLossNotFound = errors.New("loss not found")

	// ErrServiceNotFound is returned when a referenced service doesn't exist.
	ErrServiceNotFound = errors.New("delivered service not found")

	// ErrIndemnificationNotFound is returned when a referenced
	// indemnification doesn't exist.
	ErrIndemnificationNotFound = errors.New("indemnification not found")

	// ErrInvalidSelector is returned for malformed batch filter strings.
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrRelapseAcrossClaims is returned when attaching a relapse loss to a
	// main loss belonging to another claim.
	ErrRelapseAcrossClaims = errors.New("relapse loss must reference a loss of the same claim")

	// ErrEndDateRequired is returned when a loss descriptor mandates an end
	// date and none is set.
	ErrEndDateRequired = errors.New("loss descriptor requires an end date")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RuleError carries messages surfaced verbatim from the external rule
// invoker. It aborts the current currency's continuation loop but not
// sibling currencies.
type RuleError struct {
	Kind     RuleKind
	Currency Currency
	Message  string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s failed (%s): %s", e.Kind, e.Currency, e.Message)
}

// MissingDetailError reports a rule call that produced no detail lines for
// the requested period.
type MissingDetailError struct {
	ServiceID ServiceID
	Currency  Currency
	StartDate Date
}

func (e *MissingDetailError) Error() string {
	return fmt.Sprintf("no detail lines for service %s in %s from %s",
		e.ServiceID, e.Currency, e.StartDate)
}

func (e *MissingDetailError) Unwrap() error { return ErrMissingDetails }

// SelectorError reports where a batch filter string went wrong.
type SelectorError struct {
	Input  string
	Reason string
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid selector %q: %s", e.Input, e.Reason)
}

func (e *SelectorError) Unwrap() error { return ErrInvalidSelector }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClaimNotFound) ||
		errors.Is(err, ErrLossNotFound) ||
		errors.Is(err, ErrServiceNotFound) ||
		errors.Is(err, ErrIndemnificationNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSelector) ||
		errors.Is(err, ErrRelapseAcrossClaims) ||
		errors.Is(err, ErrEndDateRequired) ||
		errors.Is(err, ErrServiceIncomplete)
}
