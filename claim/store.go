/*
store.go - Persistence interface for claims and indemnifications

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never talks to a database directly: the calculator emits a Replacement
  describing the indemnifications to create and to discard, and the store
  applies it atomically.

ATOMIC REPLACEMENT:
  One Calculate() call may create indemnifications for several currencies
  and discard several stale ones. ApplyReplacement ensures all-or-nothing
  semantics: a failure partway through must never leave a mix of stale and
  fresh "calculated" indemnifications visible.

SUB-STATUS INJECTION:
  SaveClaim re-derives the claim sub-status before persisting, so the
  stored value is always consistent with the underlying loss, service and
  indemnification state rather than being independently authoritative.

SINGLE WRITER:
  At most one Calculate() may run against a given service at a time. The
  calculator enforces this with a per-service guard; stores do not lock.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - claim/store:  In-memory for testing

SEE ALSO:
  - calculator.go: Produces Replacements
  - selector.go: Produces search clauses
*/
package claim

import "context"

// =============================================================================
// REPLACEMENT - Diff produced by one calculation run
// =============================================================================

// Replacement is the explicit diff of a purge-then-recreate run: the
// indemnifications to persist and the stale ones to discard. Anything not
// listed is kept untouched.
type Replacement struct {
	Create []*Indemnification
	Delete []*Indemnification
}

func (r Replacement) IsEmpty() bool {
	return len(r.Create) == 0 && len(r.Delete) == 0
}

// =============================================================================
// STORE - Persistence boundary
// =============================================================================

type Store interface {
	// SaveClaim persists the claim graph, re-deriving its sub-status first.
	SaveClaim(ctx context.Context, c *Claim) error

	// GetClaim loads a claim with its losses, services, indemnifications
	// and detail lines. Returns ErrClaimNotFound if absent.
	GetClaim(ctx context.Context, id ClaimID) (*Claim, error)

	// FindService locates a delivered service. Returns ErrServiceNotFound
	// if absent.
	FindService(ctx context.Context, id ServiceID) (*DeliveredService, error)

	// ApplyReplacement applies a calculation diff atomically: all creates
	// and deletes succeed together or not at all.
	ApplyReplacement(ctx context.Context, serviceID ServiceID, repl Replacement) error

	// SearchIndemnifications returns indemnifications matching every
	// clause, ordered by start date, bounded by limit.
	SearchIndemnifications(ctx context.Context, clauses []Clause, limit int) ([]*Indemnification, error)
}
