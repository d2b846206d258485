/*
status.go - Validation state machine and claim sub-status aggregation

PURPOSE:
  Indemnifications move through a small state machine driven by explicit
  user or batch actions; the claim-level sub-status is derived bottom-up
  from that state on every write, with a fixed precedence order.

STATE MACHINE:
  calculated -> validated -> paid
  calculated -> rejected
  "calculated" is replaceable by recomputation; the other states are
  terminal with respect to the calculator.

SUB-STATUS PRECEDENCE (first match wins):
  waiting_validation > validated > paid > rejected > instruction
  A pending document request outranks everything with "waiting_doc".

LEGALITY:
  The sub-status must belong to the legal set for the claim's status; an
  illegal combination is cleared to empty rather than persisted.

SEE ALSO:
  - selector.go: Bulk validate/reject driving these transitions
  - store.go: SaveClaim re-derives the sub-status before persisting
*/
package claim

// =============================================================================
// SUB-STATUS
// =============================================================================

type SubStatus string

const (
	SubStatusNone              SubStatus = ""
	SubStatusWaitingDoc        SubStatus = "waiting_doc"
	SubStatusInstruction       SubStatus = "instruction"
	SubStatusRejected          SubStatus = "rejected"
	SubStatusWaitingValidation SubStatus = "waiting_validation"
	SubStatusValidated         SubStatus = "validated"
	SubStatusPaid              SubStatus = "paid"
)

// subStatusPrecedence resolves a flattened multiset: the first member
// present wins.
var subStatusPrecedence = []SubStatus{
	SubStatusWaitingValidation,
	SubStatusValidated,
	SubStatusPaid,
	SubStatusRejected,
}

// openSubStatuses is the legal set while the claim is open or reopened.
var openSubStatuses = []SubStatus{
	SubStatusWaitingDoc,
	SubStatusInstruction,
	SubStatusRejected,
	SubStatusWaitingValidation,
	SubStatusValidated,
	SubStatusPaid,
}

// closedSubStatuses is the legal set once the claim is closed.
var closedSubStatuses = []SubStatus{
	SubStatusNone,
	SubStatusRejected,
	SubStatusPaid,
}

// PossibleSubStatuses returns the legal sub-status set for a claim status.
func PossibleSubStatuses(status ClaimStatus) []SubStatus {
	switch status {
	case ClaimOpen, ClaimReopened:
		return openSubStatuses
	case ClaimClosed:
		return closedSubStatuses
	default:
		return []SubStatus{SubStatusNone}
	}
}

// =============================================================================
// INDEMNIFICATION STATE MACHINE
// =============================================================================

// Validate moves a calculated indemnification to validated.
func (i *Indemnification) Validate() {
	if i.Status == StatusCalculated {
		i.Status = StatusValidated
	}
}

// Reject moves a calculated indemnification to rejected.
func (i *Indemnification) Reject() {
	if i.Status == StatusCalculated {
		i.Status = StatusRejected
	}
}

// Complete transitions validated -> paid, only for a positive amount.
// Anything else is a no-op.
func (i *Indemnification) Complete() {
	if i.Status == StatusValidated && i.Amount.IsPositive() {
		i.Status = StatusPaid
	}
}

// IsPending reports whether money is still owed on this record: a positive
// amount not yet paid and not rejected.
func (i *Indemnification) IsPending() bool {
	return i.Amount.IsPositive() && i.Status != StatusPaid && i.Status != StatusRejected
}

// =============================================================================
// BOTTOM-UP FLATTENING
// =============================================================================

func (i *Indemnification) claimSubStatus() SubStatus {
	switch i.Status {
	case StatusCalculated:
		return SubStatusWaitingValidation
	case StatusValidated:
		return SubStatusValidated
	case StatusPaid:
		return SubStatusPaid
	default:
		return SubStatusInstruction
	}
}

func (s *DeliveredService) claimSubStatuses() []SubStatus {
	if len(s.Indemnifications) > 0 {
		statuses := make([]SubStatus, 0, len(s.Indemnifications))
		for _, ind := range s.Indemnifications {
			statuses = append(statuses, ind.claimSubStatus())
		}
		return statuses
	}
	if s.Status == ServiceNotEligible {
		return []SubStatus{SubStatusRejected}
	}
	return []SubStatus{SubStatusInstruction}
}

func (l *Loss) claimSubStatuses() []SubStatus {
	if len(l.Services) == 0 {
		return []SubStatus{SubStatusInstruction}
	}
	var statuses []SubStatus
	for _, svc := range l.Services {
		statuses = append(statuses, svc.claimSubStatuses()...)
	}
	return statuses
}

// =============================================================================
// CLAIM-LEVEL DERIVATION
// =============================================================================

// DeriveSubStatus computes the claim sub-status bottom-up. A claim still
// waiting on supporting material is "waiting_doc" regardless of anything
// below it.
func DeriveSubStatus(c *Claim, docs DocumentRequestService) SubStatus {
	if docs != nil && !docs.IsComplete(c) {
		return SubStatusWaitingDoc
	}
	var statuses []SubStatus
	for _, loss := range c.Losses {
		statuses = append(statuses, loss.claimSubStatuses()...)
	}
	if len(statuses) == 0 {
		return SubStatusInstruction
	}
	present := make(map[SubStatus]bool, len(statuses))
	for _, st := range statuses {
		present[st] = true
	}
	for _, st := range subStatusPrecedence {
		if present[st] {
			return st
		}
	}
	return SubStatusInstruction
}

// UpdateSubStatus re-derives the sub-status and stores it if legal for the
// claim's current status; illegal combinations are cleared to empty.
func UpdateSubStatus(c *Claim, docs DocumentRequestService) {
	derived := DeriveSubStatus(c, docs)
	for _, legal := range PossibleSubStatuses(c.Status) {
		if derived == legal {
			c.SubStatus = derived
			return
		}
	}
	c.SubStatus = SubStatusNone
}

// =============================================================================
// CLAIM LIFECYCLE
// =============================================================================

// IsOpen reports whether the claim accepts new losses and calculations.
func (c *Claim) IsOpen() bool {
	return c.Status == ClaimOpen || c.Status == ClaimReopened
}

// Close closes the claim, stamping the end date.
func (c *Claim) Close(subStatus SubStatus) {
	c.Status = ClaimClosed
	c.SubStatus = subStatus
	c.EndDate = Today().Ptr()
}

// Reopen reverses a close, clearing the end date and sub-status.
func (c *Claim) Reopen(reason ReopenedReason) {
	if c.Status != ClaimClosed {
		return
	}
	c.Status = ClaimReopened
	c.ReopenedReason = reason
	c.SubStatus = SubStatusNone
	c.EndDate = nil
}

// CompleteIndemnifications pays out every validated indemnification with a
// positive amount, then marks each service "delivered" once something was
// paid and nothing is pending anymore.
func (c *Claim) CompleteIndemnifications() {
	for _, loss := range c.Losses {
		for _, svc := range loss.Services {
			for _, ind := range svc.Indemnifications {
				ind.Complete()
			}
			pending := false
			paid := false
			for _, ind := range svc.Indemnifications {
				if ind.IsPending() {
					pending = true
				}
				if ind.Status == StatusPaid {
					paid = true
				}
			}
			if paid && !pending {
				svc.Status = ServiceDelivered
			}
		}
	}
}
