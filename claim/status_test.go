package claim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/claims-engine/claim"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newClaimWithStatuses builds a claim with one service carrying one
// indemnification per given status.
func newClaimWithStatuses(t *testing.T, statuses ...claim.IndemnificationStatus) *claim.Claim {
	t.Helper()

	c := claim.NewClaim("CLM-STATUS", claim.Party{ID: "p-1", Name: "Alice"})
	loss, err := c.NewLoss(
		claim.LossDescriptor{Code: "temporary_incapacity"},
		claim.EventDescriptor{Code: "illness"},
		claim.NewDate(2024, 1, 1), nil,
	)
	require.NoError(t, err)

	option := claim.Option{ID: "opt-1", MainCurrency: "EUR"}
	benefit := claim.Benefit{ID: "ben-1", Code: "daily_allowance", Kind: claim.KindPeriod}
	created := loss.InitDeliveredServices(option, []claim.Benefit{benefit}, nil)
	require.Len(t, created, 1)

	for _, status := range statuses {
		ind := created[0].NewIndemnification()
		ind.Status = status
		ind.Amount = claim.NewMoney("100", "EUR")
		created[0].Indemnifications = append(created[0].Indemnifications, ind)
	}
	return c
}

type pendingDocs struct{}

func (pendingDocs) IsComplete(*claim.Claim) bool { return false }

// =============================================================================
// SUB-STATUS PRECEDENCE
// =============================================================================

func TestDeriveSubStatus_Precedence(t *testing.T) {
	// The first member present in the precedence order wins:
	// waiting_validation > validated > paid > rejected
	tests := []struct {
		name     string
		statuses []claim.IndemnificationStatus
		want     claim.SubStatus
	}{
		{
			name:     "calculated outranks paid",
			statuses: []claim.IndemnificationStatus{claim.StatusPaid, claim.StatusCalculated},
			want:     claim.SubStatusWaitingValidation,
		},
		{
			name:     "validated outranks paid",
			statuses: []claim.IndemnificationStatus{claim.StatusPaid, claim.StatusValidated},
			want:     claim.SubStatusValidated,
		},
		{
			name:     "paid outranks rejected",
			statuses: []claim.IndemnificationStatus{claim.StatusRejected, claim.StatusPaid},
			want:     claim.SubStatusPaid,
		},
		{
			name:     "all rejected",
			statuses: []claim.IndemnificationStatus{claim.StatusRejected},
			want:     claim.SubStatusRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClaimWithStatuses(t, tt.statuses...)
			got := claim.DeriveSubStatus(c, claim.NoPendingDocuments{})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveSubStatus_WaitingDocOutranksEverything(t *testing.T) {
	c := newClaimWithStatuses(t, claim.StatusValidated)
	got := claim.DeriveSubStatus(c, pendingDocs{})
	assert.Equal(t, claim.SubStatusWaitingDoc, got)
}

func TestDeriveSubStatus_EmptyClaim_Instruction(t *testing.T) {
	c := claim.NewClaim("CLM-EMPTY", claim.Party{ID: "p-1"})
	got := claim.DeriveSubStatus(c, claim.NoPendingDocuments{})
	assert.Equal(t, claim.SubStatusInstruction, got)
}

func TestDeriveSubStatus_NotEligibleService_Rejected(t *testing.T) {
	// GIVEN: A service without indemnifications marked not eligible
	// THEN: It contributes "rejected" to the claim

	c := newClaimWithStatuses(t)
	c.Losses[0].Services[0].Status = claim.ServiceNotEligible

	got := claim.DeriveSubStatus(c, claim.NoPendingDocuments{})
	assert.Equal(t, claim.SubStatusRejected, got)
}

func TestUpdateSubStatus_IllegalForClosedClaim_Cleared(t *testing.T) {
	// GIVEN: A closed claim whose derived sub-status is waiting_validation
	// WHEN: Updating
	// THEN: The illegal combination is cleared to empty, not persisted

	c := newClaimWithStatuses(t, claim.StatusCalculated)
	c.Status = claim.ClaimClosed

	claim.UpdateSubStatus(c, claim.NoPendingDocuments{})
	assert.Equal(t, claim.SubStatusNone, c.SubStatus)
}

func TestUpdateSubStatus_PaidLegalForClosedClaim(t *testing.T) {
	c := newClaimWithStatuses(t, claim.StatusPaid)
	c.Status = claim.ClaimClosed

	claim.UpdateSubStatus(c, claim.NoPendingDocuments{})
	assert.Equal(t, claim.SubStatusPaid, c.SubStatus)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestIndemnification_Transitions(t *testing.T) {
	c := newClaimWithStatuses(t, claim.StatusCalculated)
	ind := c.Losses[0].Services[0].Indemnifications[0]

	ind.Validate()
	assert.Equal(t, claim.StatusValidated, ind.Status)

	ind.Complete()
	assert.Equal(t, claim.StatusPaid, ind.Status)

	// Terminal: further transitions are no-ops.
	ind.Reject()
	assert.Equal(t, claim.StatusPaid, ind.Status)
}

func TestIndemnification_Complete_RequiresPositiveAmount(t *testing.T) {
	c := newClaimWithStatuses(t, claim.StatusValidated)
	ind := c.Losses[0].Services[0].Indemnifications[0]
	ind.Amount = claim.ZeroMoney("EUR")

	ind.Complete()
	assert.Equal(t, claim.StatusValidated, ind.Status, "zero amounts are never paid")
}

func TestIndemnification_IsPending(t *testing.T) {
	c := newClaimWithStatuses(t, claim.StatusValidated, claim.StatusPaid, claim.StatusRejected)
	inds := c.Losses[0].Services[0].Indemnifications

	assert.True(t, inds[0].IsPending(), "validated with positive amount owes money")
	assert.False(t, inds[1].IsPending(), "paid owes nothing")
	assert.False(t, inds[2].IsPending(), "rejected owes nothing")
}

// =============================================================================
// CLAIM LIFECYCLE
// =============================================================================

func TestClaim_CloseAndReopen(t *testing.T) {
	c := newClaimWithStatuses(t, claim.StatusPaid)

	c.Close(claim.SubStatusPaid)
	assert.Equal(t, claim.ClaimClosed, c.Status)
	assert.Equal(t, claim.SubStatusPaid, c.SubStatus)
	require.NotNil(t, c.EndDate)
	assert.False(t, c.IsOpen())

	c.Reopen(claim.ReopenedRelapse)
	assert.Equal(t, claim.ClaimReopened, c.Status)
	assert.Equal(t, claim.ReopenedRelapse, c.ReopenedReason)
	assert.Nil(t, c.EndDate)
	assert.Equal(t, claim.SubStatusNone, c.SubStatus)
	assert.True(t, c.IsOpen())
}

func TestClaim_Reopen_OnlyWhenClosed(t *testing.T) {
	c := newClaimWithStatuses(t)
	c.Reopen(claim.ReopenedReclamation)
	assert.Equal(t, claim.ClaimOpen, c.Status, "open claims cannot be reopened")
}

func TestCompleteIndemnifications_PaysAndMarksDelivered(t *testing.T) {
	// GIVEN: A claim with one validated and one rejected indemnification
	// WHEN: Completing
	// THEN: The validated one is paid and the service becomes delivered
	//       (something paid, nothing pending)

	c := newClaimWithStatuses(t, claim.StatusValidated, claim.StatusRejected)
	svc := c.Losses[0].Services[0]

	c.CompleteIndemnifications()

	assert.Equal(t, claim.StatusPaid, svc.Indemnifications[0].Status)
	assert.Equal(t, claim.StatusRejected, svc.Indemnifications[1].Status)
	assert.Equal(t, claim.ServiceDelivered, svc.Status)
}

func TestCompleteIndemnifications_PendingBlocksDelivery(t *testing.T) {
	// A still-calculated record keeps the service undelivered.
	c := newClaimWithStatuses(t, claim.StatusValidated, claim.StatusCalculated)
	svc := c.Losses[0].Services[0]

	c.CompleteIndemnifications()

	assert.Equal(t, claim.StatusPaid, svc.Indemnifications[0].Status)
	assert.NotEqual(t, claim.ServiceDelivered, svc.Status)
}
