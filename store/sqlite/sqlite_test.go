package sqlite_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/claims-engine/claim"
	"github.com/warp/claims-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestClaim(t *testing.T) *claim.Claim {
	t.Helper()

	c := claim.NewClaim("CLM-SQL-001", claim.Party{ID: "p-1", Name: "Alice"})
	main, err := c.NewLoss(
		claim.LossDescriptor{Code: "temporary_incapacity", Name: "Temporary Incapacity", WithEndDate: true},
		claim.EventDescriptor{Code: "illness", Name: "Illness"},
		claim.NewDate(2024, 1, 1), claim.NewDate(2024, 1, 31).Ptr(),
	)
	require.NoError(t, err)
	_, err = c.NewRelapseLoss(main, claim.NewDate(2024, 3, 1), claim.NewDate(2024, 3, 15).Ptr())
	require.NoError(t, err)

	option := claim.Option{ID: "opt-1", MainCurrency: "EUR", PolicyOwner: claim.Party{ID: "p-owner", Name: "ACME"}}
	benefit := claim.Benefit{ID: "ben-1", Code: "daily_allowance", Name: "Daily Allowance", Kind: claim.KindPeriod}
	svc := main.InitDeliveredServices(option, []claim.Benefit{benefit}, nil)[0]
	svc.Expenses = append(svc.Expenses, claim.Expense{Amount: claim.NewMoney("250", "USD"), Label: "invoice"})

	ind := svc.NewIndemnification()
	ind.StartDate = claim.NewDate(2024, 1, 1)
	ind.EndDate = claim.NewDate(2024, 1, 31)
	ind.Amount = claim.NewMoney("3100", "EUR")
	ind.Details = append(ind.Details, &claim.DetailLine{
		ID:              claim.DetailLineID(claim.NewID("det")),
		Indemnification: ind,
		Kind:            claim.DetailBenefit,
		StartDate:       claim.NewDate(2024, 1, 1).Ptr(),
		EndDate:         claim.NewDate(2024, 1, 31).Ptr(),
		AmountPerUnit:   decimal.NewFromInt(100),
		UnitCount:       decimal.NewFromInt(31),
		Amount:          decimal.NewFromInt(3100),
	})
	svc.Indemnifications = append(svc.Indemnifications, ind)
	return c
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestSQLite_SaveAndLoadClaimGraph(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	c := newTestClaim(t)

	require.NoError(t, st.SaveClaim(ctx, c))

	loaded, err := st.GetClaim(ctx, c.ID)
	require.NoError(t, err)

	assert.Equal(t, c.Number, loaded.Number)
	assert.Equal(t, claim.ClaimOpen, loaded.Status)
	assert.Equal(t, c.Claimant, loaded.Claimant)
	require.Len(t, loaded.Losses, 2)

	main := loaded.Losses[0]
	relapse := loaded.Losses[1]
	assert.Equal(t, "temporary_incapacity", main.Descriptor.Code)
	require.NotNil(t, main.EndDate)
	assert.Equal(t, claim.NewDate(2024, 1, 31), *main.EndDate)
	assert.Same(t, main, relapse.MainLoss, "relapse link restored")
	assert.Contains(t, main.SubLosses, relapse)

	require.Len(t, main.Services, 1)
	svc := main.Services[0]
	assert.Equal(t, claim.Currency("EUR"), svc.MainCurrency())
	require.Len(t, svc.Expenses, 1)
	assert.Equal(t, claim.Currency("USD"), svc.Expenses[0].Amount.Currency)
	assert.Nil(t, svc.Rules, "rule chains are configuration, not data")

	require.Len(t, svc.Indemnifications, 1)
	ind := svc.Indemnifications[0]
	assert.Equal(t, "3100", ind.Amount.Amount.String())
	assert.Same(t, svc, ind.Service)
	require.Len(t, ind.Details, 1)
	assert.Equal(t, claim.DetailBenefit, ind.Details[0].Kind)
	assert.Equal(t, "3100", ind.Details[0].Amount.String())
}

func TestSQLite_SaveClaim_RederivesSubStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	c := newTestClaim(t)
	c.SubStatus = claim.SubStatusPaid // stale value

	require.NoError(t, st.SaveClaim(ctx, c))

	loaded, err := st.GetClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, claim.SubStatusWaitingValidation, loaded.SubStatus,
		"stored sub-status reflects the calculated indemnification")
}

func TestSQLite_GetClaim_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetClaim(context.Background(), "nope")
	assert.ErrorIs(t, err, claim.ErrClaimNotFound)
}

func TestSQLite_FindService(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	c := newTestClaim(t)
	require.NoError(t, st.SaveClaim(ctx, c))

	id := c.Losses[0].Services[0].ID
	svc, err := st.FindService(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, svc.ID)
	require.NotNil(t, svc.Loss)
	require.NotNil(t, svc.Loss.Claim, "parent links intact")
	assert.Equal(t, c.ID, svc.Loss.Claim.ID)

	_, err = st.FindService(ctx, "nope")
	assert.ErrorIs(t, err, claim.ErrServiceNotFound)
}

// =============================================================================
// ATOMIC REPLACEMENT
// =============================================================================

func TestSQLite_ApplyReplacement(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	c := newTestClaim(t)
	require.NoError(t, st.SaveClaim(ctx, c))

	svc := c.Losses[0].Services[0]
	stale := svc.Indemnifications[0]

	fresh := svc.NewIndemnification()
	fresh.StartDate = claim.NewDate(2024, 1, 1)
	fresh.EndDate = claim.NewDate(2024, 2, 29)
	fresh.Amount = claim.NewMoney("6000", "EUR")

	repl := claim.Replacement{Create: []*claim.Indemnification{fresh}, Delete: []*claim.Indemnification{stale}}
	require.NoError(t, st.ApplyReplacement(ctx, svc.ID, repl))

	loaded, err := st.GetClaim(ctx, c.ID)
	require.NoError(t, err)
	inds := loaded.Losses[0].Services[0].Indemnifications
	require.Len(t, inds, 1)
	assert.Equal(t, fresh.ID, inds[0].ID)
	assert.Equal(t, "6000", inds[0].Amount.Amount.String())
}

func TestSQLite_ApplyReplacement_UnknownService(t *testing.T) {
	st := newTestStore(t)
	err := st.ApplyReplacement(context.Background(), "nope", claim.Replacement{})
	assert.ErrorIs(t, err, claim.ErrServiceNotFound)
}

// =============================================================================
// SELECTOR SEARCH
// =============================================================================

func TestSQLite_SearchIndemnifications(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	c := newTestClaim(t)

	svc := c.Losses[0].Services[0]
	second := svc.NewIndemnification()
	second.Status = claim.StatusValidated
	second.StartDate = claim.NewDate(2024, 2, 1)
	second.EndDate = claim.NewDate(2024, 2, 29)
	second.Amount = claim.NewMoney("2900", "EUR")
	svc.Indemnifications = append(svc.Indemnifications, second)
	require.NoError(t, st.SaveClaim(ctx, c))

	clauses, err := claim.ParseSelector("status = calculated")
	require.NoError(t, err)
	found, err := st.SearchIndemnifications(ctx, clauses, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, claim.StatusCalculated, found[0].Status)
	require.NotNil(t, found[0].Service, "results keep parent links for review")
	assert.Equal(t, c.ID, found[0].Service.Loss.Claim.ID)

	clauses, err = claim.ParseSelector("amount > 3000")
	require.NoError(t, err)
	found, err = st.SearchIndemnifications(ctx, clauses, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "3100", found[0].Amount.Amount.String())
}

func TestSQLite_SearchIndemnifications_FractionalAmount(t *testing.T) {
	// Amount clauses compare numerically at full decimal precision, so a
	// fractional literal matches regardless of trailing zeros.

	st := newTestStore(t)
	ctx := context.Background()
	c := newTestClaim(t)
	svc := c.Losses[0].Services[0]
	ind := svc.NewIndemnification()
	ind.StartDate = claim.NewDate(2024, 2, 1)
	ind.Amount = claim.NewMoney("1464.40", "EUR")
	svc.Indemnifications = append(svc.Indemnifications, ind)
	require.NoError(t, st.SaveClaim(ctx, c))

	clauses, err := claim.ParseSelector("amount = 1464.40")
	require.NoError(t, err)
	found, err := st.SearchIndemnifications(ctx, clauses, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "1464.4", found[0].Amount.Amount.String())

	clauses, err = claim.ParseSelector("amount < 3000")
	require.NoError(t, err)
	found, err = st.SearchIndemnifications(ctx, clauses, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ind.ID, found[0].ID)
}

func TestSQLite_SearchIndemnifications_OrderAndLimit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	c := newTestClaim(t)
	svc := c.Losses[0].Services[0]
	for i := 0; i < 5; i++ {
		ind := svc.NewIndemnification()
		ind.StartDate = claim.NewDate(2024, 2, 1).AddDays(i)
		ind.Amount = claim.NewMoney("100", "EUR")
		svc.Indemnifications = append(svc.Indemnifications, ind)
	}
	require.NoError(t, st.SaveClaim(ctx, c))

	found, err := st.SearchIndemnifications(ctx, nil, 3)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, claim.NewDate(2024, 1, 1), found[0].StartDate, "ordered by start date")
}
