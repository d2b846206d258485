package claim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/claims-engine/claim"
)

func TestNewLoss_EndDateRequired(t *testing.T) {
	// GIVEN: A descriptor that mandates an end date
	// WHEN: Declaring the loss without one
	// THEN: The declaration is refused

	c := claim.NewClaim("CLM-001", claim.Party{ID: "p-1"})
	descriptor := claim.LossDescriptor{Code: "temporary_incapacity", WithEndDate: true}

	_, err := c.NewLoss(descriptor, claim.EventDescriptor{Code: "illness"}, claim.NewDate(2024, 1, 1), nil)
	assert.ErrorIs(t, err, claim.ErrEndDateRequired)

	loss, err := c.NewLoss(descriptor, claim.EventDescriptor{Code: "illness"},
		claim.NewDate(2024, 1, 1), claim.NewDate(2024, 1, 31).Ptr())
	require.NoError(t, err)
	assert.Len(t, c.Losses, 1)
	assert.Same(t, c, loss.Claim)
}

func TestNewRelapseLoss_SameClaimOnly(t *testing.T) {
	// INVARIANT: a relapse loss always references a main loss of the same
	// claim.

	c1 := claim.NewClaim("CLM-001", claim.Party{ID: "p-1"})
	c2 := claim.NewClaim("CLM-002", claim.Party{ID: "p-2"})
	main, err := c1.NewLoss(
		claim.LossDescriptor{Code: "temporary_incapacity"},
		claim.EventDescriptor{Code: "accident"},
		claim.NewDate(2024, 1, 1), nil,
	)
	require.NoError(t, err)

	_, err = c2.NewRelapseLoss(main, claim.NewDate(2024, 3, 1), nil)
	assert.ErrorIs(t, err, claim.ErrRelapseAcrossClaims)

	relapse, err := c1.NewRelapseLoss(main, claim.NewDate(2024, 3, 1), nil)
	require.NoError(t, err)
	assert.Same(t, main, relapse.MainLoss)
	assert.Contains(t, main.SubLosses, relapse)
	assert.Equal(t, main.Descriptor, relapse.Descriptor, "relapse inherits the main loss categorization")
}

func TestInitDeliveredServices_Idempotent(t *testing.T) {
	// GIVEN: A loss that already has a service for (option, benefit)
	// WHEN: Initializing again with the same pair plus a new benefit
	// THEN: Only the new pairing is created

	c := claim.NewClaim("CLM-001", claim.Party{ID: "p-1"})
	loss, err := c.NewLoss(
		claim.LossDescriptor{Code: "temporary_incapacity"},
		claim.EventDescriptor{Code: "illness"},
		claim.NewDate(2024, 1, 1), nil,
	)
	require.NoError(t, err)

	option := claim.Option{ID: "opt-1", MainCurrency: "EUR"}
	daily := claim.Benefit{ID: "ben-1", Code: "daily_allowance", Kind: claim.KindPeriod}
	capital := claim.Benefit{ID: "ben-2", Code: "death_capital", Kind: claim.KindCapital}

	first := loss.InitDeliveredServices(option, []claim.Benefit{daily}, nil)
	require.Len(t, first, 1)

	second := loss.InitDeliveredServices(option, []claim.Benefit{daily, capital}, nil)
	require.Len(t, second, 1, "existing pairing is kept as is")
	assert.Equal(t, capital, second[0].Benefit)
	assert.Len(t, loss.Services, 2)
}

func TestNewIndemnification_Defaults(t *testing.T) {
	claimant := claim.Party{ID: "p-1", Name: "Alice"}
	c := claim.NewClaim("CLM-001", claimant)
	loss, err := c.NewLoss(
		claim.LossDescriptor{Code: "death"},
		claim.EventDescriptor{Code: "accident"},
		claim.NewDate(2024, 1, 1), nil,
	)
	require.NoError(t, err)
	svc := loss.InitDeliveredServices(
		claim.Option{ID: "opt-1", MainCurrency: "EUR"},
		[]claim.Benefit{{ID: "ben-1", Code: "death_capital", Kind: claim.KindCapital}}, nil)[0]

	ind := svc.NewIndemnification()

	assert.Equal(t, claim.StatusCalculated, ind.Status)
	assert.Equal(t, claim.KindCapital, ind.Kind, "kind comes from the benefit")
	assert.Equal(t, claimant, ind.Beneficiary)
	assert.Equal(t, claimant, ind.Customer)
	assert.Equal(t, claim.Currency("EUR"), ind.Amount.Currency)
}

func TestCurrenciesInPlay_DedupedAndOrdered(t *testing.T) {
	c := claim.NewClaim("CLM-001", claim.Party{ID: "p-1"})
	loss, err := c.NewLoss(
		claim.LossDescriptor{Code: "temporary_incapacity"},
		claim.EventDescriptor{Code: "illness"},
		claim.NewDate(2024, 1, 1), nil,
	)
	require.NoError(t, err)
	svc := loss.InitDeliveredServices(
		claim.Option{ID: "opt-1", MainCurrency: "EUR"},
		[]claim.Benefit{{ID: "ben-1", Code: "daily_allowance", Kind: claim.KindPeriod}}, nil)[0]

	svc.Expenses = []claim.Expense{
		{Amount: claim.NewMoney("10", "USD")},
		{Amount: claim.NewMoney("20", "EUR")},
		{Amount: claim.NewMoney("30", "USD")},
		{Amount: claim.NewMoney("40", "JPY")},
	}

	assert.Equal(t, []claim.Currency{"EUR", "USD", "JPY"}, svc.CurrenciesInPlay())
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := claim.NewID("x")
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
