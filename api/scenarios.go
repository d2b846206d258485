/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates a claim, losses,
	delivered services and runs the calculation, demonstrating specific
	features.

AVAILABLE SCENARIOS:

	incapacity-basic:   Daily allowance over a single incapacity period
	incapacity-relapse: A relapse loss linked to its main loss
	death-capital:      Lump-sum capital payment
	multi-currency:     Daily allowance plus a foreign-currency expense

HOW SCENARIOS WORK:
 1. Open a claim with a demo claimant
 2. Declare losses
 3. Attach benefit services from the catalog
 4. Run the calculation
 5. Save the claim

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "incapacity-basic"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios add records on every load; they do not reset the store.
	Only use in development/demo environments.

SEE ALSO:
  - handlers.go: The production endpoints scenarios exercise
  - factory/presets.go: The benefit definitions scenarios rely on
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/warp/claims-engine/claim"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "incapacity-basic",
		Name:        "Basic Incapacity",
		Description: "Daily allowance over a single temporary incapacity period",
	},
	{
		ID:          "incapacity-relapse",
		Name:        "Incapacity with Relapse",
		Description: "A relapse loss linked back to its main loss",
	},
	{
		ID:          "death-capital",
		Name:        "Death Capital",
		Description: "Lump-sum capital payment on a death loss",
	},
	{
		ID:          "multi-currency",
		Name:        "Multi-Currency",
		Description: "Daily allowance plus a USD expense reimbursement",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var c *claim.Claim
	var err error
	switch req.ScenarioID {
	case "incapacity-basic":
		c, err = h.loadIncapacityBasic(ctx)
	case "incapacity-relapse":
		c, err = h.loadIncapacityRelapse(ctx)
	case "death-capital":
		c, err = h.loadDeathCapital(ctx)
	case "multi-currency":
		c, err = h.loadMultiCurrency(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadIncapacityBasic(ctx context.Context) (*claim.Claim, error) {
	c := claim.NewClaim("CLM-DEMO-001", claim.Party{ID: "party-alice", Name: "Alice Moreau"})
	loss, err := c.NewLoss(
		claim.LossDescriptor{Code: "temporary_incapacity", Name: "Temporary Incapacity", WithEndDate: true},
		claim.EventDescriptor{Code: "illness", Name: "Illness"},
		claim.NewDate(2024, 1, 10), claim.NewDate(2024, 3, 31).Ptr(),
	)
	if err != nil {
		return nil, err
	}
	h.attachAndCalculate(ctx, loss, "daily_allowance", nil)
	return c, h.Store.SaveClaim(ctx, c)
}

func (h *Handler) loadIncapacityRelapse(ctx context.Context) (*claim.Claim, error) {
	c := claim.NewClaim("CLM-DEMO-002", claim.Party{ID: "party-bruno", Name: "Bruno Keller"})
	main, err := c.NewLoss(
		claim.LossDescriptor{Code: "temporary_incapacity", Name: "Temporary Incapacity", WithEndDate: true},
		claim.EventDescriptor{Code: "accident", Name: "Accident"},
		claim.NewDate(2024, 2, 1), claim.NewDate(2024, 4, 30).Ptr(),
	)
	if err != nil {
		return nil, err
	}
	relapse, err := c.NewRelapseLoss(main, claim.NewDate(2024, 6, 15), claim.NewDate(2024, 7, 31).Ptr())
	if err != nil {
		return nil, err
	}
	h.attachAndCalculate(ctx, main, "daily_allowance", nil)
	h.attachAndCalculate(ctx, relapse, "daily_allowance", nil)
	return c, h.Store.SaveClaim(ctx, c)
}

func (h *Handler) loadDeathCapital(ctx context.Context) (*claim.Claim, error) {
	c := claim.NewClaim("CLM-DEMO-003", claim.Party{ID: "party-clara", Name: "Clara Fontaine"})
	loss, err := c.NewLoss(
		claim.LossDescriptor{Code: "death", Name: "Death"},
		claim.EventDescriptor{Code: "accident", Name: "Accident"},
		claim.NewDate(2024, 5, 20), nil,
	)
	if err != nil {
		return nil, err
	}
	h.attachAndCalculate(ctx, loss, "death_capital", nil)
	return c, h.Store.SaveClaim(ctx, c)
}

func (h *Handler) loadMultiCurrency(ctx context.Context) (*claim.Claim, error) {
	c := claim.NewClaim("CLM-DEMO-004", claim.Party{ID: "party-diego", Name: "Diego Sanz"})
	loss, err := c.NewLoss(
		claim.LossDescriptor{Code: "temporary_incapacity", Name: "Temporary Incapacity", WithEndDate: true},
		claim.EventDescriptor{Code: "illness", Name: "Illness"},
		claim.NewDate(2024, 3, 5), claim.NewDate(2024, 5, 15).Ptr(),
	)
	if err != nil {
		return nil, err
	}
	expenses := []claim.Expense{{
		Amount: claim.Money{Amount: decimal.RequireFromString("420.50"), Currency: "USD"},
		Label:  "Overseas hospital invoice",
	}}
	h.attachAndCalculate(ctx, loss, "daily_allowance", expenses)
	return c, h.Store.SaveClaim(ctx, c)
}

// attachAndCalculate wires a benefit service onto the loss and runs the
// calculation. Scenario loaders tolerate calculation errors; the resulting
// state is part of the demo.
func (h *Handler) attachAndCalculate(ctx context.Context, loss *claim.Loss, benefitCode string, expenses []claim.Expense) {
	benefit, ok := h.Catalog.Benefit(benefitCode)
	if !ok {
		return
	}
	option := claim.Option{
		ID:           claim.OptionID(fmt.Sprintf("opt-%s", loss.ID)),
		MainCurrency: "EUR",
		PolicyOwner:  claim.Party{ID: "party-acme", Name: "ACME Group"},
	}
	created := loss.InitDeliveredServices(option, []claim.Benefit{benefit}, h.Catalog.Chains())
	for _, svc := range created {
		svc.Expenses = append(svc.Expenses, expenses...)
	}
	// The store must know the service before the calculator can apply
	// its replacement diff.
	if err := h.Store.SaveClaim(ctx, loss.Claim); err != nil {
		return
	}
	for _, svc := range created {
		h.Calculator.Calculate(ctx, svc)
	}
}
