/*
handlers.go - HTTP API handlers for the claims engine

PURPOSE:
  Exposes the indemnification engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Claims:
    POST   /api/claims                 Open a claim
    GET    /api/claims/{id}            Get claim with full graph
    POST   /api/claims/{id}/close      Close a claim
    POST   /api/claims/{id}/reopen     Reopen a closed claim
    POST   /api/claims/{id}/losses     Declare a loss (or relapse)
    POST   /api/claims/{id}/losses/{lossID}/services
                                       Attach benefit services

  Calculation:
    POST   /api/services/{id}/calculate Run the calculation

  Review:
    GET    /api/indemnifications       Selector search (bounded)
    POST   /api/indemnifications/review Bulk validate/reject + pay

  Benefits:
    GET    /api/benefits               Registered benefit catalog

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Persistence (claim.Store, any implementation)
  - Catalog: Benefit definitions and rule chains
  - Calculator: The indemnification algorithm
  - Reviewer: Bulk validate/reject

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (factory, calculator, reviewer)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, bad selectors
  - 404: Record not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/warp/claims-engine/claim"
	"github.com/warp/claims-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      claim.Store
	Catalog    *factory.Catalog
	Calculator *claim.Calculator
	Reviewer   *claim.BatchReviewer
}

// NewHandler creates a new handler.
func NewHandler(store claim.Store, catalog *factory.Catalog, calculator *claim.Calculator) *Handler {
	return &Handler{
		Store:      store,
		Catalog:    catalog,
		Calculator: calculator,
		Reviewer:   claim.NewBatchReviewer(store),
	}
}

// =============================================================================
// CLAIM HANDLERS
// =============================================================================

// CreateClaim opens a new claim.
func (h *Handler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var req CreateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "Claim number is required", nil)
		return
	}

	c := claim.NewClaim(req.Number, claim.Party{
		ID:   claim.PartyID(req.Claimant.ID),
		Name: req.Claimant.Name,
	})
	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save claim", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClaimDTO(c))
}

// GetClaim returns a claim with its full graph.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// CloseClaim closes a claim, stamping the end date.
func (h *Handler) CloseClaim(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	var req CloseClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c.Close(claim.SubStatus(req.SubStatus))
	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save claim", err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// ReopenClaim reverses a close with an explicit reason.
func (h *Handler) ReopenClaim(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	var req ReopenClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if c.Status != claim.ClaimClosed {
		writeError(w, http.StatusBadRequest, "Only closed claims can be reopened", nil)
		return
	}

	c.Reopen(claim.ReopenedReason(req.Reason))
	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save claim", err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// =============================================================================
// LOSS HANDLERS
// =============================================================================

// DeclareLoss declares a loss on a claim. With relapse_of set, the new loss
// is linked to an earlier loss of the same claim.
func (h *Handler) DeclareLoss(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	var req DeclareLossRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !c.IsOpen() {
		writeError(w, http.StatusBadRequest, "Claim is closed", nil)
		return
	}

	start, err := claim.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	var end *claim.Date
	if req.EndDate != nil {
		d, err := claim.ParseDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
			return
		}
		end = d.Ptr()
	}

	var loss *claim.Loss
	if req.RelapseOf != "" {
		main := findLoss(c, claim.LossID(req.RelapseOf))
		if main == nil {
			writeError(w, http.StatusNotFound, "Main loss not found on this claim", claim.ErrLossNotFound)
			return
		}
		loss, err = c.NewRelapseLoss(main, start, end)
	} else {
		descriptor := claim.LossDescriptor{
			Code:        req.DescriptorCode,
			Name:        req.DescriptorName,
			WithEndDate: req.WithEndDate,
		}
		event := claim.EventDescriptor{Code: req.EventCode, Name: req.EventName}
		loss, err = c.NewLoss(descriptor, event, start, end)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to declare loss", err)
		return
	}

	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save claim", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLossDTO(loss))
}

// InitServices attaches one delivered service per requested benefit.
func (h *Handler) InitServices(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	loss := findLoss(c, claim.LossID(chi.URLParam(r, "lossID")))
	if loss == nil {
		writeError(w, http.StatusNotFound, "Loss not found", claim.ErrLossNotFound)
		return
	}
	var req InitServicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var benefits []claim.Benefit
	for _, code := range req.BenefitCodes {
		benefit, ok := h.Catalog.Benefit(code)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown benefit code: "+code, nil)
			return
		}
		benefits = append(benefits, benefit)
	}

	option := claim.Option{
		ID:           claim.OptionID(req.OptionID),
		MainCurrency: claim.Currency(req.MainCurrency),
		PolicyOwner:  claim.Party{ID: claim.PartyID(req.PolicyOwner.ID), Name: req.PolicyOwner.Name},
		CoveredData:  req.CoveredData,
	}

	created := loss.InitDeliveredServices(option, benefits, h.Catalog.Chains())
	for _, svc := range created {
		for _, e := range req.Expenses {
			amount, err := decimal.NewFromString(e.Amount)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid expense amount", err)
				return
			}
			svc.Expenses = append(svc.Expenses, claim.Expense{
				Amount: claim.Money{Amount: amount, Currency: claim.Currency(e.Currency)},
				Label:  e.Label,
			})
		}
	}

	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save claim", err)
		return
	}
	dtos := make([]ServiceDTO, 0, len(created))
	for _, svc := range created {
		dtos = append(dtos, toServiceDTO(svc))
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// =============================================================================
// CALCULATION HANDLER
// =============================================================================

// CalculateService runs the calculation on one delivered service.
func (h *Handler) CalculateService(w http.ResponseWriter, r *http.Request) {
	id := claim.ServiceID(chi.URLParam(r, "id"))
	svc, err := h.Store.FindService(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if claim.IsNotFound(err) {
			status = http.StatusNotFound
		}
		writeError(w, status, "Failed to find service", err)
		return
	}

	// Stores do not persist rule chains; restore them from the catalog.
	h.Catalog.Reattach(svc.Loss.Claim)

	ok, errs := h.Calculator.Calculate(r.Context(), svc)
	if err := h.Store.SaveClaim(r.Context(), svc.Loss.Claim); err != nil {
		errs = append(errs, err)
		ok = false
	}

	resp := CalculateResponse{OK: ok, Service: toServiceDTO(svc)}
	for _, e := range errs {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// REVIEW HANDLERS
// =============================================================================

// SearchIndemnifications returns the bounded working set for a selector.
func (h *Handler) SearchIndemnifications(w http.ResponseWriter, r *http.Request) {
	selector := r.URL.Query().Get("selector")
	limit := claim.DefaultReviewLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	working, err := h.Reviewer.Find(r.Context(), selector, limit)
	if err != nil {
		status := http.StatusInternalServerError
		if claim.IsClientError(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "Selector search failed", err)
		return
	}

	dtos := make([]IndemnificationDTO, 0, len(working))
	for _, ind := range working {
		dtos = append(dtos, toIndemnificationDTO(ind))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Review applies bulk validate/reject decisions over a selected working
// set, then completes payments on every touched claim.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	working, err := h.Reviewer.Find(r.Context(), req.Selector, req.Limit)
	if err != nil {
		status := http.StatusInternalServerError
		if claim.IsClientError(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "Selector search failed", err)
		return
	}

	decisions := make(map[claim.IndemnificationID]claim.Decision, len(req.Decisions))
	for id, d := range req.Decisions {
		decisions[claim.IndemnificationID(id)] = claim.Decision(d)
	}

	errs := h.Reviewer.Apply(r.Context(), working, decisions)
	resp := ReviewResponse{Reviewed: len(working)}
	for _, e := range errs {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// BENEFIT HANDLERS
// =============================================================================

// ListBenefits returns the registered benefit catalog.
func (h *Handler) ListBenefits(w http.ResponseWriter, r *http.Request) {
	benefits := h.Catalog.Benefits()
	dtos := make([]BenefitDTO, 0, len(benefits))
	for _, b := range benefits {
		dtos = append(dtos, BenefitDTO{
			ID:   string(b.ID),
			Code: b.Code,
			Name: b.Name,
			Kind: string(b.Kind),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadClaim(w http.ResponseWriter, r *http.Request) (*claim.Claim, bool) {
	id := claim.ClaimID(chi.URLParam(r, "id"))
	c, err := h.Store.GetClaim(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if claim.IsNotFound(err) {
			status = http.StatusNotFound
		}
		writeError(w, status, "Failed to get claim", err)
		return nil, false
	}
	h.Catalog.Reattach(c)
	return c, true
}

func findLoss(c *claim.Claim, id claim.LossID) *claim.Loss {
	for _, loss := range c.Losses {
		if loss.ID == id {
			return loss
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}
