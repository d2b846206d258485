package api_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/claims-engine/api"
	"github.com/warp/claims-engine/claim"
	"github.com/warp/claims-engine/claim/store"
	"github.com/warp/claims-engine/factory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mem := store.NewMemory(nil)
	catalog := factory.DefaultCatalog()
	exchange := claim.NewExchangeService()
	exchange.SetRate("USD", "EUR", decimal.RequireFromString("0.9"))
	calculator := claim.NewCalculator(exchange, mem)
	handler := api.NewHandler(mem, catalog, calculator)

	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// createCalculatedClaim drives the API through the full declaration flow
// and returns the calculated claim.
func createCalculatedClaim(t *testing.T, srv *httptest.Server) (api.ClaimDTO, api.CalculateResponse) {
	t.Helper()

	var c api.ClaimDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/claims", api.CreateClaimRequest{
		Number:   "CLM-API-001",
		Claimant: api.PartyDTO{ID: "p-1", Name: "Alice"},
	}, &c)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	end := "2024-01-31"
	var loss api.LossDTO
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/claims/"+c.ID+"/losses", api.DeclareLossRequest{
		DescriptorCode: "temporary_incapacity",
		WithEndDate:    true,
		EventCode:      "illness",
		StartDate:      "2024-01-01",
		EndDate:        &end,
	}, &loss)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var services []api.ServiceDTO
	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/claims/%s/losses/%s/services", srv.URL, c.ID, loss.ID),
		api.InitServicesRequest{
			OptionID:     "opt-1",
			MainCurrency: "EUR",
			PolicyOwner:  api.PartyDTO{ID: "p-owner", Name: "ACME Group"},
			BenefitCodes: []string{"daily_allowance"},
		}, &services)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, services, 1)

	var calcResp api.CalculateResponse
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/services/"+services[0].ID+"/calculate", nil, &calcResp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return c, calcResp
}

// =============================================================================
// CLAIM LIFECYCLE
// =============================================================================

func TestAPI_FullDeclarationFlow(t *testing.T) {
	srv := newTestServer(t)

	c, calcResp := createCalculatedClaim(t, srv)

	assert.True(t, calcResp.OK, "errors: %v", calcResp.Errors)
	assert.Equal(t, "calculated", calcResp.Service.Status)
	require.Len(t, calcResp.Service.Indemnifications, 1)
	// 31 days minus 3 deductible days at 52.30/day.
	assert.Equal(t, "1464.4", calcResp.Service.Indemnifications[0].Amount)

	var loaded api.ClaimDTO
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/claims/"+c.ID, nil, &loaded)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "waiting_validation", loaded.SubStatus)
}

func TestAPI_GetClaim_NotFound(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/claims/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CloseAndReopen(t *testing.T) {
	srv := newTestServer(t)

	var c api.ClaimDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/claims", api.CreateClaimRequest{
		Number:   "CLM-API-002",
		Claimant: api.PartyDTO{ID: "p-1", Name: "Alice"},
	}, &c)

	var closed api.ClaimDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/claims/"+c.ID+"/close",
		api.CloseClaimRequest{SubStatus: "rejected"}, &closed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "closed", closed.Status)
	assert.NotNil(t, closed.EndDate)

	var reopened api.ClaimDTO
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/claims/"+c.ID+"/reopen",
		api.ReopenClaimRequest{Reason: "relapse"}, &reopened)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "reopened", reopened.Status)
	assert.Equal(t, "relapse", reopened.ReopenedReason)
	assert.Nil(t, reopened.EndDate)
}

func TestAPI_Reopen_OpenClaim_Rejected(t *testing.T) {
	srv := newTestServer(t)

	var c api.ClaimDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/claims", api.CreateClaimRequest{
		Number:   "CLM-API-003",
		Claimant: api.PartyDTO{ID: "p-1"},
	}, &c)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/claims/"+c.ID+"/reopen",
		api.ReopenClaimRequest{Reason: "relapse"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_DeclareLoss_EndDateRequired(t *testing.T) {
	srv := newTestServer(t)

	var c api.ClaimDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/claims", api.CreateClaimRequest{
		Number:   "CLM-API-004",
		Claimant: api.PartyDTO{ID: "p-1"},
	}, &c)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/claims/"+c.ID+"/losses", api.DeclareLossRequest{
		DescriptorCode: "temporary_incapacity",
		WithEndDate:    true,
		EventCode:      "illness",
		StartDate:      "2024-01-01",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// REVIEW FLOW
// =============================================================================

func TestAPI_SelectorSearchAndReview(t *testing.T) {
	srv := newTestServer(t)
	_, calcResp := createCalculatedClaim(t, srv)
	indID := calcResp.Service.Indemnifications[0].ID

	var working []api.IndemnificationDTO
	resp := doJSON(t, http.MethodGet,
		srv.URL+"/api/indemnifications?selector=status+%3D+calculated", nil, &working)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, working, 1)
	assert.Equal(t, indID, working[0].ID)

	var review api.ReviewResponse
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/indemnifications/review", api.ReviewRequest{
		Selector:  "status = calculated",
		Decisions: map[string]string{indID: "validate"},
	}, &review)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, review.Reviewed)
	assert.Empty(t, review.Errors)

	// Validated records are completed into paid on review.
	resp = doJSON(t, http.MethodGet,
		srv.URL+"/api/indemnifications?selector=status+%3D+paid", nil, &working)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, working, 1)
}

func TestAPI_SelectorSearch_BadSelector(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet,
		srv.URL+"/api/indemnifications?selector=color+%3D+blue", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// SCENARIOS AND CATALOG
// =============================================================================

func TestAPI_ListBenefits(t *testing.T) {
	srv := newTestServer(t)
	var benefits []api.BenefitDTO
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/benefits", nil, &benefits)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, benefits, 3)
}

func TestAPI_LoadScenario(t *testing.T) {
	srv := newTestServer(t)

	var c api.ClaimDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load",
		map[string]string{"scenario_id": "incapacity-basic"}, &c)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, c.Losses, 1)
	require.Len(t, c.Losses[0].Services, 1)
	assert.Equal(t, "calculated", c.Losses[0].Services[0].Status)
	assert.NotEmpty(t, c.Losses[0].Services[0].Indemnifications)
}
