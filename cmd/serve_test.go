package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hps-internal/dealdesk/internal/model"
	"github.com/hps-internal/dealdesk/internal/store"
	"github.com/hps-internal/dealdesk/internal/underwrite"
)

func newTestRouter(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	router := newRouter(st, underwrite.DefaultPolicySet(), rate.NewLimiter(rate.Inf, 0))
	return router, st
}

func dealPayload(name string) map[string]any {
	strike := 170000.0
	mao := 175000.0
	return map[string]any{
		"name":    name,
		"address": "114 Palmetto Ave",
		"deal": underwrite.DealInput{
			PriceGeometry: underwrite.PriceGeometryInput{
				RespectFloor: 150000,
				BuyerCeiling: 200000,
				SellerStrike: &strike,
				ARV:          250000,
			},
			NetClearance: underwrite.NetClearanceInput{
				PurchasePrice: 150000,
				MaoWholesale:  &mao,
				Arv:           250000,
			},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateEvaluation(t *testing.T) {
	router, _ := newTestRouter(t)

	payload, err := json.Marshal(dealPayload("palmetto"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, "body: %s", rr.Body.String())

	var ev model.Evaluation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ev))
	assert.NotEmpty(t, ev.ID, "saved evaluation should get an ID")
	assert.Equal(t, "palmetto", ev.DealName)
	assert.NotEmpty(t, ev.Recommendation, "recommendation should be denormalized from the verdict")
	require.NotNil(t, ev.Result)
	assert.InDelta(t, 24500, ev.Result.NetClearance.Assignment.Net, 0.01)
}

func TestCreateEvaluation_InvalidBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluations", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateEvaluation_MissingName(t *testing.T) {
	router, _ := newTestRouter(t)

	payload := dealPayload("")
	payload["name"] = ""
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluations", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "name is required")
}

func TestGetEvaluation(t *testing.T) {
	router, st := newTestRouter(t)

	saved, err := st.SaveEvaluation(context.Background(), model.Evaluation{DealName: "palmetto"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/evaluations/"+saved.ID, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var ev model.Evaluation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ev))
	assert.Equal(t, saved.ID, ev.ID)
	assert.Equal(t, "palmetto", ev.DealName)
}

func TestGetEvaluation_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/evaluations/no-such-id", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "not found")
}

func TestListEvaluations(t *testing.T) {
	router, st := newTestRouter(t)

	_, err := st.SaveEvaluation(context.Background(), model.Evaluation{DealName: "palmetto", Recommendation: underwrite.RecommendPursue})
	require.NoError(t, err)
	_, err = st.SaveEvaluation(context.Background(), model.Evaluation{DealName: "oak", Recommendation: underwrite.RecommendPass})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/evaluations?recommendation=pass", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var evals []model.Evaluation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &evals))
	require.Len(t, evals, 1)
	assert.Equal(t, "oak", evals[0].DealName)
}

func TestListEvaluations_Empty(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/evaluations", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestListEvaluations_InvalidLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/evaluations?limit=nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRateLimit(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "rate_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	router := newRouter(st, underwrite.DefaultPolicySet(), rate.NewLimiter(0, 0))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}
