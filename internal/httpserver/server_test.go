package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/pizza-rewards/internal/analytics"
	"github.com/ILLUVRSE/pizza-rewards/internal/auth"
	"github.com/ILLUVRSE/pizza-rewards/internal/coupon"
	"github.com/ILLUVRSE/pizza-rewards/internal/health"
	"github.com/ILLUVRSE/pizza-rewards/internal/httpserver"
	"github.com/ILLUVRSE/pizza-rewards/internal/models"
	"github.com/ILLUVRSE/pizza-rewards/internal/service"
	"github.com/ILLUVRSE/pizza-rewards/internal/store"
)

const vendorSecret = "test-secret"

type fakeEvaluator struct{}

func (fakeEvaluator) Evaluate(_ context.Context, req models.EvaluationRequest) (models.EvaluationResult, error) {
	if len(req.Story) < 10 {
		return models.EvaluationResult{}, service.ErrInvalidInput
	}
	return models.EvaluationResult{Rating: 8, Tier: models.RewardPremium, SourceTier: "primary-ai"}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeStats struct{}

func (fakeStats) Stats() analytics.Stats { return analytics.Stats{Enqueued: 4} }

func newRouter(t *testing.T, pinger httpserver.Pinger) (http.Handler, *health.Tracker) {
	t.Helper()
	tier := models.ProviderTier{Name: "primary-ai", Kind: models.ProviderRemotePrimary, MaxAttempts: 1}
	tracker := health.NewTracker(3, health.RecoverDecrement, tier)
	svc := service.New("CONF24", fakeEvaluator{}, coupon.NewIssuer(store.NewMemoryLedger()), tracker, nil)
	vendors, err := auth.NewVendorVerifier(vendorSecret, false)
	require.NoError(t, err)
	return httpserver.New(svc, pinger, vendors, fakeStats{}, 5*time.Second).Router(), tracker
}

func do(t *testing.T, h http.Handler, method, path, body string, authorize bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if authorize {
		tok, err := auth.SignVendorToken(vendorSecret, "slice-shack", time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSubmitStory(t *testing.T) {
	h, _ := newRouter(t, fakePinger{})

	rr := do(t, h, http.MethodPost, "/stories", `{"userId":"alice","story":"my pizza adventure"}`, false)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var first service.SubmitResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &first))
	assert.Contains(t, first.Code, "PIZZA-CONF24-PREMIUM-")

	rr = do(t, h, http.MethodPost, "/stories", `{"userId":"alice","story":"my pizza adventure"}`, false)
	assert.Equal(t, http.StatusOK, rr.Code)
	var second service.SubmitResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &second))
	assert.True(t, second.AlreadyIssued)
	assert.Equal(t, first.Code, second.Code)
}

func TestSubmitStoryBadRequests(t *testing.T) {
	h, _ := newRouter(t, fakePinger{})
	for _, body := range []string{
		``,
		`{"userId":"bob","story":"short"}`,
		`{"userId":"bob","story":"long enough story","extra":1}`,
		`{"userId":"bob","story":"long enough story"}{}`,
	} {
		rr := do(t, h, http.MethodPost, "/stories", body, false)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestValidateCoupon(t *testing.T) {
	h, _ := newRouter(t, fakePinger{})

	rr := do(t, h, http.MethodPost, "/coupons/validate", `{"code":"PIZZA-CONF24-PREMIUM-A7B2C3-1445"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodPost, "/coupons/validate", `{"code":"PIZZA-CONF24-PREMIUM-A7B2C3-1445"}`, true)
	require.Equal(t, http.StatusOK, rr.Code)
	var info service.CouponInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, "LARGE", info.PizzaSize)
	assert.Equal(t, "14:45", info.TimeIssued)

	reasons := map[string]string{
		"PIZZA-CONF24-ELITE-A7B2C3-1445":   "unknown_tier",
		"PIZZA-CONF23-PREMIUM-A7B2C3-1445": "conference_mismatch",
		"PIZZA-CONF24-PREMIUM":             "invalid_format",
	}
	for code, reason := range reasons {
		rr = do(t, h, http.MethodPost, "/coupons/validate", `{"code":"`+code+`"}`, true)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, reason, body["reason"], code)
		assert.Equal(t, false, body["valid"])
	}
}

func TestProviderHealthAndReset(t *testing.T) {
	h, tracker := newRouter(t, fakePinger{})
	for i := 0; i < 3; i++ {
		tracker.RecordFailure("primary-ai")
	}

	rr := do(t, h, http.MethodGet, "/providers/health", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Providers []health.Metrics `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Providers, 1)
	assert.False(t, body.Providers[0].Usable)
	assert.Equal(t, 3, body.Providers[0].FailureScore)

	rr = do(t, h, http.MethodPost, "/providers/primary-ai/reset", "", false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = do(t, h, http.MethodPost, "/providers/primary-ai/reset", "", true)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, tracker.IsUsable("primary-ai"))

	rr = do(t, h, http.MethodPost, "/providers/missing/reset", "", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealth(t *testing.T) {
	h, _ := newRouter(t, fakePinger{})
	rr := do(t, h, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"enqueued":4`)

	h, _ = newRouter(t, fakePinger{err: errors.New("db down")})
	rr = do(t, h, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "db down")
}
