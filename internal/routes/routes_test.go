package routes_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/pmcoach/internal/auth"
	"github.com/BradenHooton/pmcoach/internal/handlers"
	"github.com/BradenHooton/pmcoach/internal/middleware"
	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/BradenHooton/pmcoach/internal/routes"
	"github.com/BradenHooton/pmcoach/internal/services"
	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret      = "test-secret-key-at-least-32-bytes-long"
	testInternalKey = "internal-key-for-tests"
	testSubscriber  = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := routes.Handlers{
		Throttle: handlers.NewThrottleHandler(&handlers.MockLoginThrottle{}),
		Usage: handlers.NewUsageHandler(&handlers.MockUsageService{
			UsageFunc: func(ctx context.Context, id string) (*services.UsageStatus, error) {
				return &services.UsageStatus{PlanID: "free", Remaining: 50}, nil
			},
		}),
		Activity:     handlers.NewActivityHandler(&handlers.MockActivityService{}),
		Subscription: handlers.NewSubscriptionHandler(&handlers.MockSubscriptionChanger{}),
		Health:       handlers.NewHealthHandler(map[string]handlers.HealthChecker{"store": &handlers.MockHealthChecker{}}),
	}
	cfg := routes.Config{
		Env:                 "development",
		InternalAPIKey:      testInternalKey,
		InternalRateLimit:   middleware.DefaultInternalRateLimit(),
		SubscriberRateLimit: middleware.DefaultSubscriberRateLimit(),
	}

	return routes.NewRouter(h, cfg,
		auth.NewTokenVerifier(testSecret, "authenticated"),
		nil,
		pkghttp.NewClientIPResolver(nil),
		logger,
	)
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	claims := models.SubscriberClaims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestMetricsIsPublic(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInternalRoutesRequireKey(t *testing.T) {
	router := newTestRouter(t)
	body := `{"identity":"a@x.com"}`

	tests := []struct {
		name     string
		key      string
		expected int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "nope", http.StatusUnauthorized},
		{"valid key", testInternalKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/login-attempts/check", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.key != "" {
				req.Header.Set(auth.InternalKeyHeader, tt.key)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestInternalRoutesRejectBearerToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("POST", "/v1/login-attempts/reset", strings.NewReader(`{"identity":"a@x.com"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSubscriber))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubscriberRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/usage", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("GET", "/v1/usage", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSubscriber))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"plan_id":"free"`)
}

func TestSubscriberRoutesRejectInternalKey(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("POST", "/v1/usage/messages", nil)
	req.Header.Set(auth.InternalKeyHeader, testInternalKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubscriptionRouteIsInternal(t *testing.T) {
	router := newTestRouter(t)
	body := `{"plan_id":"pro","message_limit":100}`

	req := httptest.NewRequest("PUT", "/v1/subscriptions/"+testSubscriber, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSubscriber))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest("PUT", "/v1/subscriptions/"+testSubscriber, strings.NewReader(body))
	req.Header.Set(auth.InternalKeyHeader, testInternalKey)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
