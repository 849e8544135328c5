package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/BradenHooton/pmcoach/internal/auth"
	"github.com/BradenHooton/pmcoach/internal/config"
	"github.com/BradenHooton/pmcoach/internal/database"
	"github.com/BradenHooton/pmcoach/internal/handlers"
	middlewareCustom "github.com/BradenHooton/pmcoach/internal/middleware"
	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/BradenHooton/pmcoach/internal/repositories"
	"github.com/BradenHooton/pmcoach/internal/routes"
	"github.com/BradenHooton/pmcoach/internal/services"
	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
)

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Config *config.Config

	// Dependency references for inspection in tests
	Clock  *clockwork.FakeClock
	Ledger *repositories.AttemptLedger
}

// NewTestServer initializes a complete HTTP server over the Postgres store.
// The login throttle runs on a fake clock so lockout expiry can be driven by tests.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: "0",
			Env:  "test",
		},
		Store: config.StoreConfig{
			Backend: config.StoreBackendPostgres,
			Timeout: 3 * time.Second,
		},
		Governance: config.GovernanceConfig{
			LoginMaxAttempts:     5,
			LoginLockoutDuration: 15 * time.Minute,
			FreePlanID:           "free",
		},
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret-32-characters-long-for-testing",
			JWTAudience:    "authenticated",
			InternalAPIKey: "test-internal-key",
		},
	}

	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	subscriptionRepo := repositories.NewSubscriptionRepository(db)
	activityRepo := repositories.NewActivityRepository(db)
	ledger := repositories.NewAttemptLedger(clock)

	throttle := services.NewLoginThrottle(ledger, services.ThrottleConfig{
		MaxAttempts:     cfg.Governance.LoginMaxAttempts,
		LockoutDuration: cfg.Governance.LoginLockoutDuration,
	}, clock, logger)
	meter := services.NewUsageMeter(subscriptionRepo, cfg.Store.Timeout, logger)
	recorder := services.NewActivityRecorder(activityRepo, subscriptionRepo, services.RecorderConfig{
		FreePlanID:   cfg.Governance.FreePlanID,
		StoreTimeout: cfg.Store.Timeout,
	}, clockwork.NewRealClock(), logger)
	governance := services.NewGovernanceService(meter, recorder, subscriptionRepo, cfg.Store.Timeout, logger)
	subscriptionService := services.NewSubscriptionService(subscriptionRepo, nil, recorder, cfg.Store.Timeout, logger)

	router := routes.NewRouter(
		routes.Handlers{
			Throttle:     handlers.NewThrottleHandler(throttle),
			Usage:        handlers.NewUsageHandler(governance),
			Activity:     handlers.NewActivityHandler(governance),
			Subscription: handlers.NewSubscriptionHandler(subscriptionService),
			Health:       handlers.NewHealthHandler(map[string]handlers.HealthChecker{"postgres": db}),
		},
		routes.Config{
			Env:                 cfg.Server.Env,
			InternalAPIKey:      cfg.Auth.InternalAPIKey,
			InternalRateLimit:   middlewareCustom.RateLimitConfig{RequestsPerMinute: 10000},
			SubscriberRateLimit: middlewareCustom.RateLimitConfig{RequestsPerMinute: 10000},
		},
		auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience),
		nil,
		pkghttp.NewClientIPResolver(nil),
		logger,
	)

	return &TestServer{
		Server: httptest.NewServer(router),
		DB:     db,
		Config: cfg,
		Clock:  clock,
		Ledger: ledger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// InternalRequest makes a service-to-service request carrying the internal key
func (ts *TestServer) InternalRequest(method, path string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{
		auth.InternalKeyHeader: ts.Config.Auth.InternalAPIKey,
	})
}

// SubscriberRequest makes a request authenticated as subscriberID
func (ts *TestServer) SubscriberRequest(method, path, subscriberID string, body interface{}) (*http.Response, error) {
	token, err := ts.SignToken(subscriberID, time.Hour)
	if err != nil {
		return nil, err
	}
	return ts.Request(method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// SignToken issues a Supabase-shaped access token for subscriberID
func (ts *TestServer) SignToken(subscriberID string, ttl time.Duration) (string, error) {
	claims := models.SubscriberClaims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subscriberID,
			Audience:  jwt.ClaimStrings{ts.Config.Auth.JWTAudience},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.Config.Auth.JWTSecret))
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorMessage extracts error message from error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
