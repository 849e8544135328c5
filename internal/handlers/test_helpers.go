package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/pmcoach/internal/auth"
	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/BradenHooton/pmcoach/internal/services"
	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSubscriberContext adds subscriber claims to the request context
func WithSubscriberContext(req *http.Request, subscriberID string) *http.Request {
	claims := &models.SubscriberClaims{
		Role:             "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{Subject: subscriberID},
	}
	return req.WithContext(auth.WithSubscriber(req.Context(), claims))
}

// WithURLParam sets a chi URL parameter on the request
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLoginThrottle implements LoginThrottleService for testing
type MockLoginThrottle struct {
	CheckAllowedFunc  func(identity string) models.LockoutDecision
	RecordFailureFunc func(identity string)
	ResetFunc         func(identity string)
}

func (m *MockLoginThrottle) CheckAllowed(identity string) models.LockoutDecision {
	if m.CheckAllowedFunc == nil {
		return models.LockoutDecision{Allowed: true}
	}
	return m.CheckAllowedFunc(identity)
}

func (m *MockLoginThrottle) RecordFailure(identity string) {
	if m.RecordFailureFunc != nil {
		m.RecordFailureFunc(identity)
	}
}

func (m *MockLoginThrottle) Reset(identity string) {
	if m.ResetFunc != nil {
		m.ResetFunc(identity)
	}
}

// MockUsageService implements UsageService for testing
type MockUsageService struct {
	TrackMessageFunc func(ctx context.Context, subscriberID string) services.MessageDecision
	UsageFunc        func(ctx context.Context, subscriberID string) (*services.UsageStatus, error)
}

func (m *MockUsageService) TrackMessage(ctx context.Context, subscriberID string) services.MessageDecision {
	if m.TrackMessageFunc == nil {
		return services.MessageDecision{}
	}
	return m.TrackMessageFunc(ctx, subscriberID)
}

func (m *MockUsageService) Usage(ctx context.Context, subscriberID string) (*services.UsageStatus, error) {
	if m.UsageFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UsageFunc(ctx, subscriberID)
}

// MockActivityService implements ActivityService for testing
type MockActivityService struct {
	TrackActivityFunc func(ctx context.Context, subscriberID string, activityType models.ActivityType, details models.ActivityDetails) bool
	HistoryFunc       func(ctx context.Context, subscriberID string, limit, offset int) ([]*models.ActivityEvent, error)
}

func (m *MockActivityService) TrackActivity(ctx context.Context, subscriberID string, activityType models.ActivityType, details models.ActivityDetails) bool {
	if m.TrackActivityFunc == nil {
		return true
	}
	return m.TrackActivityFunc(ctx, subscriberID, activityType, details)
}

func (m *MockActivityService) History(ctx context.Context, subscriberID string, limit, offset int) ([]*models.ActivityEvent, error) {
	if m.HistoryFunc == nil {
		return nil, nil
	}
	return m.HistoryFunc(ctx, subscriberID, limit, offset)
}

// MockSubscriptionChanger implements SubscriptionChanger for testing
type MockSubscriptionChanger struct {
	ChangeSubscriptionFunc func(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error)
}

func (m *MockSubscriptionChanger) ChangeSubscription(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error) {
	if m.ChangeSubscriptionFunc == nil {
		return sub, nil
	}
	return m.ChangeSubscriptionFunc(ctx, sub, resetUsage)
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
