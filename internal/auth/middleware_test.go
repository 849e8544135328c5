package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret       = "super-secret-jwt-token-with-at-least-32-characters"
	testSubscriberID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

func signTestToken(t *testing.T, secret string, method jwt.SigningMethod, claims *models.SubscriberClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() *models.SubscriberClaims {
	return &models.SubscriberClaims{
		Email: "pm@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testSubscriberID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestTokenVerifier_ValidToken(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "authenticated")

	claims, err := verifier.ValidateToken(signTestToken(t, testSecret, jwt.SigningMethodHS256, validClaims()))

	require.NoError(t, err)
	assert.Equal(t, testSubscriberID, claims.Subject)
	assert.Equal(t, "pm@example.com", claims.Email)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "authenticated")

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	badSubject := validClaims()
	badSubject.Subject = "service-role"

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signTestToken(t, "another-secret-that-is-long-enough-to-sign", jwt.SigningMethodHS256, validClaims())},
		{"wrong algorithm", signTestToken(t, testSecret, jwt.SigningMethodHS512, validClaims())},
		{"expired", signTestToken(t, testSecret, jwt.SigningMethodHS256, expired)},
		{"wrong audience", signTestToken(t, testSecret, jwt.SigningMethodHS256, wrongAudience)},
		{"no expiry", signTestToken(t, testSecret, jwt.SigningMethodHS256, noExpiry)},
		{"subject not uuid", signTestToken(t, testSecret, jwt.SigningMethodHS256, badSubject)},
		{"garbage", "not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.ValidateToken(tt.token)
			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "authenticated")
	var seen *models.SubscriberClaims
	handler := AuthMiddleware(verifier, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSubscriberFromContext(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + signTestToken(t, testSecret, jwt.SigningMethodHS256, validClaims()), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, testSubscriberID, seen.Subject)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequireInternalKey(t *testing.T) {
	delay := NewTimingDelay(TimingConfig{BaseDelay: 5 * time.Millisecond})
	called := false
	handler := RequireInternalKey("internal-key-32-characters-long!", delay, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "internal-key-32-characters-long?", http.StatusUnauthorized},
		{"prefix", "internal-key", http.StatusUnauthorized},
		{"correct", "internal-key-32-characters-long!", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(http.MethodPost, "/v1/login-attempts/check", nil)
			if tt.key != "" {
				req.Header.Set(InternalKeyHeader, tt.key)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status == http.StatusOK, called)
		})
	}
}

func TestGetSubscriberFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Nil(t, GetSubscriberFromContext(req))

	req = req.WithContext(WithSubscriber(req.Context(), validClaims()))
	assert.NotNil(t, GetSubscriberFromContext(req))
}
