package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/pmcoach/internal/models"
	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SubscriberContextKey is the key for storing subscriber claims in context
	SubscriberContextKey contextKey = "subscriber"

	// InternalKeyHeader carries the shared key for service-to-service calls
	InternalKeyHeader = "X-Internal-Key"
)

// AuthMiddleware validates Supabase bearer tokens and injects the claims into context
func AuthMiddleware(verifier *TokenVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := verifier.ValidateToken(parts[1])
			if err != nil {
				logger.DebugContext(r.Context(), "rejected bearer token", slog.Any("error", err))
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), SubscriberContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireInternalKey guards service-to-service routes with a shared key.
// Failed attempts are delayed by delay so response timing reveals nothing.
func RequireInternalKey(key string, delay *TimingDelay, logger *slog.Logger) func(next http.Handler) http.Handler {
	expected := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			provided := []byte(r.Header.Get(InternalKeyHeader))

			if len(provided) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
				if delay != nil {
					delay.WaitFrom(start, false)
				}
				logger.WarnContext(r.Context(), "internal key rejected",
					slog.String("path", r.URL.Path))
				pkghttp.WriteUnauthorized(w, "invalid internal key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetSubscriberFromContext extracts subscriber claims from request context
func GetSubscriberFromContext(r *http.Request) *models.SubscriberClaims {
	claims, ok := r.Context().Value(SubscriberContextKey).(*models.SubscriberClaims)
	if !ok {
		return nil
	}
	return claims
}

// WithSubscriber returns a copy of ctx carrying claims
func WithSubscriber(ctx context.Context, claims *models.SubscriberClaims) context.Context {
	return context.WithValue(ctx, SubscriberContextKey, claims)
}
