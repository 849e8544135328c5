package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/pmcoach/internal/auth"
	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultInternalRateLimit covers the login-attempt endpoints called by the auth tier
func DefaultInternalRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 600}
}

// DefaultSubscriberRateLimit covers subscriber-facing endpoints
func DefaultSubscriberRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 120}
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteTooManyRequests(w, "rate limit exceeded")
}

// RateLimitByIP limits requests per resolved client IP
func RateLimitByIP(config RateLimitConfig, resolver *pkghttp.ClientIPResolver) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(resolver.RateLimitKey),
		httprate.WithLimitHandler(writeRateLimited),
	)
}

// RateLimitBySubscriber limits requests per authenticated subscriber, falling
// back to client IP. It must run after auth.AuthMiddleware.
func RateLimitBySubscriber(config RateLimitConfig, resolver *pkghttp.ClientIPResolver) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetSubscriberFromContext(r); claims != nil {
				return "sub:" + claims.Subject, nil
			}
			return resolver.RateLimitKey(r)
		}),
		httprate.WithLimitHandler(writeRateLimited),
	)
}
