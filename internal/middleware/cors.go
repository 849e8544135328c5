package middleware

import (
	"net/http"

	"github.com/BradenHooton/pmcoach/internal/auth"
	"github.com/go-chi/cors"
)

// CORS allows the SaaS front-end origins to call subscriber endpoints with a bearer token
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			// service-to-service calls never come from a browser
			if r.Header.Get(auth.InternalKeyHeader) != "" {
				return false
			}
			for _, allowed := range allowedOrigins {
				if allowed == origin {
					return true
				}
			}
			return false
		},
	})
}
