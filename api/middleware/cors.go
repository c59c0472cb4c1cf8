package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/packquote-backend/pkg/config"
)

// CORS applies the browser origin policy. A "*" origin turns credentials off,
// since browsers refuse credentialed responses to a wildcard.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	wildcard := slices.Contains(cfg.AllowedOrigins, "*")
	return cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", idempotencyHeader, CustomerHeader, requestIDHeader},
		ExposedHeaders: []string{
			requestIDHeader,
			replayedHeader,
			rateLimitLimitHeader,
			rateLimitRemainingHeader,
			retryAfterHeader,
		},
		AllowCredentials: !wildcard,
		MaxAge:           int(cfg.MaxAge.Seconds()),
	}).Handler
}
