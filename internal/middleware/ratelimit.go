package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/alterbase/cdn/internal/metrics"
	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/ratelimit"
	"github.com/alterbase/cdn/internal/utils"
)

// RateLimitMiddleware enforces the per-IP upload rate limit. Only the paths
// returned true by limited are throttled; everything else passes through.
func RateLimitMiddleware(limiter *ratelimit.Limiter, limited func(r *http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limited(r) {
				next.ServeHTTP(w, r)
				return
			}

			ip := utils.GetClientIP(r)
			allowed, retryAfter := limiter.Allow(ip)
			if !allowed {
				metrics.RateLimitedTotal.Inc()
				slog.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"retry_after", retryAfter,
				)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(models.ErrorResponse{
					Error: "Rate limit exceeded. Please try again later.",
					Code:  "RATE_LIMIT_EXCEEDED",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UploadsOnly limits POST requests to the upload endpoint.
func UploadsOnly(r *http.Request) bool {
	return r.Method == http.MethodPost && r.URL.Path == "/upload"
}
