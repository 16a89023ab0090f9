package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/Lionel-Logan/InsightX/internal/rate"
	"go.uber.org/zap"
)

// RequestLimiter counts requests per client.
type RequestLimiter interface {
	Allow(ctx context.Context, client string) (rate.Decision, error)
}

// RateLimit answers 429 once a client address exhausts its window. Limiter
// errors let the request through.
func RateLimit(limiter RequestLimiter, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			d, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Warn("request limiter unavailable, allowing", zap.String("client", ip), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if d.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
