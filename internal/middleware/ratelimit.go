package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimitConfig controls the fixed-window limiter.
type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

// RateLimit returns a fixed-window per-user (falling back to per-IP)
// rate limiter backed by redis. When redis is unreachable the request
// is let through; the limiter protects capacity, it is not a security
// boundary.
func RateLimit(cfg RateLimitConfig, rdb *redis.Client) func(http.Handler) http.Handler {
	if !cfg.Enabled || rdb == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.Window <= 0 {
		log.Warn().Msg("Rate limiter window not configured, defaulting to 1m")
		cfg.Window = time.Minute
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			subject := GetUserID(ctx)
			if subject == "" {
				subject = r.RemoteAddr
			}
			window := time.Now().Unix() / int64(cfg.Window.Seconds())
			key := fmt.Sprintf("ratelimit:%s:%d", subject, window)

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				log.Warn().Err(err).Msg("Rate limiter redis error, letting request through")
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(ctx, key, cfg.Window)
			}

			remaining := int64(cfg.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(cfg.Limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				respondError(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
