package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/ThinkYuvraj/Sociale/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// fixedWindow counts one hit and makes sure the key expires, in a single
// round trip. Returns {count, pttl}.
var fixedWindow = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	local ttl = redis.call('PTTL', KEYS[1])
	if count == 1 or ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {count, ttl}
`)

// RateLimit allows limit requests per client IP in each fixed window.
// Redis errors let the request through.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := websocket.ClientIP(r)
			key := fmt.Sprintf("ratelimit:%s", ip)

			result, err := fixedWindow.Run(r.Context(), rdb, []string{key}, window.Milliseconds()).Int64Slice()
			if err != nil || len(result) != 2 {
				log.Warn().Err(err).Str("ip", ip).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			count, ttl := result[0], time.Duration(result[1])*time.Millisecond

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(limit) {
				retry := int((ttl + time.Second - 1) / time.Second)
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeAppError(w, app_error.NewAppError(http.StatusTooManyRequests, "too many requests, please try again later", "rate-limit"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
