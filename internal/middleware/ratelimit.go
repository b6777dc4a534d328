package middleware

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/pkg/config"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
	"github.com/noah-isme/exam-seating-api/pkg/response"
)

// tokenBucketScript refills in whole intervals and takes one token per call.
// Returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + (intervals * refill_tokens))
		last_refill = last_refill + (intervals * interval_ms)
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = interval_ms - (now_ms - last_refill)
	if retry_after_ms < 0 then retry_after_ms = 0 end
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// RateLimitOptions configures a token bucket limiter.
type RateLimitOptions struct {
	Prefix string
	Now    func() time.Time
	Logger *zap.Logger
}

// RateLimit guards a route group with a Redis token bucket keyed by user id, or client IP for
// anonymous callers. A nil client or disabled config yields a pass-through handler. Redis errors
// fail open.
func RateLimit(cfg config.RateLimitConfig, rdb redis.Scripter, opts RateLimitOptions) gin.HandlerFunc {
	if !cfg.Enabled || rdb == nil || cfg.Capacity <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if opts.Prefix == "" {
		opts.Prefix = "ratelimit"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ttl := bucketTTL(cfg)

	return func(c *gin.Context) {
		key := rateKey(opts.Prefix, c)
		args := []interface{}{
			opts.Now().UnixMilli(),
			cfg.Capacity,
			cfg.RefillTokens,
			cfg.RefillInterval.Milliseconds(),
			int64(ttl / time.Second),
		}
		vals, err := tokenBucketScript.Run(c.Request.Context(), rdb, []string{key}, args...).Int64Slice()
		if err != nil || len(vals) != 3 {
			opts.Logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(vals[1], 10))
		if vals[0] != 1 {
			secs := int64(math.Ceil(float64(vals[2]) / 1000.0))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.FormatInt(secs, 10))
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, fmt.Sprintf("rate limit exceeded, retry in %ds", secs)))
			return
		}
		c.Next()
	}
}

// bucketTTL keeps idle buckets around long enough to refill completely.
func bucketTTL(cfg config.RateLimitConfig) time.Duration {
	ttl := time.Minute
	if cfg.RefillTokens > 0 && cfg.RefillInterval > 0 {
		intervals := (cfg.Capacity + cfg.RefillTokens - 1) / cfg.RefillTokens
		if full := time.Duration(intervals) * cfg.RefillInterval; full > ttl {
			ttl = full
		}
	}
	return ttl + time.Second
}

func rateKey(prefix string, c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	route = strings.ReplaceAll(strings.Trim(route, "/"), "/", ".")
	if claims := CurrentClaims(c); claims != nil && claims.UserID != "" {
		return strings.Join([]string{prefix, route, "user", claims.UserID}, ":")
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return strings.Join([]string{prefix, route, "ip", ip}, ":")
}
