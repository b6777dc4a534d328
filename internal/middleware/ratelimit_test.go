package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/pkg/config"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newLimitedRouter(t *testing.T, cfg config.RateLimitConfig, clock *fakeClock) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/", JWT(testTokens), RateLimit(cfg, client, RateLimitOptions{Prefix: "rl", Now: clock.Now}))
	group.POST("/seating/generate", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, mr
}

func TestRateLimitTokenBucket(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: 10 * time.Second}
	r, mr := newLimitedRouter(t, cfg, clock)

	w := doRequest(r, http.MethodPost, "/seating/generate", "Bearer staff-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))

	w = doRequest(r, http.MethodPost, "/seating/generate", "Bearer staff-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	clock.now = clock.now.Add(4 * time.Second)
	w = doRequest(r, http.MethodPost, "/seating/generate", "Bearer staff-token")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "6", w.Header().Get("Retry-After"))
	assert.Equal(t, appErrors.ErrTooManyRequests.Code, errorCode(t, w))

	// other users have their own bucket
	w = doRequest(r, http.MethodPost, "/seating/generate", "Bearer admin-token")
	assert.Equal(t, http.StatusOK, w.Code)

	clock.now = clock.now.Add(6 * time.Second)
	w = doRequest(r, http.MethodPost, "/seating/generate", "Bearer staff-token")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.True(t, mr.Exists("rl:seating.generate:user:u-staff"))
	assert.Greater(t, mr.TTL("rl:seating.generate:user:u-staff"), time.Duration(0))
}

func TestRateLimitFailsOpenWhenRedisDown(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute}
	r, mr := newLimitedRouter(t, cfg, clock)
	mr.Close()

	for i := 0; i < 3; i++ {
		w := doRequest(r, http.MethodPost, "/seating/generate", "Bearer staff-token")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/x", RateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, RateLimitOptions{}), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/y", RateLimit(config.RateLimitConfig{Enabled: false, Capacity: 1}, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), RateLimitOptions{}), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/x", "").Code)
		assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/y", "").Code)
	}
}

func TestRateKeyFallsBackToClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var key string
	r := gin.New()
	r.GET("/plans/:id", func(c *gin.Context) { key = rateKey("rl", c) })

	doRequest(r, http.MethodGet, "/plans/42", "")
	assert.Equal(t, "rl:plans.:id:ip:192.0.2.1", key)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, time.Minute+time.Second, bucketTTL(config.RateLimitConfig{Capacity: 5}))
	assert.Equal(t, 50*time.Minute+time.Second, bucketTTL(config.RateLimitConfig{Capacity: 10, RefillTokens: 2, RefillInterval: 10 * time.Minute}))
}
