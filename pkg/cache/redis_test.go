package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/pkg/config"
)

func redisConfig(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port, DialTimeout: time.Second}
}

func TestNewRedisAndCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr)

	client, err := NewRedis(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	check := Check(client)
	assert.NoError(t, check(context.Background()))

	mr.Close()
	assert.Error(t, check(context.Background()))
}

func TestNewRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr)
	mr.Close()

	_, err := NewRedis(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), Addr(cfg))
}
