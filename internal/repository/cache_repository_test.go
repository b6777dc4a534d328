package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
)

type cachedProposal struct {
	ID    string   `json:"id"`
	Rolls []string `json:"rolls"`
}

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), mr
}

func TestCacheRepositorySetTake(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "seating:proposal:p1", cachedProposal{ID: "p1", Rolls: []string{"10-1"}}, time.Minute))
	assert.True(t, mr.Exists("seating:proposal:p1"))
	assert.Equal(t, time.Minute, mr.TTL("seating:proposal:p1"))

	var got cachedProposal
	require.NoError(t, repo.Take(ctx, "seating:proposal:p1", &got))
	assert.Equal(t, cachedProposal{ID: "p1", Rolls: []string{"10-1"}}, got)
	assert.False(t, mr.Exists("seating:proposal:p1"))

	assert.ErrorIs(t, repo.Take(ctx, "seating:proposal:p1", &got), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryTakeIsExclusive(t *testing.T) {
	repo, _ := newCacheRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, "seating:proposal:p1", cachedProposal{ID: "p1"}, time.Minute))

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got cachedProposal
			if repo.Take(ctx, "seating:proposal:p1", &got) == nil {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners)
}

func TestCacheRepositoryTTLExpiry(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k", cachedProposal{ID: "x"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	var got cachedProposal
	assert.ErrorIs(t, repo.Take(ctx, "k", &got), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.NoError(t, repo.Set(ctx, "k", 1, time.Minute))
	var v int
	assert.ErrorIs(t, repo.Take(ctx, "k", &v), appErrors.ErrCacheMiss)
}
