package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheServiceHitAndMiss(t *testing.T) {
	store := newMemoryCache()
	svc := NewCacheService(store, NewMetricsService(), time.Minute, zap.NewNop(), true)

	var out string
	hit, err := svc.Get(context.Background(), "k1", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(context.Background(), "k1", "value", 0))

	hit, err = svc.Get(context.Background(), "k1", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "value", out)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	store := newMemoryCache()
	svc := NewCacheService(store, nil, time.Minute, zap.NewNop(), false)

	require.NoError(t, svc.Set(context.Background(), "k1", "value", time.Minute))
	assert.Zero(t, store.sets)

	var out string
	hit, err := svc.Get(context.Background(), "k1", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceInvalidatePattern(t *testing.T) {
	store := newMemoryCache()
	svc := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)

	require.NoError(t, svc.Set(context.Background(), "performance:student:s1", "a", time.Minute))
	require.NoError(t, svc.Set(context.Background(), "performance:student:s2", "b", time.Minute))

	require.NoError(t, svc.Invalidate(context.Background(), "performance:student:s1*"))
	assert.Len(t, store.entries, 1)
}

func TestNilCacheServiceIsSafe(t *testing.T) {
	var svc *CacheService

	assert.False(t, svc.Enabled())
	hit, err := svc.Get(context.Background(), "k1", nil)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, svc.Set(context.Background(), "k1", "v", time.Minute))
	require.NoError(t, svc.Invalidate(context.Background(), "k1"))
}
