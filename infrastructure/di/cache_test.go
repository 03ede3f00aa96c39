package di

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCache_SetGet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache := NewInMemoryCache(ctx)

	require.NoError(t, cache.Set(ctx, "tree:car", 42, 60))
	v, ok := cache.Get(ctx, "tree:car")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	// non-positive ttl is not stored
	require.NoError(t, cache.Set(ctx, "tree:bike", 1, 0))
	_, ok = cache.Get(ctx, "tree:bike")
	assert.False(t, ok)
}

func TestInMemoryCache_Expired(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache := NewInMemoryCache(ctx)

	cache.items["old"] = cacheItem{value: "x", expiresAt: time.Now().Add(-time.Second)}

	_, ok := cache.Get(ctx, "old")
	assert.False(t, ok)
}

func TestInMemoryCache_DeletePrefix(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache := NewInMemoryCache(ctx)

	require.NoError(t, cache.Set(ctx, "GetTreeQuery:car", 1, 60))
	require.NoError(t, cache.Set(ctx, "ListCriteriaQuery:car", 2, 60))
	require.NoError(t, cache.Set(ctx, "GetTreeQuery:bike", 3, 60))

	require.NoError(t, cache.DeletePrefix(ctx, "GetTreeQuery:"))

	_, ok := cache.Get(ctx, "GetTreeQuery:car")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "GetTreeQuery:bike")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "ListCriteriaQuery:car")
	assert.True(t, ok)

	require.NoError(t, cache.Clear(ctx))
	_, ok = cache.Get(ctx, "ListCriteriaQuery:car")
	assert.False(t, ok)
}
