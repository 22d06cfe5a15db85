package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JimmyPiedrahita/netflis/stream-service/internal/config"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Minute)

	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, m.Set(ctx, "a", 10))
	size, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
}

func TestMemoryIsBounded(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Minute)

	require.NoError(t, m.Set(ctx, "a", 1))
	require.NoError(t, m.Set(ctx, "b", 2))
	require.NoError(t, m.Set(ctx, "c", 3))

	assert.Equal(t, 2, m.len())
	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(8, 20*time.Millisecond)
	require.NoError(t, m.Set(ctx, "a", 1))

	assert.Eventually(t, func() bool {
		_, err := m.Get(ctx, "a")
		return err == ErrCacheMiss
	}, time.Second, 10*time.Millisecond)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(config.CacheConfig{Driver: "memcached"})
	assert.Error(t, err)

	c, err := New(config.CacheConfig{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	_, err = New(config.CacheConfig{Driver: "redis"})
	assert.Error(t, err, "an empty address is refused before dialing")
}
