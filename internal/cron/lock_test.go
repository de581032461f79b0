package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := m.values[key]; exists {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestRedisLockAcquireAndRelease(t *testing.T) {
	store := newMemoryStore()
	lock, err := NewRedisLock(store, "fs:lock:worker", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second instance cannot acquire while the first holds it.
	other, err := NewRedisLock(store, "fs:lock:worker", time.Minute)
	require.NoError(t, err)
	ok, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx))
	ok, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseOnlyWhenOwned(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	first, err := NewRedisLock(store, "fs:lock:worker", time.Minute)
	require.NoError(t, err)
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate TTL expiry and takeover by another instance.
	require.NoError(t, store.Del(ctx, "fs:lock:worker"))
	second, err := NewRedisLock(store, "fs:lock:worker", time.Minute)
	require.NoError(t, err)
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// The stale holder must not delete the new owner's lock.
	require.NoError(t, first.Release(ctx))
	_, err = store.Get(ctx, "fs:lock:worker")
	assert.NoError(t, err)
}
