package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysAreNamespaced(t *testing.T) {
	assert.Equal(t, "ms:session:u-1:v-2", SessionKey("u-1", "v-2"))
	assert.Equal(t, "ms:idempotency:webhook:PAY-1:settlement", IdempotencyKey("webhook", "PAY-1:settlement"))
}

func TestMemoryStoreSetNXAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemory()
	store.now = func() time.Time { return now }

	ok, err := store.SetNX(ctx, "k", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetNX(ctx, "k", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStoreDel(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Set(ctx, "a", "x", 0))
	require.NoError(t, store.Del(ctx, "a"))

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
}
