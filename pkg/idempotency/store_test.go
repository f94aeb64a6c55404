package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

func TestSeen(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	key := s.Key("order.events", 2, 118)
	assert.Equal(t, "idem:order.events:2:118", key)

	seen, err := s.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = s.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, s.Forget(ctx, key))
	seen, err = s.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists(key))
}

func TestLookupRemember(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	_, ok, err := s.Lookup(ctx, "3f1c")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remember(ctx, "3f1c", "42"))
	v, ok, err := s.Lookup(ctx, "3f1c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", v)
	assert.Equal(t, time.Hour, mr.TTL("idem:request:3f1c"))

	mr.SetError("LOADING")
	_, _, err = s.Lookup(ctx, "3f1c")
	assert.Error(t, err)
}
