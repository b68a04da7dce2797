package snapshot

import (
	"context"
	"testing"
	"time"

	redismock "github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k1", []byte("payload"), 0))
	v, ok, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(v))
}

func TestMemoryStoreExpires(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k1", []byte("payload"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, ok, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreHitAndMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedis(db)
	ctx := context.Background()

	mock.ExpectGet("found").SetVal("hello")
	v, ok, err := s.Get(ctx, "found")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(v))

	mock.ExpectGet("missing").RedisNil()
	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectSet("k2", []byte("val"), time.Minute).SetVal("OK")
	require.NoError(t, s.Set(ctx, "k2", []byte("val"), time.Minute))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardedTripsAfterConsecutiveFailures(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := NewRedis(db)
	g := NewGuarded("test", inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mock.ExpectGet("k").SetErr(assert.AnError)
		_, ok, err := g.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	// Breaker should now be open; Get returns ok=false without hitting
	// the mock (no further expectation registered).
	_, ok, err := g.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
