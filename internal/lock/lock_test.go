package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "job:shopify.products:abc", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "job:shopify.products:abc", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "job:shopify.orders:abc", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "job:shopify.products:abc", time.Minute)
	require.NoError(t, err)
	again()
}

func TestLocalLocker_ExpiredLockCanBeTaken(t *testing.T) {
	l := NewLocal()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	stale, err := l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	// the stale holder must not release the new holder's lock
	stale()
	_, err = l.Acquire(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)
	fresh()
}

func TestNew_PicksBackend(t *testing.T) {
	l, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &LocalLocker{}, l)

	l, err = New("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.IsType(t, &RedisLocker{}, l)

	_, err = New("not a url")
	assert.Error(t, err)
}
