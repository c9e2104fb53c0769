package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
)

func newTestRedisLocker(t *testing.T, opts ...RedisOption) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]RedisOption{WithRetryInterval(5 * time.Millisecond)}, opts...)
	return NewRedisLocker(client, logger, opts...), srv
}

func TestRedisLocker_HoldsKeyWhileRunning(t *testing.T) {
	locker, srv := newTestRedisLocker(t, WithTTL(time.Minute))
	key := keyPrefix + "loan-1"

	err := locker.WithLock(context.Background(), "loan-1", func(ctx context.Context) error {
		assert.True(t, srv.Exists(key))
		assert.Equal(t, time.Minute, srv.TTL(key))
		return nil
	})

	require.NoError(t, err)
	assert.False(t, srv.Exists(key), "lock is released after fn returns")
}

func TestRedisLocker_ReturnsFnError(t *testing.T) {
	locker, srv := newTestRedisLocker(t)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "loan-1", func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, srv.Exists(keyPrefix+"loan-1"))
}

func TestRedisLocker_TimesOutWhileHeld(t *testing.T) {
	locker, srv := newTestRedisLocker(t)
	require.NoError(t, srv.Set(keyPrefix+"loan-1", "someone-else"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	called := false
	err := locker.WithLock(ctx, "loan-1", func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
	got, _ := srv.Get(keyPrefix + "loan-1")
	assert.Equal(t, "someone-else", got, "a foreign lock is never released")
}

func TestRedisLocker_DoesNotReleaseForeignToken(t *testing.T) {
	locker, srv := newTestRedisLocker(t)
	key := keyPrefix + "loan-1"

	err := locker.WithLock(context.Background(), "loan-1", func(context.Context) error {
		// Our lock expired and another process took it.
		return srv.Set(key, "other-token")
	})

	require.NoError(t, err)
	got, err := srv.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-token", got)
}

func TestRedisLocker_SerialisesSameLoan(t *testing.T) {
	locker, _ := newTestRedisLocker(t)

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := locker.WithLock(ctx, "loan-1", func(context.Context) error {
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(5 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestRedisLocker_ConnectionError(t *testing.T) {
	locker, srv := newTestRedisLocker(t)
	srv.Close()

	err := locker.WithLock(context.Background(), "loan-1", func(context.Context) error { return nil })

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
}

func TestRedisLocker_RenewsWhileRunning(t *testing.T) {
	ttl := 90 * time.Millisecond
	locker, srv := newTestRedisLocker(t, WithTTL(ttl))
	key := keyPrefix + "loan-1"

	err := locker.WithLock(context.Background(), "loan-1", func(ctx context.Context) error {
		// Let the key run down; the next renewal restores the full TTL.
		srv.SetTTL(key, time.Millisecond)
		require.Eventually(t, func() bool { return srv.TTL(key) == ttl }, time.Second, 5*time.Millisecond)
		return ctx.Err()
	})

	require.NoError(t, err)
	assert.False(t, srv.Exists(key))
}

func TestRedisLocker_LostLockCancelsCallback(t *testing.T) {
	locker, srv := newTestRedisLocker(t, WithTTL(30*time.Millisecond))
	key := keyPrefix + "loan-1"

	err := locker.WithLock(context.Background(), "loan-1", func(ctx context.Context) error {
		// Our lock expired and another process took it.
		require.NoError(t, srv.Set(key, "other-token"))
		select {
		case <-ctx.Done():
			assert.ErrorIs(t, context.Cause(ctx), ErrLockLost)
			return ctx.Err()
		case <-time.After(time.Second):
			return errors.New("callback kept running without the lock")
		}
	})

	assert.ErrorIs(t, err, ErrLockLost)
	assert.ErrorIs(t, err, model.ErrConcurrentModification)
	assert.ErrorIs(t, err, context.Canceled)
	got, _ := srv.Get(key)
	assert.Equal(t, "other-token", got, "a foreign lock is never released")
}
