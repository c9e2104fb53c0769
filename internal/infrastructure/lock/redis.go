// Package lock provides port.LoanLocker implementations.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context ended. It matches model.ErrConcurrentModification.
var ErrNotAcquired = fmt.Errorf("loan lock not acquired: %w", model.ErrConcurrentModification)

// ErrLockLost is the cause of the callback's context being canceled when the
// key expired or changed hands before the callback finished.
var ErrLockLost = fmt.Errorf("loan lock lost: %w", model.ErrConcurrentModification)

const (
	defaultTTL           = 10 * time.Second
	defaultRetryInterval = 50 * time.Millisecond
	releaseTimeout       = 2 * time.Second
	keyPrefix            = "loan-servicing:lock:loan:"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-taken by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry forward only while the key still holds our
// token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker serialises work per loan across processes with SET NX PX. The
// expiry is renewed every third of the TTL while the callback runs, so the
// TTL only bounds how long a crashed holder blocks the loan.
type RedisLocker struct {
	client        redis.UniversalClient
	logger        *slog.Logger
	ttl           time.Duration
	retryInterval time.Duration
}

// RedisOption customises a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL sets how long a lock survives a crashed holder.
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets the pause between acquisition attempts.
func WithRetryInterval(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

// NewRedisLocker creates a locker on client.
func NewRedisLocker(client redis.UniversalClient, logger *slog.Logger, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:        client,
		logger:        logger,
		ttl:           defaultTTL,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithLock implements port.LoanLocker. Acquisition retries until ctx ends.
// If the lock is lost while fn runs, fn's context is canceled with
// ErrLockLost as its cause.
func (l *RedisLocker) WithLock(ctx context.Context, loanID string, fn func(ctx context.Context) error) error {
	key := keyPrefix + loanID
	token := uuid.New().String()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer l.release(ctx, key, token)

	lockCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := l.keepAlive(lockCtx, key, token, cancel)
	err := fn(lockCtx)
	stop()

	if cause := context.Cause(lockCtx); err != nil && errors.Is(cause, ErrLockLost) {
		return fmt.Errorf("%w: %w", cause, err)
	}
	return err
}

// keepAlive renews the key until stop is called. When the key no longer
// holds token it calls lost and gives up.
func (l *RedisLocker) keepAlive(ctx context.Context, key, token string, lost context.CancelCauseFunc) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(max(l.ttl/3, time.Millisecond))
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			extended, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() == nil {
					l.logger.WarnContext(ctx, "failed to extend loan lock", "key", key, "error", err)
				}
				continue
			}
			if extended == 0 {
				l.logger.ErrorContext(ctx, "loan lock lost while held", "key", key)
				lost(fmt.Errorf("%w: %s", ErrLockLost, key))
				return
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// release runs on a detached context so a cancelled caller still frees the
// key.
func (l *RedisLocker) release(ctx context.Context, key, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
		l.logger.WarnContext(ctx, "failed to release loan lock", "key", key, "error", err)
	}
}
