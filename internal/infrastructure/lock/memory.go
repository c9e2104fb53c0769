package lock

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLocker serialises work per loan within one process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryEntry
}

type memoryEntry struct {
	sem  chan struct{}
	refs int
}

// NewMemoryLocker creates an empty locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*memoryEntry)}
}

// WithLock implements port.LoanLocker. Waiting stops when ctx ends.
func (l *MemoryLocker) WithLock(ctx context.Context, loanID string, fn func(ctx context.Context) error) error {
	e := l.ref(loanID)
	defer l.unref(loanID)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrNotAcquired, loanID, ctx.Err())
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (l *MemoryLocker) ref(loanID string) *memoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[loanID]
	if !ok {
		e = &memoryEntry{sem: make(chan struct{}, 1)}
		l.locks[loanID] = e
	}
	e.refs++
	return e
}

// unref drops the entry once no caller holds or waits for it.
func (l *MemoryLocker) unref(loanID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.locks[loanID]
	e.refs--
	if e.refs == 0 {
		delete(l.locks, loanID)
	}
}

// held reports the number of loans with a holder or waiter.
func (l *MemoryLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
