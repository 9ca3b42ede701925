/*
Package lock serializes ledger work per employee.

PURPOSE:
  The ledger store already rejects stale writes with a compare-and-swap.
  A Locker adds a second line: approvals and backfill rows for the same
  employee queue up instead of racing and retrying.

IMPLEMENTATIONS:
  Local: in-process mutex per key (single server)
  Redis: SET NX PX lease with a token-checked release (several servers)
  Nop:   no locking, CAS only
*/
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context ended.
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held lock. Safe to call once.
type Unlock func()

// Locker acquires a named lock, blocking until ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// EmployeeKey namespaces per-employee ledger locks.
func EmployeeKey(employeeID string) string { return "leave:ledger:" + employeeID }

// =============================================================================
// NOP
// =============================================================================

type Nop struct{}

func (Nop) Lock(context.Context, string) (Unlock, error) { return func() {}, nil }

// =============================================================================
// LOCAL
// =============================================================================

// Local holds one channel-based mutex per key and drops it when unused.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*localEntry)}
}

func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(key, e, true) }) }, nil
}

func (l *Local) release(key string, e *localEntry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
