package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, EmployeeKey("e1"))
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(ctx, EmployeeKey("e1"))
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired while the first still holds the lock")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired")
	}
}

func TestLocal_IndependentKeys(t *testing.T) {
	l := NewLocal()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	u1, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	u2, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	u1()
	u2()
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocal_ReleasesEntriesAndDoubleUnlockIsSafe(t *testing.T) {
	l := NewLocal()
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := l.Lock(context.Background(), "shared")
			if err != nil {
				return
			}
			counter++
			u()
			u()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}

// =============================================================================
// REDIS
// =============================================================================

func TestRedis_AcquireAndRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRedis(db, WithTTL(5*time.Second), WithTokenSource(func() string { return "tok-1" }))

	mock.ExpectSetNX("leave:ledger:e1", "tok-1", 5*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"leave:ledger:e1"}, "tok-1").SetVal(int64(1))

	unlock, err := r.Lock(context.Background(), EmployeeKey("e1"))
	require.NoError(t, err)
	unlock()
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_RetriesWhileHeld(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRedis(db,
		WithTTL(time.Second),
		WithRetryDelay(time.Millisecond),
		WithTokenSource(func() string { return "tok-2" }),
	)

	mock.ExpectSetNX("k", "tok-2", time.Second).SetVal(false)
	mock.ExpectSetNX("k", "tok-2", time.Second).SetVal(false)
	mock.ExpectSetNX("k", "tok-2", time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"k"}, "tok-2").SetVal(int64(1))

	unlock, err := r.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_GivesUpWhenContextEnds(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRedis(db, WithRetryDelay(time.Second), WithTokenSource(func() string { return "tok-3" }))

	mock.ExpectSetNX("k", "tok-3", 30*time.Second).SetVal(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Lock(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestRedis_CommandError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRedis(db, WithTokenSource(func() string { return "tok-4" }))

	mock.ExpectSetNX("k", "tok-4", 30*time.Second).SetErr(errors.New("connection refused"))

	_, err := r.Lock(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotErrorIs(t, err, ErrNotAcquired)
}
