package lazyns

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReentrantLock_Reenters(t *testing.T) {
	l := NewReentrantLock()

	ctx, unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	assert.True(t, l.Held(ctx))
	assert.False(t, l.Held(context.Background()))

	inner, innerUnlock, err := l.Lock(ctx)
	require.NoError(t, err)
	assert.True(t, l.Held(inner))
	innerUnlock()
	assert.True(t, l.Held(ctx), "inner unlock must not release the outer hold")

	unlock()
	assert.False(t, l.Held(ctx))
	// A second unlock is harmless.
	unlock()

	_, again, err := l.Lock(context.Background())
	require.NoError(t, err)
	again()
}

func TestReentrantLock_StaleContextDoesNotReenter(t *testing.T) {
	l := NewReentrantLock()

	ctx, unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	unlock()

	_, other, err := l.Lock(context.Background())
	require.NoError(t, err)
	defer other()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, _, err = l.Lock(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReentrantLock_Excludes(t *testing.T) {
	l := NewReentrantLock()
	var inside, maxInside atomic.Int32

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, unlock, err := l.Lock(context.Background())
			if err != nil {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	for i := 0; i < 8; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for lock holders")
		}
	}
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestReentrantLock_DistinctLocks(t *testing.T) {
	a, b := NewReentrantLock(), NewReentrantLock()

	ctx, unlockA, err := a.Lock(context.Background())
	require.NoError(t, err)
	defer unlockA()
	assert.False(t, b.Held(ctx))

	_, unlockB, err := b.Lock(ctx)
	require.NoError(t, err)
	unlockB()
}

func TestNoopLock(t *testing.T) {
	ctx := context.Background()
	got, unlock, err := NoopLock{}.Lock(ctx)
	require.NoError(t, err)
	assert.Equal(t, ctx, got)
	unlock()
}

func TestReentrantLock_CancelledContextNeverAcquires(t *testing.T) {
	l := NewReentrantLock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The lock is free, so a plain select would win half of the time.
	for i := 0; i < 100; i++ {
		_, unlock, err := l.Lock(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, unlock)
	}

	_, unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	unlock()
}
