package lazyns

import (
	"context"
	"sync/atomic"
)

// Locker guards the resolution transition.
//
// Lock blocks until the lock is held or ctx is done. It returns the
// context to use while the lock is held; calls made with that context
// acquire the same lock again without blocking. Go has no goroutine
// identity, so ownership travels with the context: hooks and loaders must
// pass on the context they were given.
type Locker interface {
	Lock(ctx context.Context) (context.Context, func(), error)
}

// ReentrantLock is the process-wide resolution lock. One instance is
// shared by every module of a Runtime.
type ReentrantLock struct {
	sem chan struct{}
}

// NewReentrantLock creates an unlocked lock.
func NewReentrantLock() *ReentrantLock {
	return &ReentrantLock{sem: make(chan struct{}, 1)}
}

type lockOwnerKey struct{}

type lockOwner struct {
	lock *ReentrantLock
	held atomic.Bool
}

// Lock implements Locker
func (l *ReentrantLock) Lock(ctx context.Context) (context.Context, func(), error) {
	if owner, ok := ctx.Value(lockOwnerKey{}).(*lockOwner); ok && owner.lock == l && owner.held.Load() {
		return ctx, func() {}, nil
	}

	if err := ctx.Err(); err != nil {
		return ctx, nil, err
	}
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx, nil, ctx.Err()
	}

	owner := &lockOwner{lock: l}
	owner.held.Store(true)
	unlock := func() {
		if owner.held.CompareAndSwap(true, false) {
			<-l.sem
		}
	}
	return context.WithValue(ctx, lockOwnerKey{}, owner), unlock, nil
}

// Held reports whether ctx currently owns l.
func (l *ReentrantLock) Held(ctx context.Context) bool {
	owner, ok := ctx.Value(lockOwnerKey{}).(*lockOwner)
	return ok && owner.lock == l && owner.held.Load()
}

// NoopLock never blocks. Use it only where a single goroutine touches the
// namespace.
type NoopLock struct{}

// Lock implements Locker
func (NoopLock) Lock(ctx context.Context) (context.Context, func(), error) {
	return ctx, func() {}, nil
}
