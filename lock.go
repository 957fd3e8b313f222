// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"sync"
	"time"
)

// writeLock is the Queue's reentrant, writer-preferring lock with a
// condition variable hosted on the same monitor. Go's sync.Mutex is not
// reentrant, so ownership is tracked explicitly by goroutine id, the same
// identity goroutine.go extracts for the registry's thread-affinity
// bookkeeping.
//
// The raw mutex only ever guards the owner/depth bookkeeping; "holding the
// lock" is the logical condition depth > 0 && owner == caller, checked and
// set while briefly holding the raw mutex. This is the standard shape of a
// reentrant lock built atop a non-reentrant one.
type writeLock struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner uint64
	depth int
}

func newWriteLock() *writeLock {
	l := &writeLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Lock acquires the lock, reentrantly if the calling goroutine already
// holds it.
func (l *writeLock) Lock() {
	gid := goroutineID()
	l.mu.Lock()
	if l.depth > 0 && l.owner == gid {
		l.depth++
		l.mu.Unlock()
		return
	}
	for l.depth > 0 {
		l.cond.Wait()
	}
	l.owner = gid
	l.depth = 1
	l.mu.Unlock()
}

// Unlock releases one level of ownership. Panics if the calling goroutine
// does not hold the lock: lock-discipline violations fail fast rather than
// corrupting the owner/depth bookkeeping silently.
func (l *writeLock) Unlock() {
	gid := goroutineID()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.depth == 0 || l.owner != gid {
		panic("looper: unlock of write lock not held by this goroutine")
	}
	l.depth--
	if l.depth == 0 {
		l.owner = 0
		l.cond.Broadcast()
	}
}

// isHeldByCurrentThread reports whether the calling goroutine currently
// holds the lock — the Go analogue of isWriteLockedByCurrentThread, used
// to decide whether a reentrant post is happening from inside a dispatched
// callback on the Looper's own thread.
func (l *writeLock) isHeldByCurrentThread() bool {
	gid := goroutineID()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth > 0 && l.owner == gid
}

// wait suspends the calling goroutine, which must hold the lock at depth
// one, until broadcast is called by another goroutine, then reacquires
// ownership. Used for the Queue's empty-wait.
func (l *writeLock) wait() {
	gid := l.owner
	l.mu.Lock()
	l.depth = 0
	l.owner = 0
	l.cond.Broadcast()
	l.cond.Wait()
	for l.depth > 0 {
		l.cond.Wait()
	}
	l.owner = gid
	l.depth = 1
	l.mu.Unlock()
}

// waitTimeout is wait with an upper bound; sync.Cond has no native timed
// wait, so a timer goroutine broadcasts on expiry, the same "wake
// everyone, let each re-check its own condition" monitor discipline used
// throughout this lock. Used for the Queue's future-due-time wait.
func (l *writeLock) waitTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	timer := time.AfterFunc(d, func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer timer.Stop()
	l.wait()
}

// broadcast wakes every goroutine blocked in wait/waitTimeout, and every
// goroutine blocked acquiring the lock. Must be called while holding the
// lock, per the Queue's signal-the-condition operations (post, wake,
// removeBarrier, quit).
func (l *writeLock) broadcast() {
	l.mu.Lock()
	l.cond.Broadcast()
	l.mu.Unlock()
}
