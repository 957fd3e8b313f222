// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"container/heap"
	"sync/atomic"
	"time"
)

// Result is the outcome of a call to Queue.Next.
type Result int

const (
	ResultNone Result = iota
	ResultEmpty
	ResultStalled
	ResultSuccess
	ResultWaiting
)

// String implements fmt.Stringer.
func (r Result) String() string {
	switch r {
	case ResultEmpty:
		return "Empty"
	case ResultStalled:
		return "Stalled"
	case ResultSuccess:
		return "Success"
	case ResultWaiting:
		return "Waiting"
	default:
		return "None"
	}
}

// NextResult is what Queue.Next returns: a Result code, the promoted Entry
// for ResultSuccess, and the due-time of the earliest pending Entry for
// ResultWaiting (so a non-blocking Looper knows how long it may sleep).
type NextResult struct {
	Result   Result
	Entry    *Entry
	NextWhen int64
}

// entryHeap is the time-ordered multiset backing a Queue, primary key
// When, tiebreak Id ascending — the same shape as eventloop/loop.go's
// timerHeap. A barrier carries an id like any other Entry, assigned at
// PostBarrier time, so among entries sharing a When it takes its natural
// place in posting order: it blocks only the synchronous entries posted
// after it, never ones already posted before it.
type entryHeap struct {
	items []*Entry
}

func (h *entryHeap) Len() int { return len(h.items) }

func (h *entryHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.When != b.When {
		return a.When < b.When
	}
	return a.ID < b.ID
}

func (h *entryHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *entryHeap) Push(x any) { h.items = append(h.items, x.(*Entry)) }

func (h *entryHeap) Pop() any {
	old := h.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return e
}

// Queue is the ordered Entry store owned by exactly one Looper.
type Queue struct {
	clock Clock

	lock *writeLock

	heap     entryHeap
	barriers map[uint64]*Entry

	activeEntry  *Entry
	activeResult Result

	polling  atomic.Bool
	blocking atomic.Bool

	blockingEnabled bool
	quitting        bool

	barrierTokenCounter atomic.Uint64

	onStall   func()
	onUnstall func()
}

// NewQueue constructs an empty Queue. blockingEnabled mirrors the owning
// Looper's BLOCKING flag, which enables the Queue's internal condition
// wait; the Queue is handed this as a plain bool rather than reading the
// Looper's flags directly, since flags may not be modified once a Looper
// is running and the Queue is constructed before the Looper begins
// running.
func NewQueue(clock Clock, blockingEnabled bool) *Queue {
	return &Queue{
		clock:           clock,
		lock:            newWriteLock(),
		barriers:        make(map[uint64]*Entry),
		blockingEnabled: blockingEnabled,
	}
}

// Post inserts e, due at when, into the time-ordered set. Fails with
// ErrQueueQuitting (and recycles e) if the Queue is quitting.
func (q *Queue) Post(e *Entry, when int64) (*Entry, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.quitting {
		recycle(e)
		return nil, ErrQueueQuitting
	}
	e.When = when
	heap.Push(&q.heap, e)
	if q.blocking.Load() && q.heap.items[0] == e {
		q.lock.broadcast()
	}
	return e, nil
}

// PostBarrier installs a barrier at its posting-order position among any
// Entry sharing its when (which is always zero): it blocks synchronous
// entries posted after it, not ones already posted before it. Returns its
// token.
func (q *Queue) PostBarrier() uint64 {
	q.lock.Lock()
	defer q.lock.Unlock()
	token := q.barrierTokenCounter.Add(1)
	b := newEntry(KindBarrier)
	b.When = 0
	b.Token = token
	heap.Push(&q.heap, b)
	q.barriers[token] = b
	return token
}

// RemoveBarrier removes the barrier identified by token, if still present,
// and wakes a blocked Looper thread in case this exposes a ready Entry.
func (q *Queue) RemoveBarrier(token uint64) {
	q.lock.Lock()
	defer q.lock.Unlock()
	b, ok := q.barriers[token]
	if !ok {
		return
	}
	delete(q.barriers, token)
	q.filterLocked(func(e *Entry) bool { return e == b }, true)
	q.lock.broadcast()
}

// Remove recycles and removes every Entry matching match, returning the
// count removed. Used by Handler.Remove to cancel pending messages.
func (q *Queue) Remove(match func(*Entry) bool) int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.filterLocked(match, true)
}

// filterLocked removes every Entry matching match from the heap, must be
// called with the lock held. Standard in-place filter: the write cursor
// never outruns the read cursor, so reusing the backing array is safe.
func (q *Queue) filterLocked(match func(*Entry) bool, doRecycle bool) int {
	kept := q.heap.items[:0]
	removed := 0
	for _, e := range q.heap.items {
		if match(e) {
			removed++
			if e.Kind == KindBarrier {
				delete(q.barriers, e.Token)
			}
			if doRecycle {
				recycle(e)
			}
			continue
		}
		kept = append(kept, e)
	}
	q.heap.items = kept
	heap.Init(&q.heap)
	return removed
}

// Wake signals the condition, but only if the Looper thread is actually
// suspended inside Next.
func (q *Queue) Wake() {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.blocking.Load() {
		q.lock.broadcast()
	}
}

// Quit transitions the Queue to quitting. If dropAll, every Entry is
// dropped; otherwise only those due strictly after now. Barriers are
// always dropped when dropAll, never otherwise (their when is always
// zero, so they are always "due").
func (q *Queue) Quit(dropAll bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.quitting = true
	now := q.clock.NowMillis()
	if dropAll {
		q.filterLocked(func(*Entry) bool { return true }, true)
	} else {
		q.filterLocked(func(e *Entry) bool {
			return e.Kind != KindBarrier && e.When > now
		}, true)
	}
	q.lock.broadcast()
}

// IsQuitting reports whether Quit has been called.
func (q *Queue) IsQuitting() bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.quitting
}

// IsPolling reports whether the Looper thread is inside Next.
func (q *Queue) IsPolling() bool { return q.polling.Load() }

// IsBlocking reports whether the Looper thread is currently suspended
// waiting on the condition inside Next.
func (q *Queue) IsBlocking() bool { return q.blocking.Load() }

// peekReadyLocked scans the heap for the next Entry ready to dispatch.
// Must be called with the lock held. It never leaves the heap short an
// Entry: whatever it examines and does not choose is pushed back before
// returning.
func (q *Queue) peekReadyLocked(now int64) (chosen *Entry, barrierSeen bool, nextWhen int64) {
	var pending []*Entry
	defer func() {
		for _, e := range pending {
			heap.Push(&q.heap, e)
		}
	}()
	for q.heap.Len() > 0 {
		e := heap.Pop(&q.heap).(*Entry)
		if e.Kind == KindBarrier {
			barrierSeen = true
			pending = append(pending, e)
			continue
		}
		if barrierSeen {
			if e.Async && e.When <= now {
				chosen = e
				return
			}
			pending = append(pending, e)
			continue
		}
		if e.When <= now {
			chosen = e
			return
		}
		nextWhen = e.When
		pending = append(pending, e)
		return
	}
	return
}

// Next is the heart of the Queue. Called only by the Looper thread.
// Rather than recursing, a blocking wait re-enters the same loop.
func (q *Queue) Next(now int64) NextResult {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.polling.Store(true)
	for {
		if q.activeEntry != nil {
			return NextResult{Result: ResultSuccess, Entry: q.activeEntry}
		}

		chosen, barrierSeen, nextWhen := q.peekReadyLocked(now)

		switch {
		case chosen != nil:
			q.activeEntry = chosen
			q.activeResult = ResultSuccess
			return NextResult{Result: ResultSuccess, Entry: chosen}

		case barrierSeen:
			q.activeResult = ResultStalled
			return NextResult{Result: ResultStalled}

		case q.heap.Len() == 0:
			q.activeResult = ResultEmpty
			if !q.blockingEnabled || q.quitting {
				return NextResult{Result: ResultEmpty}
			}
			q.blocking.Store(true)
			if q.onStall != nil {
				q.onStall()
			}
			q.lock.wait()
			if q.onUnstall != nil {
				q.onUnstall()
			}
			q.blocking.Store(false)
			now = q.clock.NowMillis()
			continue

		default:
			q.activeResult = ResultWaiting
			if !q.blockingEnabled {
				return NextResult{Result: ResultWaiting, NextWhen: nextWhen}
			}
			q.blocking.Store(true)
			q.lock.waitTimeout(time.Duration(nextWhen-now) * time.Millisecond)
			q.blocking.Store(false)
			now = q.clock.NowMillis()
			continue
		}
	}
}

// ClearActive nulls activeEntry and resets activeResult, called by the
// Looper once it has finished dispatching (not recycling — recycling is
// the Looper's responsibility, since async dispatch recycles only after
// the user callback returns, which may be long after ClearActive).
func (q *Queue) ClearActive() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.activeEntry = nil
	q.activeResult = ResultNone
}
