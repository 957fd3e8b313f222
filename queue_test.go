// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postTask(t *testing.T, q *Queue, when int64, async bool) *Entry {
	t.Helper()
	e := newEntry(KindTask)
	e.Async = async
	posted, err := q.Post(e, when)
	require.NoError(t, err)
	return posted
}

// S1 FIFO same-time: posts with equal when deliver in id (post) order.
func TestQueue_FIFOSameTime(t *testing.T) {
	clock := NewFakeClock(0)
	q := NewQueue(clock, false)

	a := postTask(t, q, 0, false)
	b := postTask(t, q, 0, false)
	c := postTask(t, q, 0, false)

	var order []*Entry
	for i := 0; i < 3; i++ {
		res := q.Next(0)
		require.Equal(t, ResultSuccess, res.Result)
		order = append(order, res.Entry)
		q.ClearActive()
	}

	assert.Equal(t, []*Entry{a, b, c}, order)
}

// S2 Delayed ordering: B due at 50 delivers before A due at 100.
func TestQueue_DelayedOrdering(t *testing.T) {
	clock := NewFakeClock(0)
	q := NewQueue(clock, false)

	a := postTask(t, q, 100, false)
	b := postTask(t, q, 50, false)

	res := q.Next(0)
	require.Equal(t, ResultWaiting, res.Result)
	assert.Equal(t, int64(50), res.NextWhen)

	res = q.Next(50)
	require.Equal(t, ResultSuccess, res.Result)
	assert.Same(t, b, res.Entry)
	q.ClearActive()

	res = q.Next(50)
	require.Equal(t, ResultWaiting, res.Result)
	assert.Equal(t, int64(100), res.NextWhen)

	res = q.Next(100)
	require.Equal(t, ResultSuccess, res.Result)
	assert.Same(t, a, res.Entry)
	q.ClearActive()
}

// S3 Barrier: a barrier withholds B (sync) but not C (async); removing the
// barrier releases B.
func TestQueue_Barrier(t *testing.T) {
	clock := NewFakeClock(0)
	q := NewQueue(clock, false)

	a := postTask(t, q, 0, false)

	res := q.Next(0)
	require.Equal(t, ResultSuccess, res.Result)
	assert.Same(t, a, res.Entry)
	q.ClearActive()

	token := q.PostBarrier()
	b := postTask(t, q, 0, false)
	c := postTask(t, q, 0, true)

	res = q.Next(0)
	require.Equal(t, ResultSuccess, res.Result)
	assert.Same(t, c, res.Entry, "async entry must bypass the barrier")
	q.ClearActive()

	res = q.Next(0)
	assert.Equal(t, ResultStalled, res.Result, "sync entry behind an unmatched barrier must stall")

	q.RemoveBarrier(token)

	res = q.Next(0)
	require.Equal(t, ResultSuccess, res.Result)
	assert.Same(t, b, res.Entry)
	q.ClearActive()
}

// S3 Barrier, posted up front: A, then a barrier, then B and async C, all
// before the first Next call. The barrier must only withhold entries
// posted after it (B), never ones already posted before it (A).
func TestQueue_BarrierPostedUpFront(t *testing.T) {
	clock := NewFakeClock(0)
	q := NewQueue(clock, false)

	a := postTask(t, q, 0, false)
	token := q.PostBarrier()
	b := postTask(t, q, 0, false)
	c := postTask(t, q, 0, true)

	res := q.Next(0)
	require.Equal(t, ResultSuccess, res.Result)
	assert.Same(t, a, res.Entry, "A was posted before the barrier and must not be withheld")
	q.ClearActive()

	res = q.Next(0)
	require.Equal(t, ResultSuccess, res.Result)
	assert.Same(t, c, res.Entry, "async entry must bypass the barrier")
	q.ClearActive()

	res = q.Next(0)
	assert.Equal(t, ResultStalled, res.Result, "B was posted after the barrier and must stall")

	q.RemoveBarrier(token)

	res = q.Next(0)
	require.Equal(t, ResultSuccess, res.Result)
	assert.Same(t, b, res.Entry, "removing the barrier releases B")
	q.ClearActive()
}

// S4 Quit safely: due Entries are kept, future ones dropped.
func TestQueue_QuitSafely(t *testing.T) {
	clock := NewFakeClock(0)
	q := NewQueue(clock, false)

	a := postTask(t, q, 0, false)
	postTask(t, q, 1000, false)

	clock.Set(10)
	q.Quit(false)

	res := q.Next(10)
	require.Equal(t, ResultSuccess, res.Result)
	assert.Same(t, a, res.Entry)
	q.ClearActive()

	res = q.Next(10)
	assert.Equal(t, ResultEmpty, res.Result, "future entry must have been dropped by quitSafely")
}

// S5 Remove predicate: only non-matching messages remain, in order.
func TestQueue_RemovePredicate(t *testing.T) {
	clock := NewFakeClock(0)
	q := NewQueue(clock, false)

	send := func(what int) *Entry {
		e := newEntry(KindMessage)
		e.What = what
		posted, err := q.Post(e, 0)
		require.NoError(t, err)
		return posted
	}

	send(1)
	two := send(2)
	send(1)
	three := send(3)

	removed := q.Remove(func(e *Entry) bool { return e.What == 1 })
	assert.Equal(t, 2, removed)

	res := q.Next(0)
	require.Equal(t, ResultSuccess, res.Result)
	assert.Same(t, two, res.Entry)
	q.ClearActive()

	res = q.Next(0)
	require.Equal(t, ResultSuccess, res.Result)
	assert.Same(t, three, res.Entry)
	q.ClearActive()

	res = q.Next(0)
	assert.Equal(t, ResultEmpty, res.Result)
}

// Invariant 3: an Entry is recycled at most once and never reappears.
func TestQueue_RecycleIsTerminal(t *testing.T) {
	clock := NewFakeClock(0)
	q := NewQueue(clock, false)

	e := postTask(t, q, 0, false)
	res := q.Next(0)
	require.Equal(t, ResultSuccess, res.Result)
	q.ClearActive()
	recycle(res.Entry)

	assert.True(t, e.Recycled)
	recycle(e) // second call must be a no-op, not a double-free panic
	assert.Nil(t, e.Callable)
	assert.Nil(t, e.Target)

	assert.Equal(t, ResultEmpty, q.Next(0).Result)
}

// Invariant 7: once blocking, a post wakes the waiter within a bounded
// time.
func TestQueue_PostWakesBlockedWaiter(t *testing.T) {
	clock := NewFakeClock(0)
	q := NewQueue(clock, true)

	done := make(chan NextResult, 1)
	go func() {
		done <- q.Next(0)
	}()

	// give the goroutine a chance to actually enter the blocking wait
	require.Eventually(t, q.IsBlocking, time.Second, time.Millisecond, "queue never reported blocking")

	postTask(t, q, 0, false)

	select {
	case res := <-done:
		assert.Equal(t, ResultSuccess, res.Result)
	case <-timeoutChan():
		t.Fatal("post did not wake the blocked Next call in time")
	}
}

func timeoutChan() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		<-time.After(2 * time.Second)
		close(ch)
	}()
	return ch
}
