// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLooper(t *testing.T, flags Flag) (*Looper, *FakeClock, *RecordingLogger) {
	t.Helper()
	clock := NewFakeClock(0)
	logger := &RecordingLogger{}
	lp := New(
		WithFlags(flags),
		WithClock(clock),
		WithLogger(logger),
		WithExecutor(InlineExecutor{}),
	)
	return lp, clock, logger
}

func runLooper(t *testing.T, lp *Looper) (cancel context.CancelFunc, done chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan struct{})
	go func() {
		defer close(done)
		_ = lp.Loop(ctx)
	}()
	require.Eventually(t, lp.IsRunning, time.Second, time.Millisecond)
	return cancel, done
}

// S6 Re-entrant post: posting from inside a dispatched callback on the
// same Handler must not deadlock, and the new Entry is delivered on a
// later iteration.
func TestLooper_ReentrantPost(t *testing.T) {
	lp, _, _ := newTestLooper(t, 0)
	h := NewHandler(lp)

	var mu sync.Mutex
	var order []string
	bDone := make(chan struct{})

	var postB func()
	postB = func() {
		mu.Lock()
		order = append(order, "B")
		mu.Unlock()
		close(bDone)
	}

	_, err := h.Post(func() {
		mu.Lock()
		order = append(order, "A")
		mu.Unlock()
		_, perr := h.Post(postB)
		assert.NoError(t, perr)
	})
	require.NoError(t, err)

	cancel, done := runLooper(t, lp)
	defer func() {
		cancel()
		<-done
	}()

	select {
	case <-bDone:
	case <-time.After(2 * time.Second):
		t.Fatal("reentrant post was never delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"A", "B"}, order)
}

// Dispatched panics are recovered and reported to the exception sink; the
// loop keeps running afterward.
func TestLooper_PanicIsRecovered(t *testing.T) {
	lp, _, _ := newTestLooper(t, 0)
	h := NewHandler(lp)

	var sawFault sync.WaitGroup
	sawFault.Add(1)
	lp.sink = sinkFunc(func(err error) {
		if _, ok := err.(*UserCallbackFault); ok {
			sawFault.Done()
		}
	})

	_, err := h.Post(func() { panic("boom") })
	require.NoError(t, err)

	survived := make(chan struct{})
	_, err = h.Post(func() { close(survived) })
	require.NoError(t, err)

	cancel, done := runLooper(t, lp)
	defer func() {
		cancel()
		<-done
	}()

	waitGroupDone(t, &sawFault, time.Second)
	select {
	case <-survived:
	case <-time.After(time.Second):
		t.Fatal("loop did not continue dispatching after a recovered panic")
	}
}

// QuitSafely drops not-yet-due work and lets the loop exit.
func TestLooper_QuitSafely(t *testing.T) {
	lp, clock, _ := newTestLooper(t, 0)
	h := NewHandler(lp)

	delivered := make(chan struct{})
	_, err := h.Post(func() { close(delivered) })
	require.NoError(t, err)
	_, err = h.PostDelayed(func() { t.Error("future entry must not be delivered after quitSafely") }, 10_000)
	require.NoError(t, err)

	cancel, done := runLooper(t, lp)
	defer cancel()

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("immediate entry was never delivered")
	}

	clock.Advance(10)
	require.NoError(t, lp.QuitSafely())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after quitSafely")
	}
}

// StateStalled must be set for the duration of an empty-queue blocking
// wait inside Next, and cleared as soon as a post wakes it.
func TestLooper_StalledStateDuringBlockingWait(t *testing.T) {
	lp, _, _ := newTestLooper(t, FlagBlocking)
	h := NewHandler(lp)

	cancel, done := runLooper(t, lp)
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, lp.IsStalled, time.Second, time.Millisecond, "looper never reported stalled on an empty queue")

	delivered := make(chan struct{})
	_, err := h.Post(func() { close(delivered) })
	require.NoError(t, err)

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("post did not wake the stalled looper")
	}

	require.Eventually(t, func() bool { return !lp.IsStalled() }, time.Second, time.Millisecond, "looper stayed stalled after waking")
}

// An async Entry dispatched through InlineExecutor runs on the Looper's
// own goroutine; it must not deregister the Looper's own gid -> Looper
// association, or Obtain/Current break for the rest of the loop's life.
func TestLooper_InlineExecutorAsyncDoesNotDeregisterSelf(t *testing.T) {
	lp, _, _ := newTestLooper(t, FlagAsync)
	h := NewHandler(lp)

	cancel, done := runLooper(t, lp)
	defer func() {
		cancel()
		<-done
	}()

	delivered := make(chan struct{})
	_, err := h.Post(func() { close(delivered) })
	require.NoError(t, err)

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("async entry was never dispatched")
	}

	require.Eventually(t, func() bool {
		return globalRegistry.lookup(lp.gid.Load()) == lp
	}, time.Second, time.Millisecond, "looper's own registry entry must survive an inline async dispatch")
}

type sinkFunc func(error)

func (f sinkFunc) Handle(err error) { f(err) }

func waitGroupDone(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for exception sink")
	}
}
