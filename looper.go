// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// IdleHandler runs when Next finds no ready Entry (Empty, Stalled, or
// Waiting). Returning false deregisters it.
type IdleHandler func(lp *Looper) bool

type idleEntry struct {
	id uint64
	fn IdleHandler
}

// Looper is the thread-bound driver owning one Queue.
type Looper struct {
	queue    *Queue
	flags    Flag
	state    runState
	clock    Clock
	executor Executor
	logger   Logger
	config   Config
	sink     ExceptionSink
	throttle *overloadThrottle
	wake     *broadcaster

	gid        atomic.Uint64
	primaryGid atomic.Uint64

	idleMu       sync.Mutex
	idleHandlers []idleEntry
	idleCounter  atomic.Uint64

	stats loopStats
}

type loopStats struct {
	mu                  sync.Mutex
	lastPolledMillis    int64
	averagePolledMillis float64
	isOverloaded        bool
}

// New constructs a Looper with the given options, bound to a fresh Queue.
func New(opts ...Option) *Looper {
	o := resolveLooperOptions(opts...)
	lp := &Looper{
		flags:    o.flags,
		clock:    o.clock,
		executor: o.executor,
		logger:   o.logger,
		config:   o.config,
		sink:     o.sink,
		throttle: newOverloadThrottle(),
		wake:     newBroadcaster(),
	}
	lp.queue = NewQueue(o.clock, o.flags.has(FlagBlocking))
	lp.queue.onStall = func() { lp.state.set(StateStalled) }
	lp.queue.onUnstall = func() { lp.state.clear(StateStalled) }
	return lp
}

// Queue returns the Looper's owned Queue.
func (lp *Looper) Queue() *Queue { return lp.queue }

// Flags returns the Looper's construction-time flags.
func (lp *Looper) Flags() Flag { return lp.flags }

// IsRunning reports whether the dispatch loop is currently executing.
func (lp *Looper) IsRunning() bool { return lp.state.has(StatePolling) }

// IsQuitting reports whether a quit has been requested.
func (lp *Looper) IsQuitting() bool { return lp.state.has(StateQuitting) }

// IsStalled reports whether Next is currently suspended on an empty-queue
// wait.
func (lp *Looper) IsStalled() bool { return lp.state.has(StateStalled) }

// LastPolledMillis returns the most recent iteration's elapsed time.
func (lp *Looper) LastPolledMillis() int64 {
	lp.stats.mu.Lock()
	defer lp.stats.mu.Unlock()
	return lp.stats.lastPolledMillis
}

// AveragePolledMillis returns the exponentially-smoothed iteration time.
func (lp *Looper) AveragePolledMillis() float64 {
	lp.stats.mu.Lock()
	defer lp.stats.mu.Unlock()
	return lp.stats.averagePolledMillis
}

// IsOverloaded reports whether the smoothed iteration time currently
// exceeds the configured threshold.
func (lp *Looper) IsOverloaded() bool {
	lp.stats.mu.Lock()
	defer lp.stats.mu.Unlock()
	return lp.stats.isOverloaded
}

// AddIdleHandler registers fn to run whenever Next finds nothing ready.
// Returns an id usable with RemoveIdleHandler.
func (lp *Looper) AddIdleHandler(fn IdleHandler) uint64 {
	id := lp.idleCounter.Add(1)
	lp.idleMu.Lock()
	defer lp.idleMu.Unlock()
	lp.idleHandlers = append(lp.idleHandlers, idleEntry{id: id, fn: fn})
	return id
}

// RemoveIdleHandler deregisters a previously added IdleHandler.
func (lp *Looper) RemoveIdleHandler(id uint64) {
	lp.idleMu.Lock()
	defer lp.idleMu.Unlock()
	kept := lp.idleHandlers[:0]
	for _, e := range lp.idleHandlers {
		if e.id != id {
			kept = append(kept, e)
		}
	}
	lp.idleHandlers = kept
}

func (lp *Looper) runIdleHandlers() {
	lp.idleMu.Lock()
	snapshot := append([]idleEntry(nil), lp.idleHandlers...)
	lp.idleMu.Unlock()
	if len(snapshot) == 0 {
		return
	}
	var dead []uint64
	for _, e := range snapshot {
		if !e.fn(lp) {
			dead = append(dead, e.id)
		}
	}
	if len(dead) == 0 {
		return
	}
	lp.idleMu.Lock()
	defer lp.idleMu.Unlock()
	kept := lp.idleHandlers[:0]
	for _, e := range lp.idleHandlers {
		keep := true
		for _, id := range dead {
			if e.id == id {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, e)
		}
	}
	lp.idleHandlers = kept
}

// Loop runs the dispatch loop on the calling goroutine until the Looper
// quits or ctx is done. It blocks; callers typically run it in its own
// goroutine. Returns ErrLoopAlreadyRunning if called while already
// running.
func (lp *Looper) Loop(ctx context.Context) error {
	if lp.state.has(StatePolling) {
		return ErrLoopAlreadyRunning
	}
	gid := goroutineID()
	lp.gid.Store(gid)
	if lp.flags.has(FlagSystem) || lp.flags.has(FlagPlugin) {
		lp.primaryGid.Store(gid)
	}
	globalRegistry.register(gid, lp)
	lp.state.set(StatePolling)
	defer func() {
		globalRegistry.unregister(gid)
		lp.gid.Store(0)
		lp.state.clear(StatePolling)
	}()
	stopCtxQuit := context.AfterFunc(ctx, func() {
		lp.state.set(StateQuitting)
		lp.queue.Quit(true)
		lp.wake.broadcast()
	})
	defer stopCtxQuit()

	for {
		if ctx.Err() != nil && !lp.state.has(StateQuitting) {
			lp.Quit(true)
		}

		loopStart := lp.clock.NowMillis()
		res := lp.queue.Next(loopStart)

		switch res.Result {
		case ResultSuccess:
			lp.dispatch(res.Entry)
		default:
			lp.runIdleHandlers()
		}

		elapsed := lp.clock.NowMillis() - loopStart
		if elapsed < 0 {
			lp.logger.Warning("looper: time ran backwards", nil)
			elapsed = 0
		}
		lp.recordIteration(elapsed)
		lp.maybeWarnOverload()

		if res.Result == ResultEmpty || res.Result == ResultStalled || res.Result == ResultWaiting {
			lp.idleSleep(res)
		}
		lp.endOfIterationYield(elapsed)

		if lp.flags.has(FlagAutoQuit) && res.Result == ResultEmpty && !lp.state.has(StateQuitting) {
			lp.Quit(false)
			res.Result = ResultEmpty
		}
		if lp.state.has(StateQuitting) && res.Result == ResultEmpty {
			return nil
		}
	}
}

// dispatch finalizes e and runs it, inline on this thread or on the
// parallel executor.
func (lp *Looper) dispatch(e *Entry) {
	e.Finalized = true
	async := e.Async || lp.flags.has(FlagAsync)
	h := e.Target

	if async {
		lp.queue.ClearActive()
		lp.executor.Submit(func() {
			gid := goroutineID()
			if gid != lp.gid.Load() {
				globalRegistry.register(gid, lp)
				defer globalRegistry.unregister(gid)
			}
			lp.runEntry(h, e)
			recycle(e)
		})
		return
	}

	lp.runEntry(h, e)
	lp.queue.ClearActive()
	recycle(e)
}

func (lp *Looper) runEntry(h *Handler, e *Entry) {
	if h != nil {
		h.DispatchMessage(e)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			lp.sink.Handle(&UserCallbackFault{Recovered: r})
		}
	}()
	if e.Callable != nil {
		e.Callable()
	}
}

// recordIteration updates lastPolledMillis and the EWMA-smoothed
// averagePolledMillis (alpha = 0.125, reaching steady state in roughly 16
// iterations). A naive (min-max)/2 formula was considered and rejected:
// it tracks the extremes of a window rather than a true running average,
// and is not reproduced here.
func (lp *Looper) recordIteration(elapsed int64) {
	const alpha = 0.125
	lp.stats.mu.Lock()
	defer lp.stats.mu.Unlock()
	lp.stats.lastPolledMillis = elapsed
	if lp.stats.averagePolledMillis == 0 {
		lp.stats.averagePolledMillis = float64(elapsed)
	} else {
		lp.stats.averagePolledMillis += alpha * (float64(elapsed) - lp.stats.averagePolledMillis)
	}
	lp.stats.isOverloaded = lp.stats.averagePolledMillis > float64(lp.config.OverloadThresholdMillis())
}

func (lp *Looper) maybeWarnOverload() {
	if !lp.IsOverloaded() || !lp.config.WarnOnOverload() {
		return
	}
	if lp.throttle.allowWarn() {
		lp.logger.Warning("looper: can't keep up", nil)
	}
}

// idleSleep is the cooperative wait performed when there is nothing to
// do: min(50ms, next_due-now), interruptible by Wake/Quit.
func (lp *Looper) idleSleep(res NextResult) {
	d := 50 * time.Millisecond
	if res.Result == ResultWaiting {
		remain := res.NextWhen - lp.clock.NowMillis()
		if remain < 0 {
			remain = 0
		}
		if rd := time.Duration(remain) * time.Millisecond; rd < d {
			d = rd
		}
	}
	lp.wake.wait(d)
}

// endOfIterationYield is the cooperative yield of 50ms minus the
// iteration's elapsed time, plus the extra throttled 20ms wait while
// overloaded. An iteration that took 50ms or more skips both waits.
func (lp *Looper) endOfIterationYield(elapsed int64) {
	if elapsed >= 50 {
		return
	}
	lp.wake.wait(time.Duration(50-elapsed) * time.Millisecond)
	if lp.IsOverloaded() && lp.throttle.allowForcedYield() {
		lp.wake.wait(20 * time.Millisecond)
	}
}

// Wake interrupts a Looper thread currently suspended in the cooperative
// end-of-iteration sleep, and, if it is suspended inside Next, there too.
func (lp *Looper) Wake() {
	lp.wake.broadcast()
	lp.queue.Wake()
}

// QuitSafely requests an orderly shutdown: Entries already due are
// delivered; Entries due in the future are dropped.
func (lp *Looper) QuitSafely() error { return lp.requestQuit(false) }

// QuitAndDestroy requests an immediate shutdown: every pending Entry is
// dropped.
func (lp *Looper) QuitAndDestroy() error { return lp.requestQuit(true) }

// Quit requests a shutdown with explicit drop-all semantics.
func (lp *Looper) Quit(dropAll bool) error { return lp.requestQuit(dropAll) }

func (lp *Looper) requestQuit(dropAll bool) error {
	if lp.flags.has(FlagSystem) || lp.flags.has(FlagPlugin) {
		if gid := goroutineID(); gid != lp.primaryGid.Load() {
			panic(NewProgrammingFault("Looper.Quit", "SYSTEM/PLUGIN looper quit requested off its primary thread"))
		}
	}
	lp.state.set(StateQuitting)
	lp.queue.Quit(dropAll)
	lp.wake.broadcast()
	return nil
}

// Destroy removes a non-running Looper from the global registry. Returns
// ErrLooperRunning if the dispatch loop has not yet exited, and is a
// ProgrammingFault for a SYSTEM or PLUGIN Looper (those are never
// destroyed explicitly).
func (lp *Looper) Destroy() error {
	if lp.flags.has(FlagSystem) || lp.flags.has(FlagPlugin) {
		panic(NewProgrammingFault("Looper.Destroy", "SYSTEM/PLUGIN loopers cannot be destroyed"))
	}
	if lp.IsRunning() {
		return ErrLooperRunning
	}
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	for gid, wp := range globalRegistry.m {
		if wp.Value() == lp {
			delete(globalRegistry.m, gid)
		}
	}
	return nil
}
