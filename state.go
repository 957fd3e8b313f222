// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import "sync/atomic"

// Flag is a construction-time bit set on a Looper. Flags are fixed for the
// life of a Looper; modifying them while running is a ProgrammingFault.
type Flag uint32

const (
	// FlagBlocking enables the Queue's internal condition wait: Next
	// suspends the calling thread instead of returning Empty/Waiting.
	FlagBlocking Flag = 1 << iota
	// FlagAsync routes every dispatched Entry through the parallel
	// executor instead of running it on the Looper's own thread.
	FlagAsync
	// FlagSystem forbids quitting from any thread but the primary one,
	// and forbids Destroy altogether.
	FlagSystem
	// FlagPlugin is FlagSystem's analogue scoped to a plugin owner.
	FlagPlugin
	// FlagAutoQuit asks the Looper to begin quitting as soon as Next
	// reports Empty.
	FlagAutoQuit
)

func (f Flag) has(bit Flag) bool { return f&bit != 0 }

// State is the Looper's mutable runtime state, a bitmask over Polling,
// Stalled, and Quitting.
type State uint32

const (
	// StatePolling is set from the first call to Next and never cleared
	// until the loop exits.
	StatePolling State = 1 << iota
	// StateStalled is set while Next is suspended on an empty-queue wait,
	// cleared on wake.
	StateStalled
	// StateQuitting is set by quit and never cleared.
	StateQuitting
)

func (s State) has(bit State) bool { return s&bit != 0 }

// runState is the atomic holder for a Looper's State, supporting
// concurrent bit set/clear from the bound thread (mutating) and other
// threads (reading, e.g. isRunning checks from obtain()).
type runState struct {
	bits atomic.Uint32
}

func (s *runState) load() State { return State(s.bits.Load()) }

func (s *runState) set(bit State) {
	for {
		old := s.bits.Load()
		next := old | uint32(bit)
		if next == old || s.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (s *runState) clear(bit State) {
	for {
		old := s.bits.Load()
		next := old &^ uint32(bit)
		if next == old || s.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (s *runState) has(bit State) bool { return s.load().has(bit) }
