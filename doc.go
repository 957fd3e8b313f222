// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package looper provides a thread-affinity message loop: an ordered,
// time-scheduled, optionally blocking task queue, a Handler facade for
// posting typed messages, barrier-based stalling, overload detection, and a
// two-flavor quit protocol.
//
// # Architecture
//
// A [Looper] owns exactly one [Queue] and drains it on a single bound
// goroutine. User code never touches the Queue directly; it goes through a
// [Handler], which stamps, posts, and later dispatches [Entry] values
// (tasks, messages, or barriers).
//
// # Thread affinity
//
// Every Looper is associated with the goroutine that calls [Looper.Loop].
// A process-global registry ([Obtain], [Current]) maps goroutine identity
// (including goroutines aliased for async dispatch) back to the owning
// Looper, so library code can always find "my Looper" without threading a
// reference through every call.
//
// # Barriers and async entries
//
// A synchronization barrier, posted with [Handler.PostBarrier], withholds
// delivery of every synchronous Entry behind it until removed by its token.
// Entries marked async (see [WithHandlerAsync]) bypass barriers entirely
// and run on the [Executor] instead of the Looper's own goroutine.
//
// # Usage
//
//	lp := looper.New(looper.WithFlags(looper.FlagBlocking))
//	go lp.Loop(context.Background())
//
//	h := looper.NewHandler(lp)
//	h.Post(func() {
//	    fmt.Println("ran on lp's goroutine")
//	})
//
//	lp.QuitSafely()
package looper
