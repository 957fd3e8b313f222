// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"sync"
	"weak"
)

// registry is the process-global association from goroutine id (a
// Looper's own bound goroutine, plus every async child goroutine aliased
// onto it) to the Looper that owns it.
//
// Shaped after eventloop/registry.go's promise registry, which keyed a
// map[uint64]weak.Pointer[promise] so that expired entries never retain
// their target; generalized here from a ring-buffer-scavenged promise
// table to a plain mutex-guarded map, since Loopers are far fewer and far
// longer-lived than per-call promises, so proactive scavenging is
// unnecessary — a dead weak.Pointer is dropped when a lookup finds it, or
// overwritten on next registration.
type registry struct {
	mu sync.Mutex
	m  map[uint64]weak.Pointer[Looper]
}

var globalRegistry = &registry{m: make(map[uint64]weak.Pointer[Looper])}

func (r *registry) lookup(gid uint64) *Looper {
	r.mu.Lock()
	defer r.mu.Unlock()
	wp, ok := r.m[gid]
	if !ok {
		return nil
	}
	lp := wp.Value()
	if lp == nil {
		delete(r.m, gid)
	}
	return lp
}

func (r *registry) register(gid uint64, lp *Looper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[gid] = weak.Make(lp)
}

func (r *registry) unregister(gid uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, gid)
}

// Obtain returns the calling goroutine's Looper, creating, registering,
// and returning a new default Looper if none is associated.
func Obtain() *Looper {
	return ObtainWhere(func(*Looper) bool { return true })
}

// ObtainWhere returns the calling goroutine's Looper if it satisfies
// accept; otherwise (including when no Looper is registered) it creates a
// new default Looper, registers it in place of any prior association, and
// returns it. Used to re-request a Looper with different flags.
func ObtainWhere(accept func(*Looper) bool) *Looper {
	gid := goroutineID()
	if lp := globalRegistry.lookup(gid); lp != nil && accept(lp) {
		return lp
	}
	lp := New()
	globalRegistry.register(gid, lp)
	return lp
}

// Current returns the calling goroutine's Looper without creating one.
func Current() (*Looper, bool) {
	lp := globalRegistry.lookup(goroutineID())
	return lp, lp != nil
}

// ObtainStrict returns the calling goroutine's Looper, failing with
// ErrNoLooper instead of creating one when none is registered. Use this
// over Obtain when a missing Looper is a caller error, not a reason to
// silently establish a default one.
func ObtainStrict() (*Looper, error) {
	lp := globalRegistry.lookup(goroutineID())
	if lp == nil {
		return nil, WrapError("looper.ObtainStrict", ErrNoLooper)
	}
	return lp, nil
}
