// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// overloadThrottle gates two duration-limited diagnostics: the "can't keep
// up" warning (at most once per 15s) and the extra forced yield when
// overloaded (at most once per 1s).
//
// This is the same category-rate-limiting use logiface/limit.go puts
// github.com/joeycumines/go-catrate to (CallerCategoryRateLimitModifier)
// — here the category is a fixed string per concern, scoped to one Looper
// by giving each Looper its own Limiter.
type overloadThrottle struct {
	warn  *catrate.Limiter
	yield *catrate.Limiter
}

const (
	overloadWarnCategory  = "warn"
	overloadYieldCategory = "yield"
)

func newOverloadThrottle() *overloadThrottle {
	return &overloadThrottle{
		warn:  catrate.NewLimiter(map[time.Duration]int{15 * time.Second: 1}),
		yield: catrate.NewLimiter(map[time.Duration]int{1 * time.Second: 1}),
	}
}

// allowWarn reports whether enough time has passed since the last "can't
// keep up" warning to log another one.
func (t *overloadThrottle) allowWarn() bool {
	_, ok := t.warn.Allow(overloadWarnCategory)
	return ok
}

// allowForcedYield reports whether enough time has passed since the last
// extra overloaded yield to perform another one.
func (t *overloadThrottle) allowForcedYield() bool {
	_, ok := t.yield.Allow(overloadYieldCategory)
	return ok
}
