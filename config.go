// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

// Config supplies the single piece of external configuration the Looper
// core needs: whether to warn when overloaded, and the threshold above
// which a Looper is considered overloaded.
type Config interface {
	// WarnOnOverload reports whether the Looper should log when its
	// smoothed iteration time exceeds the overload threshold.
	WarnOnOverload() bool
	// OverloadThresholdMillis is the smoothed-iteration-time threshold, in
	// milliseconds, above which isOverloaded becomes true.
	OverloadThresholdMillis() int
}

// StaticConfig is a struct-literal Config. No file format belongs to the
// Looper core, so this is the only implementation shipped.
type StaticConfig struct {
	Warn               bool
	OverloadThresholdMs int
}

// DefaultConfig returns the documented defaults: warn on overload,
// threshold 100ms.
func DefaultConfig() StaticConfig {
	return StaticConfig{Warn: true, OverloadThresholdMs: 100}
}

// WarnOnOverload implements Config.
func (c StaticConfig) WarnOnOverload() bool { return c.Warn }

// OverloadThresholdMillis implements Config.
func (c StaticConfig) OverloadThresholdMillis() int {
	if c.OverloadThresholdMs <= 0 {
		return 100
	}
	return c.OverloadThresholdMs
}
