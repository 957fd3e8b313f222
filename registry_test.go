// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObtain_CreatesAndReusesDefaultLooper(t *testing.T) {
	_, ok := Current()
	require.False(t, ok, "test goroutine must start with no registered Looper")

	lp1 := Obtain()
	require.NotNil(t, lp1)

	lp2 := Obtain()
	assert.Same(t, lp1, lp2, "a second Obtain on the same goroutine must return the same Looper")

	current, ok := Current()
	require.True(t, ok)
	assert.Same(t, lp1, current)

	globalRegistry.unregister(goroutineID())
}

func TestObtainWhere_ReplacesWhenPredicateFails(t *testing.T) {
	defer globalRegistry.unregister(goroutineID())

	lp1 := ObtainWhere(func(*Looper) bool { return true })
	lp2 := ObtainWhere(func(*Looper) bool { return false })

	assert.NotSame(t, lp1, lp2, "a Looper failing the predicate must be replaced")

	lp3 := ObtainWhere(func(*Looper) bool { return true })
	assert.Same(t, lp2, lp3, "the replacement must now be the registered Looper")
}

func TestObtainStrict_ErrorsWhenUnregistered(t *testing.T) {
	_, ok := Current()
	require.False(t, ok, "test goroutine must start with no registered Looper")

	lp, err := ObtainStrict()
	assert.Nil(t, lp)
	assert.ErrorIs(t, err, ErrNoLooper)
}

func TestObtainStrict_ReturnsRegisteredLooper(t *testing.T) {
	defer globalRegistry.unregister(goroutineID())

	want := Obtain()
	got, err := ObtainStrict()
	require.NoError(t, err)
	assert.Same(t, want, got)
}
