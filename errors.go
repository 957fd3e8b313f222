// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Queue and Looper operations.
var (
	// ErrQueueQuitting is returned by Queue.Post when the queue has already
	// begun quitting. It is Recoverable: the caller sees it as a normal
	// error, the Entry is recycled, and no other Entry's delivery is
	// affected.
	ErrQueueQuitting = errors.New("looper: queue is quitting")

	// ErrNoLooper is returned by ObtainStrict when no Looper is registered
	// for the calling goroutine. Recoverable: the caller decides whether to
	// fall back to Obtain or propagate the error.
	ErrNoLooper = errors.New("looper: no looper registered for this goroutine")

	// ErrLooperRunning is returned by Destroy when called on a Looper whose
	// dispatch loop has not yet exited.
	ErrLooperRunning = errors.New("looper: cannot destroy a running looper")

	// ErrLoopAlreadyRunning is returned by Loop when called a second time on
	// the same Looper.
	ErrLoopAlreadyRunning = errors.New("looper: loop already running")
)

// ProgrammingFault represents a violation of the Looper's contract that is
// fatal to the calling goroutine: posting to the quitting queue of a SYSTEM
// or PLUGIN Looper, requesting quit on a SYSTEM or PLUGIN Looper off its
// primary goroutine, or destroying a SYSTEM or PLUGIN Looper.
//
// Code that receives a ProgrammingFault is expected to panic with it; it is
// never returned to user code as a recoverable error. Calling Loop a second
// time and destroying a running Looper are not ProgrammingFaults: they
// return ErrLoopAlreadyRunning and ErrLooperRunning.
type ProgrammingFault struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *ProgrammingFault) Error() string {
	return fmt.Sprintf("looper: programming fault in %s: %s", e.Op, e.Message)
}

// NewProgrammingFault builds a ProgrammingFault for the named operation.
func NewProgrammingFault(op, message string) *ProgrammingFault {
	return &ProgrammingFault{Op: op, Message: message}
}

// UserCallbackFault wraps a panic recovered from dispatched user code (a
// Task's callable, or a Handler's message callback/handleMessage). It is
// never allowed to propagate past the Looper's dispatch loop; instead it is
// forwarded to the configured ExceptionSink and the loop continues.
type UserCallbackFault struct {
	// Recovered is the value passed to panic(), which may or may not be an
	// error.
	Recovered any
}

// Error implements the error interface.
func (e *UserCallbackFault) Error() string {
	return fmt.Sprintf("looper: user callback panicked: %v", e.Recovered)
}

// Unwrap returns the recovered value if it is itself an error, enabling
// errors.Is/errors.As to see through to the original cause.
func (e *UserCallbackFault) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}

// ExceptionSink receives UserCallbackFault (and other dispatch errors) so
// that a panicking Task or Handler callback never brings down the Looper's
// goroutine.
type ExceptionSink interface {
	Handle(err error)
}

// LoggingExceptionSink reports faults to a Logger at Severe and is the
// default ExceptionSink used by a Looper that wasn't given one explicitly.
type LoggingExceptionSink struct {
	Logger Logger
}

// Handle implements ExceptionSink.
func (s LoggingExceptionSink) Handle(err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.Severe("dispatched callback faulted", err)
}

// WrapError wraps an error with a message and optional cause chain,
// satisfying errors.Is(result, cause).
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
