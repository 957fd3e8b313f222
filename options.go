// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

// Option configures a Looper at construction. Flags and collaborators are
// fixed for the Looper's lifetime: mutating flags on a running Looper is
// a fatal ProgrammingFault, so there is deliberately no setter surface
// here, only construction-time options, the same LoopOption/
// loopOptionImpl shape as eventloop/options.go.
type Option func(*looperOptions)

type looperOptions struct {
	flags    Flag
	clock    Clock
	executor Executor
	logger   Logger
	config   Config
	sink     ExceptionSink
}

func defaultLooperOptions() looperOptions {
	return looperOptions{
		clock:  NewSystemClock(),
		config: DefaultConfig(),
		logger: NopLogger{},
	}
}

// WithFlags sets the Looper's flag bitmask, replacing any previously set.
func WithFlags(flags Flag) Option {
	return func(o *looperOptions) { o.flags = flags }
}

// WithClock installs a Clock collaborator. Defaults to NewSystemClock().
func WithClock(c Clock) Option {
	return func(o *looperOptions) { o.clock = c }
}

// WithExecutor installs the parallel executor used for async dispatch and
// ASYNC-flagged Loopers. Defaults to a PoolExecutor reporting to the
// configured ExceptionSink.
func WithExecutor(e Executor) Option {
	return func(o *looperOptions) { o.executor = e }
}

// WithLogger installs a Logger. Defaults to NopLogger.
func WithLogger(l Logger) Option {
	return func(o *looperOptions) { o.logger = l }
}

// WithConfig installs a Config. Defaults to DefaultConfig().
func WithConfig(c Config) Option {
	return func(o *looperOptions) { o.config = c }
}

// WithExceptionSink installs the sink invoked whenever dispatched user code
// panics. Defaults to a LoggingExceptionSink wrapping the configured
// Logger.
func WithExceptionSink(s ExceptionSink) Option {
	return func(o *looperOptions) { o.sink = s }
}

func resolveLooperOptions(opts ...Option) looperOptions {
	o := defaultLooperOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.sink == nil {
		o.sink = LoggingExceptionSink{Logger: o.logger}
	}
	if o.executor == nil {
		o.executor = NewPoolExecutor(o.sink)
	}
	return o
}
