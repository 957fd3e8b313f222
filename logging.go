// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"io"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logging sink the Looper core reports against.
// It carries exactly four severities: fine, info, warning, and severe, the
// latter two optionally carrying the error that triggered the message.
type Logger interface {
	Fine(msg string)
	Info(msg string)
	Warning(msg string, err error)
	Severe(msg string, err error)
}

// NopLogger discards everything. It is the Looper's default Logger when
// none is supplied via WithLogger.
type NopLogger struct{}

func (NopLogger) Fine(string)           {}
func (NopLogger) Info(string)           {}
func (NopLogger) Warning(string, error) {}
func (NopLogger) Severe(string, error)  {}

// LogifaceLogger is the production Logger, wrapping
// github.com/joeycumines/logiface with the github.com/joeycumines/stumpy
// JSON writer, via stumpy.L.New(stumpy.L.WithStumpy(...)).
//
// Severity mapping: Fine→Debug, Info→Informational, Warning→Warning,
// Severe→Critical (one notch below Alert/Emergency, which logiface reserves
// for conditions that call os.Exit/panic — not appropriate for a recovered
// user-callback fault).
type LogifaceLogger struct {
	logger *logiface.Logger[logiface.Event]
}

// NewLogifaceLogger returns a LogifaceLogger writing newline-delimited JSON
// to w. Pass os.Stderr for the conventional default.
func NewLogifaceLogger(w io.Writer) *LogifaceLogger {
	l := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(w))).Logger()
	return &LogifaceLogger{logger: l}
}

// Fine implements Logger.
func (l *LogifaceLogger) Fine(msg string) {
	l.logger.Debug().Log(msg)
}

// Info implements Logger.
func (l *LogifaceLogger) Info(msg string) {
	l.logger.Info().Log(msg)
}

// Warning implements Logger.
func (l *LogifaceLogger) Warning(msg string, err error) {
	b := l.logger.Warning()
	if err != nil {
		b = b.Err(err)
	}
	b.Log(msg)
}

// Severe implements Logger.
func (l *LogifaceLogger) Severe(msg string, err error) {
	b := l.logger.Crit()
	if err != nil {
		b = b.Err(err)
	}
	b.Log(msg)
}

// DefaultLogger returns the package's conventional production Logger,
// writing to stderr.
func DefaultLogger() Logger {
	return NewLogifaceLogger(os.Stderr)
}

// RecordingLogger captures every call for assertions in tests that need to
// observe "can't keep up" / "time ran backwards" style messages without a
// live terminal.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []RecordedEntry
}

// RecordedEntry is one captured log call.
type RecordedEntry struct {
	Severity string
	Message  string
	Err      error
}

func (l *RecordingLogger) record(severity, msg string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, RecordedEntry{Severity: severity, Message: msg, Err: err})
}

func (l *RecordingLogger) Fine(msg string)              { l.record("fine", msg, nil) }
func (l *RecordingLogger) Info(msg string)              { l.record("info", msg, nil) }
func (l *RecordingLogger) Warning(msg string, err error) { l.record("warning", msg, err) }
func (l *RecordingLogger) Severe(msg string, err error)  { l.record("severe", msg, err) }

// Entries returns a snapshot of everything logged so far.
func (l *RecordingLogger) Entries() []RecordedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RecordedEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
