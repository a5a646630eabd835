// Copyright © 2026 The nanolisp authors

package lisp

import (
	"fmt"
	"io"
	"log"
)

// Logger is the narrow logging surface the runtime calls into for context
// lifecycle transitions and GC cycle statistics. It is an interface over
// Runtime.Stderr-backed diagnostics so an embedder on a constrained host
// can swap in a no-op and pay nothing for it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// NopLogger discards everything. It is the default so the interpreter
// stays silent on hosts where even formatting a log line is unaffordable.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...interface{}) {}
func (NopLogger) Infof(string, ...interface{})  {}
func (NopLogger) Warnf(string, ...interface{})  {}

// StdLogger writes to an io.Writer (typically Runtime.Stderr) through the
// standard library's log.Logger, prefixing each level.
type StdLogger struct {
	l *log.Logger
}

// NewStdLogger builds a Logger writing to w.
func NewStdLogger(w io.Writer) *StdLogger {
	return &StdLogger{l: log.New(w, "", log.LstdFlags)}
}

func (s *StdLogger) Debugf(format string, args ...interface{}) {
	s.l.Output(2, "DEBUG "+fmt.Sprintf(format, args...))
}

func (s *StdLogger) Infof(format string, args ...interface{}) {
	s.l.Output(2, "INFO "+fmt.Sprintf(format, args...))
}

func (s *StdLogger) Warnf(format string, args ...interface{}) {
	s.l.Output(2, "WARN "+fmt.Sprintf(format, args...))
}
