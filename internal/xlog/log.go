// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package xlog is profcore's structured logger. The shape (Logger
// interface, leveled Helper, stdout logger, level Filter) mirrors the
// go-kratos-style logger that github.com/saferwall/pe builds its
// *log.Helper fields on top of.
package xlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a logging severity.
type Level int8

// Severities, lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal sink every profcore component logs through.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes "timestamp level key=val key=val ..." lines to an
// io.Writer.
type stdLogger struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdLogger returns a Logger that writes to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{out: w}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %-5s ", time.Now().UTC().Format(time.RFC3339Nano), level)
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			fmt.Fprintf(l.out, "%v=%v ", keyvals[i], keyvals[i+1])
		} else {
			fmt.Fprintf(l.out, "%v ", keyvals[i])
		}
	}
	fmt.Fprintln(l.out)
	return nil
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// FilterLevel sets the minimum level a Filter passes through.
func FilterLevel(level Level) FilterOption {
	return func(f *Filter) { f.level = level }
}

// Filter wraps a Logger and drops records below a minimum level.
type Filter struct {
	logger Logger
	level  Level
}

// NewFilter returns a level-filtering Logger wrapping logger.
func NewFilter(logger Logger, opts ...FilterOption) Logger {
	f := &Filter{logger: logger, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}

// Helper adds leveled convenience methods on top of a Logger, the way
// *log.Helper does for the teacher's pe.File.logger field.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger in a Helper.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) Debugw(keyvals ...interface{}) { h.logger.Log(LevelDebug, keyvals...) }
func (h *Helper) Infow(keyvals ...interface{})  { h.logger.Log(LevelInfo, keyvals...) }
func (h *Helper) Warnw(keyvals ...interface{})  { h.logger.Log(LevelWarn, keyvals...) }
func (h *Helper) Errorw(keyvals ...interface{}) { h.logger.Log(LevelError, keyvals...) }

// Debug, Info, Warn and Error log a single already-formatted message,
// and Debugf/Infof/Warnf/Errorf format one per fmt.Sprintf; the
// relocated PE parser's call sites use the formatting form
// (pe.logger.Debugf and pe.logger.Warnf).
func (h *Helper) Debug(msg string) { h.logger.Log(LevelDebug, "msg", msg) }
func (h *Helper) Info(msg string)  { h.logger.Log(LevelInfo, "msg", msg) }
func (h *Helper) Warn(msg string)  { h.logger.Log(LevelWarn, "msg", msg) }
func (h *Helper) Error(msg string) { h.logger.Log(LevelError, "msg", msg) }

func (h *Helper) Debugf(format string, args ...interface{}) {
	h.logger.Log(LevelDebug, "msg", fmt.Sprintf(format, args...))
}
func (h *Helper) Infof(format string, args ...interface{}) {
	h.logger.Log(LevelInfo, "msg", fmt.Sprintf(format, args...))
}
func (h *Helper) Warnf(format string, args ...interface{}) {
	h.logger.Log(LevelWarn, "msg", fmt.Sprintf(format, args...))
}
func (h *Helper) Errorf(format string, args ...interface{}) {
	h.logger.Log(LevelError, "msg", fmt.Sprintf(format, args...))
}

// Nop is a Logger that discards everything; used as the zero-value
// default so components never need a nil check before logging.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Log(Level, ...interface{}) error { return nil }

// Default returns the package-wide fallback logger: a stdout logger
// filtered to LevelInfo and above.
func Default() *Helper {
	return NewHelper(NewFilter(NewStdLogger(os.Stdout), FilterLevel(LevelInfo)))
}
