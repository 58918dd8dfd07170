// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-certslot.
//
// go-certslot is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package logging provides the printf-style logger used by the certslot
// command line, backed by the structured adapter the engine logs through.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jeremyhahn/go-certslot/pkg/adapters/logger"
)

// Logger wraps slog for command line use.
type Logger struct {
	logger  *slog.Logger
	adapter logger.Logger
	level   logger.Level
}

// NewLogger creates a logger writing level and above to w in format
// ("text" or "json"). A nil w means os.Stderr.
func NewLogger(level, format string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl := logger.ParseLevel(level)
	opts := &slog.HandlerOptions{Level: slogLevel(lvl)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	sl := slog.New(handler)

	return &Logger{
		logger:  sl,
		adapter: logger.NewSlogAdapter(&logger.SlogConfig{Logger: sl}),
		level:   lvl,
	}
}

// Adapter returns the structured logger sharing this logger's handler.
func (l *Logger) Adapter() logger.Logger {
	return l.adapter
}

// Info logs an informational message
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Infof logs a formatted informational message
func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...any) {
	if l.level <= logger.LevelDebug {
		l.logger.Debug(fmt.Sprintf(format, args...))
	}
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Error logs an error
func (l *Logger) Error(err error) {
	l.logger.Error(err.Error())
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// MaybeError logs an error if it's not nil
func (l *Logger) MaybeError(err error) {
	if err != nil {
		l.logger.Error(err.Error())
	}
}

// DefaultLogger returns an info level text logger on stderr.
func DefaultLogger() *Logger {
	return NewLogger("info", "text", nil)
}

func slogLevel(l logger.Level) slog.Level {
	switch l {
	case logger.LevelDebug:
		return slog.LevelDebug
	case logger.LevelWarn:
		return slog.LevelWarn
	case logger.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
