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

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/jeremyhahn/go-certslot/pkg/correlation"
)

// SlogAdapter wraps a slog.Logger to implement the Logger interface
type SlogAdapter struct {
	logger *slog.Logger
	fields []Field
}

// SlogConfig configures the slog adapter
type SlogConfig struct {
	// Logger is the underlying slog logger
	// If nil, a new logger will be created
	Logger *slog.Logger

	// Level is the minimum log level to output
	Level Level

	// Handler is the slog handler to use (e.g., JSONHandler, TextHandler)
	// If nil and Logger is nil, a handler for Format writing to Output is used
	Handler slog.Handler

	// Format selects "json" or "text" when no handler is given
	Format string

	// Output defaults to os.Stderr
	Output io.Writer

	// AddSource adds source code position to log records
	AddSource bool
}

// NewSlogAdapter creates a new slog adapter
func NewSlogAdapter(config *SlogConfig) *SlogAdapter {
	if config == nil {
		config = &SlogConfig{}
	}

	logger := config.Logger
	if logger == nil {
		handler := config.Handler
		if handler == nil {
			out := config.Output
			if out == nil {
				out = os.Stderr
			}
			opts := &slog.HandlerOptions{
				Level:     levelToSlogLevel(config.Level),
				AddSource: config.AddSource,
			}
			if config.Format == "json" {
				handler = slog.NewJSONHandler(out, opts)
			} else {
				handler = slog.NewTextHandler(out, opts)
			}
		}
		logger = slog.New(handler)
	}

	return &SlogAdapter{
		logger: logger,
		fields: make([]Field, 0),
	}
}

// Debug logs a debug message
func (l *SlogAdapter) Debug(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelDebug, msg, fields...)
}

// Info logs an informational message
func (l *SlogAdapter) Info(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelInfo, msg, fields...)
}

// Warn logs a warning message
func (l *SlogAdapter) Warn(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelWarn, msg, fields...)
}

// Error logs an error message
func (l *SlogAdapter) Error(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelError, msg, fields...)
}

// DebugContext logs a debug message with IDs from context
func (l *SlogAdapter) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelDebug, msg, l.addContextIDs(ctx, fields)...)
}

// InfoContext logs an informational message with IDs from context
func (l *SlogAdapter) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelInfo, msg, l.addContextIDs(ctx, fields)...)
}

// WarnContext logs a warning message with IDs from context
func (l *SlogAdapter) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelWarn, msg, l.addContextIDs(ctx, fields)...)
}

// ErrorContext logs an error message with IDs from context
func (l *SlogAdapter) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelError, msg, l.addContextIDs(ctx, fields)...)
}

// addContextIDs adds correlation and request IDs from context to log fields if present
func (l *SlogAdapter) addContextIDs(ctx context.Context, fields []Field) []Field {
	if ctx == nil {
		return fields
	}
	if id := correlation.GetCorrelationID(ctx); id != "" {
		fields = append(fields, String("correlation_id", id))
	}
	if id := correlation.GetRequestID(ctx); id != "" {
		fields = append(fields, RequestID(id))
	}
	return fields
}

// With creates a child logger with the given fields
func (l *SlogAdapter) With(fields ...Field) Logger {
	allFields := make([]Field, 0, len(l.fields)+len(fields))
	allFields = append(allFields, l.fields...)
	allFields = append(allFields, fields...)

	return &SlogAdapter{
		logger: l.logger,
		fields: allFields,
	}
}

// WithError creates a child logger with an error field
func (l *SlogAdapter) WithError(err error) Logger {
	return l.With(Error(err))
}

// log is the internal logging method
func (l *SlogAdapter) log(ctx context.Context, level slog.Level, msg string, fields ...Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(l.fields)+len(fields))
	for _, f := range l.fields {
		attrs = append(attrs, fieldToAttr(f))
	}
	for _, f := range fields {
		attrs = append(attrs, fieldToAttr(f))
	}

	l.logger.LogAttrs(ctx, level, msg, attrs...)
}

// fieldToAttr converts a Field to slog.Attr
func fieldToAttr(field Field) slog.Attr {
	switch v := field.Value.(type) {
	case string:
		return slog.String(field.Key, v)
	case int:
		return slog.Int(field.Key, v)
	case bool:
		return slog.Bool(field.Key, v)
	case error:
		if v == nil {
			return slog.Any(field.Key, nil)
		}
		return slog.String(field.Key, v.Error())
	default:
		return slog.Any(field.Key, v)
	}
}

// levelToSlogLevel converts our Level to slog.Level
func levelToSlogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var _ Logger = (*SlogAdapter)(nil)
