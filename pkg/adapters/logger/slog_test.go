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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-certslot/pkg/correlation"
)

func newBufferedAdapter(level Level, format string) (*SlogAdapter, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSlogAdapter(&SlogConfig{Level: level, Format: format, Output: &buf}), &buf
}

func TestNewSlogAdapter_NilConfig(t *testing.T) {
	adapter := NewSlogAdapter(nil)

	if adapter == nil {
		t.Fatal("NewSlogAdapter() returned nil")
	}
	if adapter.logger == nil {
		t.Error("logger should not be nil")
	}
	if adapter.fields == nil {
		t.Error("fields should not be nil")
	}
}

func TestNewSlogAdapter_CustomLogger(t *testing.T) {
	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	adapter := NewSlogAdapter(&SlogConfig{Logger: custom})
	adapter.Info("hidden")
	adapter.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("info message should be filtered, got: %s", output)
	}
	if !strings.Contains(output, "shown") {
		t.Errorf("warn message missing, got: %s", output)
	}
}

func TestSlogAdapter_JSONFormat(t *testing.T) {
	adapter, buf := newBufferedAdapter(LevelInfo, "json")

	adapter.Info("test message", String("key", "value"), Slot("A"))

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("output should contain message, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("output should contain JSON field, got: %s", output)
	}
	if !strings.Contains(output, `"slot":"A"`) {
		t.Errorf("output should contain slot field, got: %s", output)
	}
}

func TestSlogAdapter_LevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		level    Level
		logFunc  func(Logger)
		expected bool
	}{
		{"debug at debug", LevelDebug, func(l Logger) { l.Debug("msg") }, true},
		{"debug at info", LevelInfo, func(l Logger) { l.Debug("msg") }, false},
		{"info at info", LevelInfo, func(l Logger) { l.Info("msg") }, true},
		{"info at warn", LevelWarn, func(l Logger) { l.Info("msg") }, false},
		{"warn at warn", LevelWarn, func(l Logger) { l.Warn("msg") }, true},
		{"warn at error", LevelError, func(l Logger) { l.Warn("msg") }, false},
		{"error at error", LevelError, func(l Logger) { l.Error("msg") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, buf := newBufferedAdapter(tt.level, "text")
			tt.logFunc(adapter)
			if got := buf.Len() > 0; got != tt.expected {
				t.Errorf("logged = %v, want %v (output %q)", got, tt.expected, buf.String())
			}
		})
	}
}

func TestSlogAdapter_With(t *testing.T) {
	adapter, buf := newBufferedAdapter(LevelInfo, "text")

	child := adapter.With(Slot("B")).With(Stage("signed"))
	child.Info("issued", Serial("01"))

	output := buf.String()
	for _, want := range []string{"slot=B", "stage=signed", "serial=01"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %s", want, output)
		}
	}

	buf.Reset()
	adapter.Info("parent")
	if strings.Contains(buf.String(), "slot=B") {
		t.Errorf("child fields leaked into parent: %s", buf.String())
	}
}

func TestSlogAdapter_WithError(t *testing.T) {
	adapter, buf := newBufferedAdapter(LevelInfo, "text")

	adapter.WithError(errors.New("token removed")).Error("sign failed")

	if !strings.Contains(buf.String(), `error="token removed"`) {
		t.Errorf("output missing error field: %s", buf.String())
	}
}

func TestSlogAdapter_ContextIDs(t *testing.T) {
	adapter, buf := newBufferedAdapter(LevelDebug, "json")

	ctx := correlation.WithCorrelationID(context.Background(), "batch-1")
	ctx = correlation.WithRequestID(ctx, "leaf-1")

	adapter.DebugContext(ctx, "debug")
	adapter.InfoContext(ctx, "info")
	adapter.WarnContext(ctx, "warn")
	adapter.ErrorContext(ctx, "error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %s", len(lines), buf.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, `"correlation_id":"batch-1"`) {
			t.Errorf("line missing correlation_id: %s", line)
		}
		if !strings.Contains(line, `"request_id":"leaf-1"`) {
			t.Errorf("line missing request_id: %s", line)
		}
	}
}

func TestSlogAdapter_ContextWithoutIDs(t *testing.T) {
	adapter, buf := newBufferedAdapter(LevelInfo, "text")

	adapter.InfoContext(context.Background(), "plain")
	adapter.InfoContext(nil, "nil ctx") //nolint:staticcheck

	if strings.Contains(buf.String(), "correlation_id") {
		t.Errorf("unexpected correlation_id: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "nil ctx") {
		t.Errorf("nil context message missing: %s", buf.String())
	}
}
