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
	"errors"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFieldConstructors(t *testing.T) {
	err := errors.New("boom")
	tests := []struct {
		name      string
		field     Field
		wantKey   string
		wantValue interface{}
	}{
		{"String", String("k", "v"), "k", "v"},
		{"Int", Int("n", 3), "n", 3},
		{"Bool", Bool("b", true), "b", true},
		{"Error", Error(err), "error", err},
		{"Any", Any("a", 1.5), "a", 1.5},
		{"Duration", Duration("d", time.Second), "d", time.Second},
		{"Slot", Slot("A"), "slot", "A"},
		{"Stage", Stage("signed"), "stage", "signed"},
		{"Serial", Serial("01"), "serial", "01"},
		{"RequestID", RequestID("leaf"), "request_id", "leaf"},
		{"Label", Label("ca-key"), "label", "ca-key"},
		{"Operation", Operation("sign"), "op", "sign"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Key != tt.wantKey {
				t.Errorf("Key = %v, want %v", tt.field.Key, tt.wantKey)
			}
			if tt.field.Value != tt.wantValue {
				t.Errorf("Value = %v, want %v", tt.field.Value, tt.wantValue)
			}
		})
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("x")
	l.Info("x", String("k", "v"))
	l.Warn("x")
	l.Error("x")
	l.InfoContext(nil, "x") //nolint:staticcheck
	if l.With(Slot("A")) == nil {
		t.Error("With() returned nil")
	}
	if l.WithError(errors.New("e")) == nil {
		t.Error("WithError() returned nil")
	}
}
