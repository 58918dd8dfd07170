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

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-certslot/pkg/adapters/logger"
)

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("warn", "text", &buf)

	l.Infof("hidden %d", 1)
	l.Debugf("hidden %d", 2)
	l.Warnf("shown %d", 3)
	l.Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("filtered messages were logged: %s", out)
	}
	if !strings.Contains(out, "shown 3") || !strings.Contains(out, "shown 4") {
		t.Errorf("expected warn and error output, got: %s", out)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("debug", "json", &buf)

	l.Debugf("slot %s ready", "A")
	if !strings.Contains(buf.String(), `"msg":"slot A ready"`) {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestMaybeError(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("info", "text", &buf)

	l.MaybeError(nil)
	if buf.Len() != 0 {
		t.Fatalf("MaybeError(nil) logged: %s", buf.String())
	}
	l.MaybeError(errors.New("provider timeout"))
	if !strings.Contains(buf.String(), "provider timeout") {
		t.Errorf("MaybeError did not log: %s", buf.String())
	}
	buf.Reset()
	l.Error(errors.New("closed"))
	if !strings.Contains(buf.String(), "closed") {
		t.Errorf("Error did not log: %s", buf.String())
	}
}

func TestAdapterSharesHandler(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("info", "text", &buf)

	l.Adapter().Info("issued", logger.Slot("A"))
	if !strings.Contains(buf.String(), "slot=A") {
		t.Errorf("adapter output missing: %s", buf.String())
	}
	if DefaultLogger() == nil {
		t.Error("DefaultLogger() returned nil")
	}
}
