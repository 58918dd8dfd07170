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

package correlation

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestWithCorrelationID(t *testing.T) {
	tests := []struct {
		name          string
		ctx           context.Context
		correlationID string
		want          string
	}{
		{
			name:          "Add correlation ID to context",
			ctx:           context.Background(),
			correlationID: "test-correlation-id",
			want:          "test-correlation-id",
		},
		{
			name:          "Add correlation ID to nil context",
			ctx:           nil,
			correlationID: "test-correlation-id-2",
			want:          "test-correlation-id-2",
		},
		{
			name:          "Add empty correlation ID",
			ctx:           context.Background(),
			correlationID: "",
			want:          "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithCorrelationID(tt.ctx, tt.correlationID)
			if ctx == nil {
				t.Fatal("WithCorrelationID returned nil context")
			}
			got := GetCorrelationID(ctx)
			if got != tt.want {
				t.Errorf("GetCorrelationID() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCorrelationID_Missing(t *testing.T) {
	if got := GetCorrelationID(context.Background()); got != "" {
		t.Errorf("GetCorrelationID() = %q, want empty", got)
	}
	//nolint:staticcheck // nil context is handled explicitly
	if got := GetCorrelationID(nil); got != "" {
		t.Errorf("GetCorrelationID(nil) = %q, want empty", got)
	}
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "leaf-1")
	if got := GetRequestID(ctx); got != "leaf-1" {
		t.Errorf("GetRequestID() = %q, want leaf-1", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
	if GetCorrelationID(ctx) != "" {
		t.Error("request ID must not leak into correlation ID")
	}
}

func TestNewID(t *testing.T) {
	id := NewID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("NewID() = %q is not a UUID: %v", id, err)
	}
	if NewID() == id {
		t.Error("NewID() returned the same ID twice")
	}
}

func TestGetOrGenerate(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "existing")
	if got := GetOrGenerate(ctx); got != "existing" {
		t.Errorf("GetOrGenerate() = %q, want existing", got)
	}
	if got := GetOrGenerate(context.Background()); got == "" {
		t.Error("GetOrGenerate() returned empty ID")
	}
}

func TestEnsure(t *testing.T) {
	ctx, id := Ensure(context.Background())
	if id == "" {
		t.Fatal("Ensure() returned empty ID")
	}
	if GetCorrelationID(ctx) != id {
		t.Errorf("context carries %q, want %q", GetCorrelationID(ctx), id)
	}

	again, id2 := Ensure(ctx)
	if id2 != id || again != ctx {
		t.Error("Ensure() should reuse an existing correlation ID")
	}
}
