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

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	config := &Config{
		Enabled:             true,
		OperationsPerSecond: 1,
		Burst:               10,
	}

	limiter := New(config)
	if limiter == nil {
		t.Fatal("Expected limiter to be created")
	}

	if !limiter.IsEnabled() {
		t.Error("Expected limiter to be enabled")
	}

	stats := limiter.Stats()
	if stats["enabled"] != true {
		t.Error("Expected enabled to be true in stats")
	}
	if stats["burst"] != 10 {
		t.Errorf("Expected burst 10, got %v", stats["burst"])
	}
}

func TestAllow(t *testing.T) {
	limiter := New(&Config{
		Enabled:             true,
		OperationsPerSecond: 1,
		Burst:               5,
	})

	// First 5 calls should succeed (burst)
	for i := 0; i < 5; i++ {
		if !limiter.Allow("slot-a") {
			t.Errorf("Call %d should be allowed (burst)", i+1)
		}
	}

	// Next call should be denied (burst exhausted)
	if limiter.Allow("slot-a") {
		t.Error("Call should be denied after burst exhausted")
	}

	// Buckets are independent per slot
	if !limiter.Allow("slot-b") {
		t.Error("Other slot should not be affected")
	}
}

func TestWait(t *testing.T) {
	limiter := New(&Config{
		Enabled:             true,
		OperationsPerSecond: 20,
		Burst:               1,
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(context.Background(), "slot-a"); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("Wait() paced calls in %v, want at least 80ms", elapsed)
	}
}

func TestWait_ContextCanceled(t *testing.T) {
	limiter := New(&Config{
		Enabled:             true,
		OperationsPerSecond: 0.01,
		Burst:               1,
	})
	if err := limiter.Wait(context.Background(), "slot-a"); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx, "slot-a"); err == nil {
		t.Error("Wait() should fail on a canceled context")
	} else if !errors.Is(err, context.Canceled) {
		t.Logf("Wait() error = %v", err)
	}
}

func TestDisabledLimiter(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, OperationsPerSecond: 1}},
		{"zero rate", &Config{Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.config)
			if limiter.IsEnabled() {
				t.Fatal("Expected limiter to be disabled")
			}
			for i := 0; i < 100; i++ {
				if !limiter.Allow("slot") {
					t.Fatal("Disabled limiter should allow all calls")
				}
			}
			if err := limiter.Wait(context.Background(), "slot"); err != nil {
				t.Errorf("Wait() error = %v", err)
			}
		})
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow("slot") || nilLimiter.IsEnabled() {
		t.Error("nil limiter should allow all calls")
	}
}
