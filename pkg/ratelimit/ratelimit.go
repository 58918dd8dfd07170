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

// Package ratelimit paces provider calls per slot with token buckets from
// golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per key. Keys are slot IDs.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	enabled  bool
}

// Config configures a Limiter.
type Config struct {
	// Enabled controls whether rate limiting is active.
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`

	// OperationsPerSecond sets the sustained provider call rate.
	OperationsPerSecond float64 `yaml:"ops_per_second" json:"ops_per_second" mapstructure:"ops_per_second"`

	// Burst allows short bursts above the sustained rate.
	// If not set, defaults to 1.
	Burst int `yaml:"burst" json:"burst" mapstructure:"burst"`
}

// New creates a Limiter. A nil config or a non-positive rate disables it.
func New(config *Config) *Limiter {
	if config == nil {
		config = &Config{Enabled: false}
	}

	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(config.OperationsPerSecond),
		burst:    burst,
		enabled:  config.Enabled && config.OperationsPerSecond > 0,
	}
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// Allow reports whether a call for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	if l == nil || !l.enabled {
		return true
	}
	return l.getLimiter(key).Allow()
}

// Wait blocks until a call for key may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil || !l.enabled {
		return nil
	}
	return l.getLimiter(key).Wait(ctx)
}

// Stats returns the limiter settings and the number of tracked keys.
func (l *Limiter) Stats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return map[string]interface{}{
		"enabled":        l.enabled,
		"active_slots":   len(l.limiters),
		"ops_per_second": float64(l.rate),
		"burst":          l.burst,
	}
}

// IsEnabled reports whether the limiter paces calls.
func (l *Limiter) IsEnabled() bool {
	return l != nil && l.enabled
}
