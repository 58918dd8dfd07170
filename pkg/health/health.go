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

// Package health runs readiness checks against slots.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is operating normally.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is not functioning.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the component answers, but slowly.
	StatusDegraded Status = "degraded"
)

// CheckResult represents the result of a single health check.
type CheckResult struct {
	// Name is the identifier for this health check.
	Name string `json:"name"`
	// Status is the health status of the component.
	Status Status `json:"status"`
	// Message provides additional context about the status.
	Message string `json:"message,omitempty"`
	// Latency is how long the check took to execute.
	Latency time.Duration `json:"latency"`
	// Error contains error details if the check failed.
	Error string `json:"error,omitempty"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func(ctx context.Context) CheckResult

// Prober is a component that can be probed, such as a *slot.Slot.
type Prober interface {
	ID() string
	Timeout() time.Duration
	Probe(ctx context.Context) error
}

// Checker manages a set of named health checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewChecker creates a new health checker.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
	}
}

// RegisterCheck adds a health check with the given name.
// If a check with this name already exists, it will be replaced.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// RegisterProber registers SlotCheck(p) under the prober's ID.
func (c *Checker) RegisterProber(p Prober) {
	c.RegisterCheck(p.ID(), SlotCheck(p))
}

// UnregisterCheck removes a health check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Ready runs every registered check and returns the results sorted by name.
func (c *Checker) Ready(ctx context.Context) []CheckResult {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make([]CheckResult, 0, len(checks))
	for name, check := range checks {
		start := time.Now()
		result := check(ctx)
		result.Latency = time.Since(start)
		// Ensure name is set even if check doesn't set it
		if result.Name == "" {
			result.Name = name
		}
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

// Check runs the named check alone.
func (c *Checker) Check(ctx context.Context, name string) (CheckResult, bool) {
	c.mu.RLock()
	check, ok := c.checks[name]
	c.mu.RUnlock()
	if !ok {
		return CheckResult{}, false
	}
	start := time.Now()
	result := check(ctx)
	result.Latency = time.Since(start)
	if result.Name == "" {
		result.Name = name
	}
	return result, true
}

// GetAllChecks returns the sorted names of all registered checks.
func (c *Checker) GetAllChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy(ctx context.Context) bool {
	return AggregateStatus(c.Ready(ctx)) == StatusHealthy
}

// SlotCheck returns a check that probes p. A probe that succeeds but takes
// more than half the slot timeout reports StatusDegraded.
func SlotCheck(p Prober) CheckFunc {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		err := p.Probe(ctx)
		elapsed := time.Since(start)

		result := CheckResult{Name: p.ID(), Latency: elapsed}
		switch {
		case err != nil:
			result.Status = StatusUnhealthy
			result.Message = "Slot probe failed"
			result.Error = err.Error()
		case p.Timeout() > 0 && elapsed > p.Timeout()/2:
			result.Status = StatusDegraded
			result.Message = "Slot is responding slowly"
		default:
			result.Status = StatusHealthy
			result.Message = "Slot is responding"
		}
		return result
	}
}

// AggregateStatus returns the overall status based on check results.
// Any unhealthy result makes the aggregate unhealthy; otherwise any
// degraded result makes it degraded.
func AggregateStatus(results []CheckResult) Status {
	hasUnhealthy := false
	hasDegraded := false

	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}
