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

package issuance

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-certslot/pkg/adapters/logger"
	"github.com/jeremyhahn/go-certslot/pkg/types"
)

const (
	// DefaultRetryBackoff is the delay before the first retry. It doubles
	// on every further attempt.
	DefaultRetryBackoff = 100 * time.Millisecond

	// DefaultConcurrency bounds the batches Pipeline runs at once.
	DefaultConcurrency = 4
)

// Sink receives every stored certificate together with the slot holding it.
// certstore.CertStore satisfies it.
type Sink interface {
	StoreCertificate(ctx context.Context, slotID string, cert *x509.Certificate) error
}

// Config configures an Orchestrator.
type Config struct {
	// Sink receives stored certificates. Optional.
	Sink Sink

	// Logger receives issuance logs. Defaults to a no-op logger.
	Logger logger.Logger

	// Algorithm is the default signature algorithm for authorities.
	// Defaults to types.DefaultAlgorithm.
	Algorithm types.Algorithm

	// MaxRetries is how often a timed out provider call is retried.
	// Zero disables retries.
	MaxRetries int

	// RetryBackoff is the delay before the first retry.
	RetryBackoff time.Duration

	// Concurrency bounds the batches Pipeline runs at once.
	Concurrency int

	// Clock supplies the default notBefore. Defaults to time.Now.
	Clock func() time.Time

	// Rand is the source for random serial numbers. Defaults to crypto/rand.
	Rand io.Reader
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if c.Algorithm != "" && !c.Algorithm.Valid() {
		return fmt.Errorf("%w: %w: %s", ErrInvalidConfig, types.ErrUnknownAlgorithm, c.Algorithm)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: negative max retries", ErrInvalidConfig)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("%w: negative retry backoff", ErrInvalidConfig)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: negative concurrency", ErrInvalidConfig)
	}
	return nil
}
