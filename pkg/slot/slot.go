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

// Package slot binds a cryptographic provider to an isolation boundary.
//
// A Slot serializes every provider call through a single-token semaphore,
// bounds each call with a timeout and optionally paces calls with a rate
// limiter. Objects created in a slot are returned as handles that remember
// their owner; Signer refuses handles owned by another slot, so a private
// key can only ever be used where it lives.
//
// When a provider call times out the caller receives ErrProviderTimeout at
// once. The call itself keeps running in the background and releases the
// slot when it returns.
package slot

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jeremyhahn/go-certslot/pkg/adapters/logger"
	"github.com/jeremyhahn/go-certslot/pkg/backend"
	"github.com/jeremyhahn/go-certslot/pkg/metrics"
	"github.com/jeremyhahn/go-certslot/pkg/ratelimit"
	"github.com/jeremyhahn/go-certslot/pkg/storage"
	"github.com/jeremyhahn/go-certslot/pkg/types"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

// probeLabel is looked up by Probe and never written.
const probeLabel = "health-probe"

// Config configures a Slot.
type Config struct {
	// ID names the slot. It must be a valid storage ID.
	ID string

	// Provider performs the cryptographic operations. The slot takes
	// ownership and closes it on Close.
	Provider backend.Provider

	// Timeout bounds each provider call. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Limiter paces provider calls, keyed by slot ID. Optional.
	Limiter *ratelimit.Limiter

	// Logger receives operation logs. Defaults to a no-op logger.
	Logger logger.Logger
}

// Slot is an isolation boundary around one provider instance.
type Slot struct {
	id       string
	provider backend.Provider
	timeout  time.Duration
	limiter  *ratelimit.Limiter
	logger   logger.Logger
	sem      *semaphore.Weighted
	closed   atomic.Bool
}

// New creates a Slot from cfg.
func New(cfg *Config) (*Slot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if err := storage.ValidateID(cfg.ID); err != nil {
		return nil, fmt.Errorf("%w: slot id %q", ErrInvalidConfig, cfg.ID)
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Slot{
		id:       cfg.ID,
		provider: cfg.Provider,
		timeout:  timeout,
		limiter:  cfg.Limiter,
		logger:   log.With(logger.Slot(cfg.ID)),
		sem:      semaphore.NewWeighted(1),
	}, nil
}

// ID returns the slot identifier.
func (s *Slot) ID() string { return s.id }

// Type returns the provider backend type.
func (s *Slot) Type() backend.BackendType { return s.provider.Type() }

// Capabilities returns the provider capabilities.
func (s *Slot) Capabilities() backend.Capabilities { return s.provider.Capabilities() }

// Timeout returns the per-call timeout.
func (s *Slot) Timeout() time.Duration { return s.timeout }

// Owns reports whether a was created by this Slot. Another Slot with the
// same ID does not own it.
func (s *Slot) Owns(a Artifact) bool {
	return a != nil && a.owner() == s
}

// NewLabel returns a label with prefix that is unique for practical
// purposes, for objects whose label the caller does not choose.
func (s *Slot) NewLabel(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// GenerateKeyPair creates a key pair inside the slot.
func (s *Slot) GenerateKeyPair(ctx context.Context, label string, alg types.Algorithm) (*KeyPairHandle, error) {
	var rec *backend.KeyRecord
	err := s.do(ctx, metrics.OpGenerate, func(ctx context.Context) error {
		var err error
		rec, err = s.provider.GenerateKeyPair(ctx, label, alg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("generate key %q in slot %s: %w", label, s.id, err)
	}
	s.logger.Debug("key pair generated", logger.Label(rec.ID), logger.String("algorithm", rec.Algorithm.String()))
	return s.handle(rec), nil
}

// ImportPublicKey stores a SubjectPublicKeyInfo in the slot and returns a
// public only handle.
func (s *Slot) ImportPublicKey(ctx context.Context, label string, spki []byte, alg types.Algorithm) (*KeyPairHandle, error) {
	var rec *backend.KeyRecord
	err := s.do(ctx, metrics.OpImport, func(ctx context.Context) error {
		var err error
		rec, err = s.provider.ImportPublicKey(ctx, label, spki, alg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("import public key %q into slot %s: %w", label, s.id, err)
	}
	s.logger.Debug("public key imported", logger.Label(rec.ID))
	return s.handle(rec), nil
}

// ExportPublicKey reads the public half of h from the provider.
func (s *Slot) ExportPublicKey(ctx context.Context, h *KeyPairHandle) (*PublicKey, error) {
	if err := s.checkOwned(h); err != nil {
		return nil, err
	}
	var spki []byte
	err := s.do(ctx, metrics.OpExport, func(ctx context.Context) error {
		var err error
		spki, err = s.provider.ExportPublicKey(ctx, h.keyID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("export public key %q from slot %s: %w", h.keyID, s.id, err)
	}
	key, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyImportFailed, err)
	}
	return &PublicKey{slot: s, slotID: s.id, label: h.keyID, alg: h.alg, spki: spki, key: key}, nil
}

// PersistKey asks the provider to make h survive a restart.
func (s *Slot) PersistKey(ctx context.Context, h *KeyPairHandle) error {
	if err := s.checkOwned(h); err != nil {
		return err
	}
	err := s.do(ctx, metrics.OpStoreKey, func(ctx context.Context) error {
		return s.provider.StoreKey(ctx, h.keyID)
	})
	if err != nil {
		return fmt.Errorf("persist key %q in slot %s: %w", h.keyID, s.id, err)
	}
	return nil
}

// StoreCertificate stores der under label and returns the slot's handle.
func (s *Slot) StoreCertificate(ctx context.Context, label string, der []byte) (*Certificate, error) {
	cert, err := s.NewCertificate(label, der)
	if err != nil {
		return nil, err
	}
	err = s.do(ctx, metrics.OpStoreCert, func(ctx context.Context) error {
		return s.provider.StoreCertificate(ctx, label, cert.der)
	})
	if err != nil {
		return nil, fmt.Errorf("store certificate %q in slot %s: %w", label, s.id, err)
	}
	s.logger.Debug("certificate stored", logger.Label(label))
	return cert, nil
}

// Certificate loads the certificate stored under label.
func (s *Slot) Certificate(ctx context.Context, label string) (*Certificate, error) {
	var der []byte
	err := s.do(ctx, metrics.OpGetCert, func(ctx context.Context) error {
		var err error
		der, err = s.provider.Certificate(ctx, label)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load certificate %q from slot %s: %w", label, s.id, err)
	}
	return s.NewCertificate(label, der)
}

// Probe checks that the provider answers within the slot timeout with a
// read-only certificate lookup under the slot lock.
func (s *Slot) Probe(ctx context.Context) error {
	return s.do(ctx, metrics.OpHealthCheck, func(ctx context.Context) error {
		_, err := s.provider.Certificate(ctx, probeLabel)
		if errors.Is(err, backend.ErrCertificateNotFound) {
			return nil
		}
		return err
	})
}

// NewCertificate wraps der as a certificate owned by this slot without
// storing it in the provider. Certificates are public, so any slot may
// hold one.
func (s *Slot) NewCertificate(label string, der []byte) (*Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrInvalidCertificate, err)
	}
	if label == "" {
		label = "cert-" + storage.SerialHex(cert.SerialNumber)
	}
	return &Certificate{slot: s, slotID: s.id, label: label, der: cloneBytes(der), cert: cert}, nil
}

// Close waits for an in-flight provider call, up to the slot timeout, and
// closes the provider. Later calls fail with ErrClosed.
func (s *Slot) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.logger.Warn("closing slot with a provider call still running")
	} else {
		defer s.sem.Release(1)
	}
	return s.provider.Close()
}

func (s *Slot) handle(rec *backend.KeyRecord) *KeyPairHandle {
	return &KeyPairHandle{
		slot:       s,
		slotID:     s.id,
		keyID:      rec.ID,
		alg:        rec.Algorithm,
		pub:        rec.PublicKey,
		hasPrivate: rec.HasPrivate,
	}
}

func (s *Slot) checkOwned(h *KeyPairHandle) error {
	if h == nil || h.keyID == "" {
		return ErrInvalidHandle
	}
	if h.slot != s {
		if h.slotID == s.id {
			return fmt.Errorf("%w: key %s is owned by another slot instance with ID %s", ErrCrossSlotSigningViolation, h.keyID, s.id)
		}
		return fmt.Errorf("%w: key %s is owned by slot %s, not %s", ErrCrossSlotSigningViolation, h.keyID, h.slotID, s.id)
	}
	return nil
}

// do runs fn under the slot lock with the slot timeout. The lock is waited
// for under ctx alone; the timeout starts once the lock is held.
func (s *Slot) do(ctx context.Context, op string, fn func(context.Context) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.limiter.Wait(ctx, s.id); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("rate limit: %w", err)
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if s.closed.Load() {
		s.sem.Release(1)
		return ErrClosed
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	backendType := s.provider.Type().String()
	metrics.SetSlotBusy(s.id, true)
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			metrics.SetSlotBusy(s.id, false)
			s.sem.Release(1)
		}()
		done <- fn(opCtx)
	}()

	select {
	case err := <-done:
		elapsed := time.Since(start)
		if err != nil {
			metrics.RecordOperation(op, backendType, metrics.StatusError, elapsed.Seconds())
			// A provider that honours opCtx can beat the select to the deadline.
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				metrics.RecordError(op, backendType, "timeout")
				return fmt.Errorf("%w: %s after %s: %w", ErrProviderTimeout, op, s.timeout, err)
			}
			metrics.RecordError(op, backendType, errorType(err))
			return err
		}
		metrics.RecordOperation(op, backendType, metrics.StatusSuccess, elapsed.Seconds())
		return nil
	case <-opCtx.Done():
		metrics.RecordOperation(op, backendType, metrics.StatusError, time.Since(start).Seconds())
		if err := ctx.Err(); err != nil {
			metrics.RecordError(op, backendType, "canceled")
			return err
		}
		metrics.RecordError(op, backendType, "timeout")
		s.logger.WarnContext(ctx, "provider call timed out",
			logger.Operation(op), logger.Duration("timeout", s.timeout))
		return fmt.Errorf("%w: %s after %s", ErrProviderTimeout, op, s.timeout)
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	case errors.Is(err, backend.ErrKeyNotFound), errors.Is(err, backend.ErrCertificateNotFound):
		return "not_found"
	case errors.Is(err, backend.ErrKeyAlreadyExists), errors.Is(err, backend.ErrCertificateExists):
		return "exists"
	case errors.Is(err, backend.ErrKeyImportFailed):
		return "import_failed"
	case errors.Is(err, backend.ErrNoPrivateKey):
		return "no_private_key"
	case errors.Is(err, backend.ErrClosed):
		return "closed"
	default:
		return "provider"
	}
}
