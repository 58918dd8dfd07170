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

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-certslot/internal/config"
	"github.com/jeremyhahn/go-certslot/pkg/adapters/logger"
	"github.com/jeremyhahn/go-certslot/pkg/backend"
	"github.com/jeremyhahn/go-certslot/pkg/backend/pkcs11"
	"github.com/jeremyhahn/go-certslot/pkg/backend/pkcs8"
	"github.com/jeremyhahn/go-certslot/pkg/certstore"
	"github.com/jeremyhahn/go-certslot/pkg/issuance"
	"github.com/jeremyhahn/go-certslot/pkg/ratelimit"
	"github.com/jeremyhahn/go-certslot/pkg/slot"
	"github.com/jeremyhahn/go-certslot/pkg/storage"
	"github.com/jeremyhahn/go-certslot/pkg/storage/file"
	"github.com/jeremyhahn/go-certslot/pkg/storage/memory"
	"github.com/jeremyhahn/go-certslot/pkg/types"
)

// Engine wires the configured slots, certificate store and orchestrator.
type Engine struct {
	cfg          *config.Config
	logger       logger.Logger
	store        storage.Backend
	certs        certstore.CertStore
	orchestrator *issuance.Orchestrator
	slots        map[string]*slot.Slot
	order        []string
}

// Report summarizes one issuance run.
type Report struct {
	Authority *certstore.CertificateInfo
	Result    *issuance.Result
}

// NewEngine opens storage and every configured slot. The caller must Close
// the engine.
func NewEngine(cfg *config.Config, log logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		logger: log,
		store:  store,
		slots:  make(map[string]*slot.Slot, len(cfg.Slots)),
	}

	e.certs, err = certstore.New(&certstore.Config{Storage: store})
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	alg, err := types.ParseAlgorithm(cfg.Issuance.Algorithm)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.orchestrator, err = issuance.New(&issuance.Config{
		Sink:         e.certs,
		Logger:       log,
		Algorithm:    alg,
		MaxRetries:   cfg.Issuance.MaxRetries,
		RetryBackoff: cfg.Issuance.RetryBackoff,
		Concurrency:  cfg.Issuance.Concurrency,
	})
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	for i := range cfg.Slots {
		s, err := e.openSlot(&cfg.Slots[i])
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("slot %s: %w", cfg.Slots[i].ID, err)
		}
		e.slots[s.ID()] = s
		e.order = append(e.order, s.ID())
	}
	return e, nil
}

func openStorage(cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(), nil
	case "file":
		store, err := file.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage backend: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

func (e *Engine) openSlot(sc *config.SlotConfig) (*slot.Slot, error) {
	var (
		provider backend.Provider
		err      error
	)
	switch backend.ParseBackendType(sc.Type) {
	case backend.BackendTypePKCS8:
		provider, err = pkcs8.NewBackend(&pkcs8.Config{
			SlotID:     sc.ID,
			KeyStorage: e.store,
			Password:   []byte(sc.Password),
		})
	case backend.BackendTypePKCS11:
		if sc.PKCS11 == nil {
			return nil, fmt.Errorf("%w: pkcs11 settings are required", backend.ErrInvalidConfig)
		}
		p11 := *sc.PKCS11
		p11.SlotID = sc.ID
		provider, err = pkcs11.NewProvider(&p11)
	default:
		return nil, fmt.Errorf("%w: unknown slot type %q", backend.ErrInvalidConfig, sc.Type)
	}
	if err != nil {
		return nil, err
	}

	timeout := sc.Timeout
	if timeout == 0 {
		timeout = e.cfg.Issuance.Timeout
	}
	var limiter *ratelimit.Limiter
	if sc.RateLimit != nil {
		limiter = ratelimit.New(sc.RateLimit)
	}

	s, err := slot.New(&slot.Config{
		ID:       sc.ID,
		Provider: provider,
		Timeout:  timeout,
		Limiter:  limiter,
		Logger:   e.logger,
	})
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	return s, nil
}

// Slots returns the open slots in configuration order.
func (e *Engine) Slots() []*slot.Slot {
	out := make([]*slot.Slot, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.slots[id])
	}
	return out
}

// Slot returns an open slot by ID.
func (e *Engine) Slot(id string) (*slot.Slot, bool) {
	s, ok := e.slots[id]
	return s, ok
}

// CertStore returns the store issued certificates are filed in.
func (e *Engine) CertStore() certstore.CertStore {
	return e.certs
}

// Run creates the configured authority and issues every configured
// certificate against it. Per-certificate failures are reported in the
// Result, not returned.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	ca, err := e.createAuthority(ctx)
	if err != nil {
		return nil, err
	}

	reqs := make([]*issuance.Request, 0, len(e.cfg.Certificates))
	for i := range e.cfg.Certificates {
		req, err := e.request(&e.cfg.Certificates[i])
		if err != nil {
			return nil, fmt.Errorf("certificate %s: %w", e.cfg.Certificates[i].ID, err)
		}
		reqs = append(reqs, req)
	}

	results, err := e.orchestrator.Pipeline(ctx, []issuance.Job{{Authority: ca, Requests: reqs}})
	if err != nil {
		return nil, err
	}
	return &Report{
		Authority: certstore.Info(ca.Slot().ID(), ca.Certificate().X509()),
		Result:    results[0],
	}, nil
}

func (e *Engine) createAuthority(ctx context.Context) (*issuance.Authority, error) {
	ac := e.cfg.Authority
	s, ok := e.slots[ac.Slot]
	if !ok {
		return nil, fmt.Errorf("authority: unknown slot %q", ac.Slot)
	}
	name, err := ac.Subject.Name()
	if err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}
	serial, err := config.ParseSerial(ac.Serial)
	if err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}
	usage, err := types.ParseKeyUsage(ac.KeyUsage)
	if err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}
	var alg types.Algorithm
	if ac.Algorithm != "" {
		if alg, err = types.ParseAlgorithm(ac.Algorithm); err != nil {
			return nil, fmt.Errorf("authority: %w", err)
		}
	}
	notBefore, notAfter := ac.Validity.Bounds()

	return e.orchestrator.CreateAuthority(ctx, s, ac.Label, name, issuance.AuthorityOptions{
		Algorithm: alg,
		Serial:    serial,
		NotBefore: notBefore,
		NotAfter:  notAfter,
		KeyUsage:  usage,
		IsCA:      ac.IsCA,
		Persist:   ac.Persist,
	})
}

// request translates a certificate entry. Key generation is left to the
// orchestrator so a provider failure only fails that certificate.
func (e *Engine) request(cc *config.CertificateConfig) (*issuance.Request, error) {
	keySlot, ok := e.slots[cc.KeySlot]
	if !ok {
		return nil, fmt.Errorf("unknown key slot %q", cc.KeySlot)
	}
	name, err := cc.Subject.Name()
	if err != nil {
		return nil, err
	}
	serial, err := config.ParseSerial(cc.Serial)
	if err != nil {
		return nil, err
	}
	usage, err := types.ParseKeyUsage(cc.KeyUsage)
	if err != nil {
		return nil, err
	}
	alg, err := types.ParseAlgorithm(e.cfg.Issuance.Algorithm)
	if err != nil {
		return nil, err
	}

	var deliverTo *slot.Slot
	if cc.DeliverTo != "" {
		if deliverTo, ok = e.slots[cc.DeliverTo]; !ok {
			return nil, fmt.Errorf("unknown deliver_to slot %q", cc.DeliverTo)
		}
	}

	notBefore, notAfter := cc.Validity.Bounds()
	return &issuance.Request{
		ID:        cc.ID,
		Serial:    serial,
		Subject:   name,
		NotBefore: notBefore,
		NotAfter:  notAfter,
		KeyUsage:  usage,
		GenerateKey: &issuance.KeySpec{
			Slot:      keySlot,
			Label:     cc.KeyLabel,
			Algorithm: alg,
			Persist:   cc.Persist,
		},
		DeliverTo: deliverTo,
		Label:     cc.Label,
	}, nil
}

// Close closes every slot, the certificate store and storage.
func (e *Engine) Close() error {
	var errs []error
	for _, id := range e.order {
		if err := e.slots[id].Close(); err != nil {
			errs = append(errs, fmt.Errorf("slot %s: %w", id, err))
		}
	}
	if e.certs != nil {
		if err := e.certs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
