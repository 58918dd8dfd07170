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
	"crypto"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-certslot/pkg/adapters/logger"
	"github.com/jeremyhahn/go-certslot/pkg/certbuilder"
	"github.com/jeremyhahn/go-certslot/pkg/dn"
	"github.com/jeremyhahn/go-certslot/pkg/metrics"
	"github.com/jeremyhahn/go-certslot/pkg/signer"
	"github.com/jeremyhahn/go-certslot/pkg/slot"
	"github.com/jeremyhahn/go-certslot/pkg/storage"
	"github.com/jeremyhahn/go-certslot/pkg/types"
	"github.com/jeremyhahn/go-certslot/pkg/validation"
)

// AuthorityOptions shape a self-signed authority certificate. Zero values
// select the certificate builder defaults.
type AuthorityOptions struct {
	// Algorithm of the authority key. Defaults to Config.Algorithm.
	Algorithm types.Algorithm

	// Serial is a big-endian serial number. Random when empty.
	Serial []byte

	NotBefore time.Time
	NotAfter  time.Time

	// KeyUsage defaults to digitalSignature.
	KeyUsage x509.KeyUsage

	// IsCA adds a critical Basic Constraints extension with cA set.
	IsCA bool

	// Persist asks the provider to keep the key across restarts.
	Persist bool
}

// Authority is an issuer: a key that never leaves its slot, together with
// its name and self-signed certificate. It is immutable.
type Authority struct {
	slot   *slot.Slot
	key    *slot.KeyPairHandle
	name   dn.DistinguishedName
	cert   *slot.Certificate
	signer *signer.Signer
}

// Slot returns the slot holding the authority key.
func (a *Authority) Slot() *slot.Slot { return a.slot }

// Key returns the authority key handle.
func (a *Authority) Key() *slot.KeyPairHandle { return a.key }

// Name returns the authority name, used as issuer of every certificate it signs.
func (a *Authority) Name() dn.DistinguishedName { return a.name }

// Certificate returns the self-signed authority certificate.
func (a *Authority) Certificate() *slot.Certificate { return a.cert }

// Algorithm returns the signature algorithm.
func (a *Authority) Algorithm() types.Algorithm { return a.signer.Algorithm() }

// PublicKey returns the authority public key.
func (a *Authority) PublicKey() crypto.PublicKey { return a.key.PublicKey() }

// CreateAuthority generates a key named label in s, self-signs a
// certificate for name with it and stores the certificate in s under the
// same label and in the sink.
func (o *Orchestrator) CreateAuthority(ctx context.Context, s *slot.Slot, label string, name dn.DistinguishedName, opts AuthorityOptions) (*Authority, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: slot is required", ErrInvalidRequest)
	}
	if name.IsZero() {
		return nil, fmt.Errorf("%w: authority name is required", ErrInvalidRequest)
	}
	if err := storage.ValidateID(label); err != nil {
		return nil, fmt.Errorf("%w: label %q", ErrInvalidRequest, label)
	}
	alg := opts.Algorithm
	if alg == "" {
		alg = o.algorithm
	}

	start := time.Now()
	a, err := o.createAuthority(ctx, s, label, name, alg, opts)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	metrics.RecordOperation(metrics.OpCreateCA, s.Type().String(), status, time.Since(start).Seconds())
	if err != nil {
		o.logger.ErrorContext(ctx, "authority creation failed",
			logger.Slot(s.ID()), logger.Label(label), logger.Error(err))
		return nil, err
	}

	o.logger.InfoContext(ctx, "authority created",
		logger.Slot(s.ID()),
		logger.Label(label),
		logger.String("subject", validation.SanitizeForLog(name.String())),
		logger.Serial(storage.SerialHex(a.cert.SerialNumber())),
		logger.String("algorithm", alg.String()))
	return a, nil
}

func (o *Orchestrator) createAuthority(ctx context.Context, s *slot.Slot, label string, name dn.DistinguishedName, alg types.Algorithm, opts AuthorityOptions) (*Authority, error) {
	sig, err := signer.New(s, alg)
	if err != nil {
		return nil, err
	}

	key, err := s.GenerateKeyPair(ctx, label, alg)
	if err != nil {
		return nil, err
	}
	if opts.Persist {
		if err := s.PersistKey(ctx, key); err != nil {
			return nil, err
		}
	}

	tmpl, err := o.builder.Build(&certbuilder.Request{
		Serial:     opts.Serial,
		Issuer:     name,
		Subject:    name,
		NotBefore:  opts.NotBefore,
		NotAfter:   opts.NotAfter,
		SubjectKey: key.PublicKey(),
		KeyUsage:   opts.KeyUsage,
		IsCA:       opts.IsCA,
	})
	if err != nil {
		return nil, fmt.Errorf("build authority certificate: %w", err)
	}

	cert, err := retry(ctx, o, StageSigned, func() (*slot.Certificate, error) {
		return sig.Sign(ctx, tmpl, key)
	})
	if err != nil {
		return nil, fmt.Errorf("sign authority certificate: %w", err)
	}

	cert, err = s.StoreCertificate(ctx, label, cert.DER())
	if err != nil {
		return nil, err
	}
	if o.sink != nil {
		if err := o.sink.StoreCertificate(ctx, s.ID(), cert.X509()); err != nil {
			return nil, fmt.Errorf("store authority certificate: %w", err)
		}
	}

	return &Authority{
		slot:   s,
		key:    key,
		name:   name,
		cert:   cert,
		signer: sig,
	}, nil
}
