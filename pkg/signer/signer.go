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

// Package signer turns an unsigned certificate template into a signed
// certificate using a key that never leaves its slot.
//
// The issuer key handle must belong to the issuer slot. The check is made
// here and again by slot.Slot.Signer, which is the only way to obtain a
// crypto.Signer for a handle.
package signer

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-certslot/pkg/certbuilder"
	"github.com/jeremyhahn/go-certslot/pkg/slot"
	"github.com/jeremyhahn/go-certslot/pkg/types"
)

// DefaultAlgorithm is ECDSA P-256 with SHA-256.
const DefaultAlgorithm = types.AlgorithmECDSAP256SHA256

// Signer signs templates in one slot with one algorithm.
type Signer struct {
	slot *slot.Slot
	alg  types.Algorithm
	rand io.Reader
}

// New returns a Signer for issuerSlot. An empty alg selects
// DefaultAlgorithm.
func New(issuerSlot *slot.Slot, alg types.Algorithm) (*Signer, error) {
	if issuerSlot == nil {
		return nil, ErrSlotRequired
	}
	if alg == "" {
		alg = DefaultAlgorithm
	}
	if !alg.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrSignatureAlgorithmMismatch, types.ErrUnknownAlgorithm)
	}
	return &Signer{slot: issuerSlot, alg: alg, rand: rand.Reader}, nil
}

// Algorithm returns the signature algorithm.
func (s *Signer) Algorithm() types.Algorithm {
	return s.alg
}

// Slot returns the issuer slot.
func (s *Signer) Slot() *slot.Slot {
	return s.slot
}

// Sign signs unsigned with issuerKey and returns the certificate, owned by
// the issuer slot.
func (s *Signer) Sign(ctx context.Context, unsigned *certbuilder.Template, issuerKey *slot.KeyPairHandle) (*slot.Certificate, error) {
	if unsigned == nil {
		return nil, ErrTemplateRequired
	}
	if issuerKey == nil {
		return nil, slot.ErrInvalidHandle
	}
	if !s.slot.Owns(issuerKey) {
		return nil, fmt.Errorf("%w: key %s is owned by slot %s, not this %s instance",
			slot.ErrCrossSlotSigningViolation, issuerKey.Label(), issuerKey.SlotID(), s.slot.ID())
	}
	if !s.alg.MatchesKey(issuerKey.PublicKey()) {
		return nil, fmt.Errorf("%w: %s key cannot sign %s", ErrSignatureAlgorithmMismatch, issuerKey.Algorithm(), s.alg)
	}

	cs, err := s.slot.Signer(ctx, issuerKey)
	if err != nil {
		return nil, err
	}

	tmpl := unsigned.Certificate()
	tmpl.SignatureAlgorithm = s.alg.SignatureAlgorithm()

	der, err := x509.CreateCertificate(s.rand, tmpl, unsigned.Parent(issuerKey.PublicKey()), unsigned.PublicKey(), cs)
	if err != nil {
		return nil, fmt.Errorf("sign certificate %s: %w", unsigned.SerialNumber().Text(16), err)
	}
	return s.slot.NewCertificate("", der)
}

// Sign signs unsigned with issuerKey in issuerSlot using alg. An empty alg
// selects DefaultAlgorithm.
func Sign(ctx context.Context, unsigned *certbuilder.Template, issuerKey *slot.KeyPairHandle, issuerSlot *slot.Slot, alg types.Algorithm) (*slot.Certificate, error) {
	s, err := New(issuerSlot, alg)
	if err != nil {
		return nil, err
	}
	return s.Sign(ctx, unsigned, issuerKey)
}

// Verify checks the signature of cert against issuerKey. Only the
// signature is checked; chain constraints such as cA are not.
func Verify(cert *x509.Certificate, issuerKey crypto.PublicKey) error {
	if cert == nil || issuerKey == nil {
		return ErrInvalidSignature
	}
	issuer := &x509.Certificate{PublicKey: issuerKey}
	if err := issuer.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
