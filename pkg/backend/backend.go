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

// Package backend defines the boundary between the issuance engine and a
// cryptographic token. A Provider owns one isolated key and certificate
// store; private keys are created and used inside it and never returned.
package backend

import (
	"context"
	"crypto"

	"github.com/jeremyhahn/go-certslot/pkg/types"
)

// Provider is one isolated cryptographic store ("slot").
//
// Implementations need not be safe for concurrent use; callers serialize
// access per provider instance.
type Provider interface {
	// Type returns the backend type identifier.
	Type() BackendType

	// Capabilities returns what features this provider supports.
	Capabilities() Capabilities

	// GenerateKeyPair creates a key pair for alg under label.
	GenerateKeyPair(ctx context.Context, label string, alg types.Algorithm) (*KeyRecord, error)

	// Sign signs a precomputed digest with the private key keyID.
	// The signature format follows crypto.Signer for the key type.
	Sign(ctx context.Context, keyID string, digest []byte, opts crypto.SignerOpts) ([]byte, error)

	// ExportPublicKey returns the DER SubjectPublicKeyInfo of keyID.
	ExportPublicKey(ctx context.Context, keyID string) ([]byte, error)

	// ImportPublicKey stores a public key given as DER SubjectPublicKeyInfo.
	// The resulting record has HasPrivate false.
	ImportPublicKey(ctx context.Context, label string, spki []byte, alg types.Algorithm) (*KeyRecord, error)

	// StoreCertificate persists a DER certificate under label.
	StoreCertificate(ctx context.Context, label string, der []byte) error

	// Certificate returns the DER certificate stored under label.
	Certificate(ctx context.Context, label string) ([]byte, error)

	// StoreKey makes the key keyID persistent in the provider.
	StoreKey(ctx context.Context, keyID string) error

	// Close releases any resources held by the provider.
	Close() error
}
