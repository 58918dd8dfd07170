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

package slot

import (
	"crypto"
	"crypto/x509"
	"math/big"

	"github.com/jeremyhahn/go-certslot/pkg/types"
)

// Kind classifies artifacts.
type Kind int

const (
	// KindCertificate is a signed certificate.
	KindCertificate Kind = iota + 1
	// KindPublicKey is a standalone public key.
	KindPublicKey
	// KindKeyPair is a key pair reference, possibly public only.
	KindKeyPair
	// KindPrivateKey is a reference to a private key.
	KindPrivateKey
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCertificate:
		return "certificate"
	case KindPublicKey:
		return "public-key"
	case KindKeyPair:
		return "key-pair"
	case KindPrivateKey:
		return "private-key"
	default:
		return "unknown"
	}
}

// Artifact is anything a slot owns and can be asked to move.
type Artifact interface {
	// SlotID is the owning slot.
	SlotID() string
	// Label is the provider label of the object.
	Label() string
	// Kind classifies the artifact.
	Kind() Kind

	// owner is the Slot that created the artifact. Slot IDs are for display;
	// ownership is decided by instance.
	owner() *Slot
}

// KeyPairHandle references a key pair held by one slot. Handles are only
// created by a Slot and carry no private key bytes.
type KeyPairHandle struct {
	slot       *Slot
	slotID     string
	keyID      string
	alg        types.Algorithm
	pub        crypto.PublicKey
	hasPrivate bool
}

// SlotID returns the owning slot.
func (h *KeyPairHandle) SlotID() string { return h.slotID }

// Label returns the provider key ID.
func (h *KeyPairHandle) Label() string { return h.keyID }

func (h *KeyPairHandle) owner() *Slot { return h.slot }

// Kind returns KindKeyPair.
func (h *KeyPairHandle) Kind() Kind { return KindKeyPair }

// Algorithm returns the key algorithm.
func (h *KeyPairHandle) Algorithm() types.Algorithm { return h.alg }

// PublicKey returns the public half.
func (h *KeyPairHandle) PublicKey() crypto.PublicKey { return h.pub }

// HasPrivate reports whether the slot holds the private half.
func (h *KeyPairHandle) HasPrivate() bool { return h.hasPrivate }

// Private returns a reference to the private half, or nil for a public only
// handle.
func (h *KeyPairHandle) Private() *PrivateKey {
	if !h.hasPrivate {
		return nil
	}
	return &PrivateKey{slot: h.slot, slotID: h.slotID, keyID: h.keyID, alg: h.alg}
}

// PrivateKey references the private half of a key pair. It can only be
// used to request signatures from its own slot.
type PrivateKey struct {
	slot   *Slot
	slotID string
	keyID  string
	alg    types.Algorithm
}

// SlotID returns the owning slot.
func (k *PrivateKey) SlotID() string { return k.slotID }

// Label returns the provider key ID.
func (k *PrivateKey) Label() string { return k.keyID }

func (k *PrivateKey) owner() *Slot { return k.slot }

// Kind returns KindPrivateKey.
func (k *PrivateKey) Kind() Kind { return KindPrivateKey }

// Algorithm returns the key algorithm.
func (k *PrivateKey) Algorithm() types.Algorithm { return k.alg }

// PublicKey is a public key owned by a slot.
type PublicKey struct {
	slot   *Slot
	slotID string
	label  string
	alg    types.Algorithm
	spki   []byte
	key    crypto.PublicKey
}

// SlotID returns the owning slot.
func (k *PublicKey) SlotID() string { return k.slotID }

// Label returns the provider label.
func (k *PublicKey) Label() string { return k.label }

func (k *PublicKey) owner() *Slot { return k.slot }

// Kind returns KindPublicKey.
func (k *PublicKey) Kind() Kind { return KindPublicKey }

// Algorithm returns the key algorithm.
func (k *PublicKey) Algorithm() types.Algorithm { return k.alg }

// Key returns the parsed key.
func (k *PublicKey) Key() crypto.PublicKey { return k.key }

// SubjectPublicKeyInfo returns a copy of the DER encoding.
func (k *PublicKey) SubjectPublicKeyInfo() []byte { return cloneBytes(k.spki) }

// Certificate is a signed certificate owned by a slot. Its DER never
// changes after creation.
type Certificate struct {
	slot   *Slot
	slotID string
	label  string
	der    []byte
	cert   *x509.Certificate
}

// SlotID returns the owning slot.
func (c *Certificate) SlotID() string { return c.slotID }

// Label returns the provider label.
func (c *Certificate) Label() string { return c.label }

func (c *Certificate) owner() *Slot { return c.slot }

// Kind returns KindCertificate.
func (c *Certificate) Kind() Kind { return KindCertificate }

// DER returns a copy of the encoded certificate.
func (c *Certificate) DER() []byte { return cloneBytes(c.der) }

// X509 returns the parsed certificate. Callers must not modify it.
func (c *Certificate) X509() *x509.Certificate { return c.cert }

// SerialNumber returns a copy of the serial number.
func (c *Certificate) SerialNumber() *big.Int { return new(big.Int).Set(c.cert.SerialNumber) }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var (
	_ Artifact = (*KeyPairHandle)(nil)
	_ Artifact = (*PrivateKey)(nil)
	_ Artifact = (*PublicKey)(nil)
	_ Artifact = (*Certificate)(nil)
)
