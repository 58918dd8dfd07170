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

package backend

import (
	"crypto"
	"strings"

	"github.com/jeremyhahn/go-certslot/pkg/types"
)

// BackendType identifies the provider implementation behind a slot.
type BackendType string

const (
	BackendTypePKCS8  BackendType = "pkcs8"  // software slot, PKCS#8 key storage
	BackendTypePKCS11 BackendType = "pkcs11" // PKCS#11 hardware security module
)

// String returns the backend type name.
func (t BackendType) String() string {
	return string(t)
}

// ParseBackendType converts a configuration string to a BackendType.
// Unknown names yield an empty type.
func ParseBackendType(s string) BackendType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pkcs8", "software", "sw":
		return BackendTypePKCS8
	case "pkcs11", "hsm":
		return BackendTypePKCS11
	default:
		return ""
	}
}

// Capabilities describes what a provider can do.
type Capabilities struct {
	HardwareBacked     bool `json:"hardware_backed"`
	KeyPersistence     bool `json:"key_persistence"`
	CertificateStorage bool `json:"certificate_storage"`
	PublicKeyImport    bool `json:"public_key_import"`
}

// KeyRecord describes a key object held by a provider. It never carries
// private key material.
type KeyRecord struct {
	// ID is the provider's identifier for the key, used in later calls.
	ID string

	// Label is the human-readable name the key was created under.
	Label string

	// Algorithm is the signature algorithm the key was created for.
	Algorithm types.Algorithm

	// PublicKey is the parsed public half.
	PublicKey crypto.PublicKey

	// HasPrivate reports whether the provider holds the private half.
	HasPrivate bool
}
