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

package certbuilder

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	// OIDExtensionKeyUsage is id-ce-keyUsage.
	OIDExtensionKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 15}

	// OIDExtensionBasicConstraints is id-ce-basicConstraints.
	OIDExtensionBasicConstraints = asn1.ObjectIdentifier{2, 5, 29, 19}
)

// keyUsageBits is the number of named bits in KeyUsage (digitalSignature
// through decipherOnly).
const keyUsageBits = 9

// KeyUsageExtension returns a non-critical Key Usage extension whose value
// is the DER BIT STRING of usage. Bit 0 is digitalSignature. Trailing zero
// bytes are dropped and the unused-bit count covers the trailing zero bits
// of the last byte.
func KeyUsageExtension(usage x509.KeyUsage) (pkix.Extension, error) {
	var bits [2]byte
	length := 0
	for i := 0; i < keyUsageBits; i++ {
		if usage&(1<<uint(i)) != 0 {
			bits[i/8] |= 0x80 >> uint(i%8)
			length = i/8 + 1
		}
	}
	if length == 0 {
		return pkix.Extension{}, ErrInvalidKeyUsage
	}

	last := bits[length-1]
	unused := uint8(0)
	for last&1 == 0 {
		last >>= 1
		unused++
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.BIT_STRING, func(bs *cryptobyte.Builder) {
		bs.AddUint8(unused)
		bs.AddBytes(bits[:length])
	})
	value, err := b.Bytes()
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("certbuilder: encode key usage: %w", err)
	}
	return pkix.Extension{Id: OIDExtensionKeyUsage, Critical: false, Value: value}, nil
}

// BasicConstraintsExtension returns a critical Basic Constraints extension
// with cA set and no path length.
func BasicConstraintsExtension() (pkix.Extension, error) {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		seq.AddASN1Boolean(true)
	})
	value, err := b.Bytes()
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("certbuilder: encode basic constraints: %w", err)
	}
	return pkix.Extension{Id: OIDExtensionBasicConstraints, Critical: true, Value: value}, nil
}
