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

package encoding

import "errors"

var (
	// ErrInvalidPublicKey is returned when a public key is nil or invalid
	ErrInvalidPublicKey = errors.New("encoding: invalid public key")

	// ErrInvalidCertificate is returned when a certificate is nil or invalid
	ErrInvalidCertificate = errors.New("encoding: invalid certificate")

	// ErrInvalidData is returned when data is nil, empty, or malformed
	ErrInvalidData = errors.New("encoding: invalid data")

	// ErrInvalidPEMEncoding is returned when PEM decoding fails
	ErrInvalidPEMEncoding = errors.New("encoding: invalid PEM encoding")

	// ErrUnexpectedBlockType is returned when a PEM block has the wrong type
	ErrUnexpectedBlockType = errors.New("encoding: unexpected PEM block type")
)
