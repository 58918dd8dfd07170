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
	"errors"

	"github.com/jeremyhahn/go-certslot/pkg/slot"
)

var (
	// ErrInvalidValidityPeriod is returned when NotAfter is not after NotBefore.
	ErrInvalidValidityPeriod = errors.New("certbuilder: notAfter must be after notBefore")

	// ErrInvalidSerial is returned for an explicit serial that is zero or
	// longer than 20 octets.
	ErrInvalidSerial = errors.New("certbuilder: invalid serial number")

	// ErrInvalidKeyUsage is returned when a key usage set has no bits.
	ErrInvalidKeyUsage = errors.New("certbuilder: empty key usage")

	// ErrInvalidRequest is returned for a nil request or a missing name.
	ErrInvalidRequest = errors.New("certbuilder: invalid request")

	// ErrKeyImportFailed is returned when the subject public key cannot be
	// represented as a SubjectPublicKeyInfo.
	ErrKeyImportFailed = slot.ErrKeyImportFailed
)
