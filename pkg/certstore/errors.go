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

package certstore

import "errors"

// Certificate operation errors
var (
	// ErrCertNotFound is returned when a certificate is not found.
	ErrCertNotFound = errors.New("certstore: certificate not found")

	// ErrCertAlreadyExists is returned when a serial is already stored for a slot.
	ErrCertAlreadyExists = errors.New("certstore: certificate already exists")

	// ErrCertInvalid is returned when a certificate is invalid or malformed.
	ErrCertInvalid = errors.New("certstore: invalid certificate")

	// ErrVerificationFailed is returned when certificate verification fails.
	ErrVerificationFailed = errors.New("certstore: verification failed")

	// ErrNoRoots is returned when no root certificates are provided for verification.
	ErrNoRoots = errors.New("certstore: no root certificates provided")
)

// Configuration errors
var (
	// ErrStorageRequired is returned when certificate storage is required but not provided.
	ErrStorageRequired = errors.New("certstore: certificate storage is required")

	// ErrStorageClosed is returned when the store has been closed.
	ErrStorageClosed = errors.New("certstore: storage is closed")

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("certstore: invalid configuration")

	// ErrInvalidSlot is returned when a slot identifier is empty or unsafe.
	ErrInvalidSlot = errors.New("certstore: invalid slot")
)
