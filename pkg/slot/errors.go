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
	"errors"

	"github.com/jeremyhahn/go-certslot/pkg/backend"
)

var (
	// ErrCrossSlotSigningViolation is returned when a key handle is used to
	// sign in a slot other than the one that owns it.
	ErrCrossSlotSigningViolation = errors.New("slot: key handle belongs to another slot")

	// ErrSigningKeyUnavailable is returned when the provider cannot produce
	// a signature with the requested key.
	ErrSigningKeyUnavailable = errors.New("slot: signing key unavailable")

	// ErrProviderTimeout is returned when a provider call exceeds the slot
	// timeout.
	ErrProviderTimeout = errors.New("slot: provider call timed out")

	// ErrKeyImportFailed is returned when public key material cannot be
	// parsed or represented.
	ErrKeyImportFailed = backend.ErrKeyImportFailed

	// ErrClosed is returned when using a slot after Close.
	ErrClosed = errors.New("slot: closed")

	// ErrInvalidHandle is returned for a nil or zero handle.
	ErrInvalidHandle = errors.New("slot: invalid handle")

	// ErrInvalidConfig is returned when a slot configuration fails validation.
	ErrInvalidConfig = errors.New("slot: invalid configuration")
)
