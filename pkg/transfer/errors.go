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

package transfer

import "errors"

var (
	// ErrPrivateKeyExportDenied is returned when a private key, or a key
	// pair that holds one, is passed to ExportPublicArtifact.
	ErrPrivateKeyExportDenied = errors.New("transfer: private key export denied")

	// ErrForeignArtifact is returned when exporting an artifact the source
	// slot does not own.
	ErrForeignArtifact = errors.New("transfer: artifact not owned by source slot")

	// ErrAlgorithmMismatch is returned when an imported artifact does not
	// match the expected algorithm.
	ErrAlgorithmMismatch = errors.New("transfer: algorithm mismatch")

	// ErrMalformedArtifact is returned when raw bytes are neither DER nor a
	// public key record. It is always joined with slot.ErrKeyImportFailed.
	ErrMalformedArtifact = errors.New("transfer: malformed artifact")

	// ErrUnsupportedArtifact is returned for artifact kinds that cannot be
	// transferred.
	ErrUnsupportedArtifact = errors.New("transfer: unsupported artifact")

	// ErrSlotRequired is returned when a source or target slot is nil.
	ErrSlotRequired = errors.New("transfer: slot is required")
)
