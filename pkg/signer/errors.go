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

package signer

import "errors"

var (
	// ErrSignatureAlgorithmMismatch is returned when the issuer key type or
	// curve cannot produce the requested signature algorithm.
	ErrSignatureAlgorithmMismatch = errors.New("signer: key does not match signature algorithm")

	// ErrTemplateRequired is returned for a nil template.
	ErrTemplateRequired = errors.New("signer: template is required")

	// ErrSlotRequired is returned for a nil issuer slot.
	ErrSlotRequired = errors.New("signer: issuer slot is required")

	// ErrInvalidSignature is returned by Verify when a signature does not
	// check out against the given key.
	ErrInvalidSignature = errors.New("signer: invalid signature")
)
