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

package pkcs8

import "errors"

var (
	// ErrInvalidPassword is returned when an encrypted key cannot be decrypted.
	ErrInvalidPassword = errors.New("pkcs8: invalid password")

	// ErrKeyEncodingFailed is returned when PKCS#8 encoding fails.
	ErrKeyEncodingFailed = errors.New("pkcs8: key encoding failed")

	// ErrKeyDecodingFailed is returned when PKCS#8 decoding fails.
	ErrKeyDecodingFailed = errors.New("pkcs8: key decoding failed")
)
