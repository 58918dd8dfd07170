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

package pkcs11

import "errors"

var (
	// ErrNotCompiled is returned when the binary was built without the pkcs11 tag.
	ErrNotCompiled = errors.New("pkcs11: support not compiled in (build with -tags pkcs11)")

	// ErrInvalidUserPIN is returned when the user PIN is missing.
	ErrInvalidUserPIN = errors.New("pkcs11: invalid user pin")

	// ErrInvalidPINLength is returned when the user PIN is too short.
	// PKCS#11 typically requires PINs to be at least 4 characters.
	ErrInvalidPINLength = errors.New("pkcs11: invalid pin length, must be at least 4 characters")

	// ErrInvalidSOPINLength is returned when the SO PIN is too short.
	ErrInvalidSOPINLength = errors.New("pkcs11: invalid SO pin length, must be at least 4 characters")

	// ErrNotInitialized is returned before Login has established a context.
	ErrNotInitialized = errors.New("pkcs11: token not initialized")

	// ErrAlreadyInitialized is returned when initializing an initialized token.
	ErrAlreadyInitialized = errors.New("pkcs11: token already initialized")

	// ErrLibraryNotFound is returned when the PKCS#11 library cannot be found.
	ErrLibraryNotFound = errors.New("pkcs11: library not found")

	// ErrTokenNotFound is returned when the specified token cannot be found.
	ErrTokenNotFound = errors.New("pkcs11: token not found")

	// ErrUnsupportedCurve is returned for EC parameters other than P-256 and P-384.
	ErrUnsupportedCurve = errors.New("pkcs11: unsupported curve")
)
