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

import "errors"

var (
	// ErrKeyNotFound is returned when a key ID is unknown to the provider.
	ErrKeyNotFound = errors.New("backend: key not found")

	// ErrKeyAlreadyExists is returned when generating or importing under a
	// label that is already in use.
	ErrKeyAlreadyExists = errors.New("backend: key already exists")

	// ErrCertificateNotFound is returned when no certificate is stored under a label.
	ErrCertificateNotFound = errors.New("backend: certificate not found")

	// ErrCertificateExists is returned when a certificate label is already in use.
	ErrCertificateExists = errors.New("backend: certificate already exists")

	// ErrInvalidCertificate is returned when certificate bytes do not parse.
	ErrInvalidCertificate = errors.New("backend: invalid certificate")

	// ErrInvalidAlgorithm is returned when an invalid or unsupported algorithm is specified.
	ErrInvalidAlgorithm = errors.New("backend: invalid algorithm")

	// ErrInvalidLabel is returned for an empty or malformed object label.
	ErrInvalidLabel = errors.New("backend: invalid label")

	// ErrKeyImportFailed is returned when public key material cannot be
	// parsed or represented by the provider.
	ErrKeyImportFailed = errors.New("backend: key import failed")

	// ErrNoPrivateKey is returned when signing with a key the provider only
	// holds the public half of.
	ErrNoPrivateKey = errors.New("backend: private key not present")

	// ErrNotSupported is returned when an operation is not supported by the backend.
	ErrNotSupported = errors.New("backend: operation not supported")

	// ErrClosed is returned when using a provider after Close.
	ErrClosed = errors.New("backend: provider closed")

	// ErrInvalidConfig is returned when a provider configuration fails validation.
	ErrInvalidConfig = errors.New("backend: invalid configuration")
)
