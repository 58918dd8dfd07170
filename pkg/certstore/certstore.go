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

// Package certstore is the terminal storage sink for issued certificates.
//
// Certificates are filed under the slot that holds them and their serial
// number, so the same serial may exist once per slot. Entries are write
// once; storing a serial twice for a slot fails with ErrCertAlreadyExists.
package certstore

import (
	"context"
	"crypto/x509"
	"math/big"
)

// CertStore keeps issued certificates.
//
// All implementations must be thread-safe.
type CertStore interface {
	// StoreCertificate files cert under slotID and its serial number.
	StoreCertificate(ctx context.Context, slotID string, cert *x509.Certificate) error

	// GetCertificate returns the certificate with serial stored for slotID.
	// Returns ErrCertNotFound if it does not exist.
	GetCertificate(slotID string, serial *big.Int) (*x509.Certificate, error)

	// GetCertificatePEM returns the same certificate PEM encoded.
	GetCertificatePEM(slotID string, serial *big.Int) ([]byte, error)

	// DeleteCertificate removes a stored certificate.
	DeleteCertificate(slotID string, serial *big.Int) error

	// ListCertificates returns the certificates stored for slotID, ordered
	// by serial.
	ListCertificates(slotID string) ([]*x509.Certificate, error)

	// ListSlots returns every slot with stored certificates.
	ListSlots() ([]string, error)

	// VerifyCertificate validates a certificate against a pool of trusted
	// roots, including validity period and chain of trust.
	VerifyCertificate(cert *x509.Certificate, roots *x509.CertPool) error

	// Close releases the store. The underlying storage stays open.
	Close() error
}
