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

package storage

import (
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"math/big"
)

// SerialHex formats a serial number as lowercase hex without leading zeros.
// Zero formats as "00".
func SerialHex(serial *big.Int) string {
	if serial == nil || serial.Sign() == 0 {
		return "00"
	}
	b := serial.Bytes()
	return hex.EncodeToString(b)
}

// CertAdapter keeps issued certificates keyed by slot and serial number.
type CertAdapter struct {
	backend Backend
}

// NewCertAdapter wraps backend.
func NewCertAdapter(backend Backend) *CertAdapter {
	return &CertAdapter{
		backend: backend,
	}
}

// Backend returns the underlying storage backend.
func (ca *CertAdapter) Backend() Backend {
	return ca.backend
}

// SaveIssued stores cert under slot. An existing entry with the same
// serial is left untouched and ErrAlreadyExists is returned.
func (ca *CertAdapter) SaveIssued(slot string, cert *x509.Certificate) error {
	if err := ValidateID(slot); err != nil {
		return err
	}
	if cert == nil || len(cert.Raw) == 0 {
		return fmt.Errorf("%w: certificate has no raw data", ErrInvalidData)
	}

	key := IssuedPath(slot, SerialHex(cert.SerialNumber))
	exists, err := ca.backend.Exists(key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, key)
	}
	return ca.backend.Put(key, cert.Raw, nil)
}

// GetIssued returns the certificate with serial issued into slot.
func (ca *CertAdapter) GetIssued(slot string, serial *big.Int) (*x509.Certificate, error) {
	der, err := ca.GetIssuedDER(slot, serial)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// GetIssuedDER returns the raw DER of an issued certificate.
func (ca *CertAdapter) GetIssuedDER(slot string, serial *big.Int) ([]byte, error) {
	if err := ValidateID(slot); err != nil {
		return nil, err
	}
	return ca.backend.Get(IssuedPath(slot, SerialHex(serial)))
}

// DeleteIssued removes an issued certificate.
func (ca *CertAdapter) DeleteIssued(slot string, serial *big.Int) error {
	if err := ValidateID(slot); err != nil {
		return err
	}
	return ca.backend.Delete(IssuedPath(slot, SerialHex(serial)))
}

// ListIssued returns the hex serials issued into slot.
func (ca *CertAdapter) ListIssued(slot string) ([]string, error) {
	if err := ValidateID(slot); err != nil {
		return nil, err
	}
	return ListIssued(ca.backend, slot)
}

// Slots returns every slot with issued certificates.
func (ca *CertAdapter) Slots() ([]string, error) {
	return ListIssuedSlots(ca.backend)
}

// Close closes the underlying backend.
func (ca *CertAdapter) Close() error {
	return ca.backend.Close()
}
