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
	"fmt"
)

func checkIDs(ids ...string) error {
	for _, id := range ids {
		if err := ValidateID(id); err != nil {
			return err
		}
	}
	return nil
}

// SaveKey stores private key data for a slot.
func SaveKey(backend Backend, slot, id string, keyData []byte) error {
	if err := checkIDs(slot, id); err != nil {
		return err
	}
	return backend.Put(KeyPath(slot, id), keyData, DefaultOptions())
}

// GetKey retrieves private key data for a slot.
func GetKey(backend Backend, slot, id string) ([]byte, error) {
	if err := checkIDs(slot, id); err != nil {
		return nil, err
	}
	return backend.Get(KeyPath(slot, id))
}

// DeleteKey removes private key data.
func DeleteKey(backend Backend, slot, id string) error {
	if err := checkIDs(slot, id); err != nil {
		return err
	}
	return backend.Delete(KeyPath(slot, id))
}

// KeyExists checks if a private key is stored.
func KeyExists(backend Backend, slot, id string) (bool, error) {
	if err := checkIDs(slot, id); err != nil {
		return false, err
	}
	return backend.Exists(KeyPath(slot, id))
}

// SavePublicKey stores a SubjectPublicKeyInfo for a slot.
func SavePublicKey(backend Backend, slot, id string, spki []byte) error {
	if err := checkIDs(slot, id); err != nil {
		return err
	}
	return backend.Put(PublicKeyPath(slot, id), spki, nil)
}

// GetPublicKey retrieves a SubjectPublicKeyInfo.
func GetPublicKey(backend Backend, slot, id string) ([]byte, error) {
	if err := checkIDs(slot, id); err != nil {
		return nil, err
	}
	return backend.Get(PublicKeyPath(slot, id))
}

// PublicKeyExists checks if a public key is stored.
func PublicKeyExists(backend Backend, slot, id string) (bool, error) {
	if err := checkIDs(slot, id); err != nil {
		return false, err
	}
	return backend.Exists(PublicKeyPath(slot, id))
}

// SaveCert stores a DER certificate under a slot label.
func SaveCert(backend Backend, slot, label string, der []byte) error {
	if err := checkIDs(slot, label); err != nil {
		return err
	}
	if len(der) == 0 {
		return ErrInvalidData
	}
	return backend.Put(CertPath(slot, label), der, nil)
}

// GetCert retrieves a DER certificate by slot label.
func GetCert(backend Backend, slot, label string) ([]byte, error) {
	if err := checkIDs(slot, label); err != nil {
		return nil, err
	}
	return backend.Get(CertPath(slot, label))
}

// CertExists checks if a certificate label is in use.
func CertExists(backend Backend, slot, label string) (bool, error) {
	if err := checkIDs(slot, label); err != nil {
		return false, err
	}
	return backend.Exists(CertPath(slot, label))
}

// GetCertParsed retrieves and parses a certificate by slot label.
func GetCertParsed(backend Backend, slot, label string) (*x509.Certificate, error) {
	der, err := GetCert(backend, slot, label)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return cert, nil
}
