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

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-certslot/pkg/encoding"
	"github.com/jeremyhahn/go-certslot/pkg/storage"
)

// compositeCertStore implements the CertStore interface on top of a
// storage.CertAdapter.
type compositeCertStore struct {
	certs         *storage.CertAdapter
	verifyOptions *x509.VerifyOptions
	mu            sync.RWMutex
	closed        bool
}

// New creates a new CertStore instance with the provided configuration.
//
// Example usage:
//
//	backend, _ := file.New("/var/lib/certslot")
//	store, err := certstore.New(&certstore.Config{
//	    Storage: backend,
//	})
func New(config *Config) (CertStore, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if config.Storage == nil {
		return nil, ErrStorageRequired
	}

	return &compositeCertStore{
		certs:         storage.NewCertAdapter(config.Storage),
		verifyOptions: config.VerifyOptions,
	}, nil
}

// StoreCertificate files cert under slotID and its serial number.
func (cs *compositeCertStore) StoreCertificate(ctx context.Context, slotID string, cert *x509.Certificate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.closed {
		return ErrStorageClosed
	}
	if err := checkSlot(slotID); err != nil {
		return err
	}
	if cert == nil || len(cert.Raw) == 0 || cert.SerialNumber == nil {
		return ErrCertInvalid
	}

	if err := cs.certs.SaveIssued(slotID, cert); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("%w: slot %s serial %s", ErrCertAlreadyExists, slotID, storage.SerialHex(cert.SerialNumber))
		}
		return fmt.Errorf("failed to store certificate: %w", err)
	}
	return nil
}

// GetCertificate returns the certificate with serial stored for slotID.
func (cs *compositeCertStore) GetCertificate(slotID string, serial *big.Int) (*x509.Certificate, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.closed {
		return nil, ErrStorageClosed
	}
	return cs.getLocked(slotID, serial)
}

// GetCertificatePEM returns the certificate PEM encoded.
func (cs *compositeCertStore) GetCertificatePEM(slotID string, serial *big.Int) ([]byte, error) {
	cert, err := cs.GetCertificate(slotID, serial)
	if err != nil {
		return nil, err
	}
	return encoding.EncodeCertificatePEM(cert)
}

// DeleteCertificate removes a stored certificate.
func (cs *compositeCertStore) DeleteCertificate(slotID string, serial *big.Int) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.closed {
		return ErrStorageClosed
	}
	if err := checkSlot(slotID); err != nil {
		return err
	}
	if err := cs.certs.DeleteIssued(slotID, serial); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: slot %s serial %s", ErrCertNotFound, slotID, storage.SerialHex(serial))
		}
		return fmt.Errorf("failed to delete certificate: %w", err)
	}
	return nil
}

// ListCertificates returns the certificates stored for slotID, ordered by
// serial number.
func (cs *compositeCertStore) ListCertificates(slotID string) ([]*x509.Certificate, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.closed {
		return nil, ErrStorageClosed
	}
	if err := checkSlot(slotID); err != nil {
		return nil, err
	}

	serials, err := cs.certs.ListIssued(slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}

	certs := make([]*x509.Certificate, 0, len(serials))
	for _, hexSerial := range serials {
		serial, ok := new(big.Int).SetString(hexSerial, 16)
		if !ok {
			continue
		}
		cert, err := cs.getLocked(slotID, serial)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	sort.Slice(certs, func(i, j int) bool {
		return certs[i].SerialNumber.Cmp(certs[j].SerialNumber) < 0
	})
	return certs, nil
}

// ListSlots returns every slot with stored certificates.
func (cs *compositeCertStore) ListSlots() ([]string, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.closed {
		return nil, ErrStorageClosed
	}
	slots, err := cs.certs.Slots()
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

// VerifyCertificate validates a certificate against a pool of trusted roots.
func (cs *compositeCertStore) VerifyCertificate(cert *x509.Certificate, roots *x509.CertPool) error {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.closed {
		return ErrStorageClosed
	}
	if cert == nil {
		return ErrCertInvalid
	}
	if roots == nil {
		return ErrNoRoots
	}

	opts := x509.VerifyOptions{
		Roots:       roots,
		CurrentTime: time.Now(),
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if cs.verifyOptions != nil {
		opts = *cs.verifyOptions
		opts.Roots = roots
	}

	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return nil
}

// Close releases the store. The underlying storage stays open.
func (cs *compositeCertStore) Close() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.closed = true
	return nil
}

func (cs *compositeCertStore) getLocked(slotID string, serial *big.Int) (*x509.Certificate, error) {
	if err := checkSlot(slotID); err != nil {
		return nil, err
	}
	if serial == nil {
		return nil, fmt.Errorf("%w: serial is required", ErrCertNotFound)
	}
	cert, err := cs.certs.GetIssued(slotID, serial)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: slot %s serial %s", ErrCertNotFound, slotID, storage.SerialHex(serial))
		}
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return cert, nil
}

func checkSlot(slotID string) error {
	if err := storage.ValidateID(slotID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slotID)
	}
	return nil
}

var _ CertStore = (*compositeCertStore)(nil)
