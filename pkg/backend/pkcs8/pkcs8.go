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

// Package pkcs8 implements a software slot. Private keys live in process
// memory and, once stored, as PKCS#8 blobs in a storage.Backend.
package pkcs8

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/youmark/pkcs8"

	"github.com/jeremyhahn/go-certslot/pkg/backend"
	"github.com/jeremyhahn/go-certslot/pkg/storage"
	"github.com/jeremyhahn/go-certslot/pkg/types"
)

type keyEntry struct {
	record    backend.KeyRecord
	private   *ecdsa.PrivateKey
	persisted bool
}

// PKCS8Backend implements backend.Provider in software.
//
// Generated keys are session objects until StoreKey writes them to
// storage. Imported public keys and certificates are persisted immediately.
//
// Thread-safe: Yes, uses a read-write mutex for concurrent access.
type PKCS8Backend struct {
	slot     string
	storage  storage.Backend
	password []byte
	rand     io.Reader
	session  map[string]*keyEntry
	closed   bool
	mu       sync.RWMutex
}

// Type returns the backend type identifier.
func (b *PKCS8Backend) Type() backend.BackendType {
	return backend.BackendTypePKCS8
}

// Capabilities returns what features this backend supports.
func (b *PKCS8Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		HardwareBacked:     false,
		KeyPersistence:     true,
		CertificateStorage: true,
		PublicKeyImport:    true,
	}
}

// SlotID returns the storage namespace of this slot.
func (b *PKCS8Backend) SlotID() string {
	return b.slot
}

// GenerateKeyPair creates an ECDSA key pair for alg. The label is the key ID.
func (b *PKCS8Backend) GenerateKeyPair(ctx context.Context, label string, alg types.Algorithm) (*backend.KeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, backend.ErrClosed
	}
	if err := storage.ValidateID(label); err != nil {
		return nil, fmt.Errorf("%w: %q", backend.ErrInvalidLabel, label)
	}
	if !alg.Valid() {
		return nil, fmt.Errorf("%w: %s", backend.ErrInvalidAlgorithm, alg)
	}
	if err := b.checkUnusedLocked(label); err != nil {
		return nil, err
	}

	priv, err := ecdsa.GenerateKey(alg.Curve(), b.random())
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}

	entry := &keyEntry{
		record: backend.KeyRecord{
			ID:         label,
			Label:      label,
			Algorithm:  alg,
			PublicKey:  &priv.PublicKey,
			HasPrivate: true,
		},
		private: priv,
	}
	b.session[label] = entry

	rec := entry.record
	return &rec, nil
}

// Sign signs digest with the private key keyID.
func (b *PKCS8Backend) Sign(ctx context.Context, keyID string, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, backend.ErrClosed
	}
	entry, err := b.lookupLocked(keyID)
	if err != nil {
		return nil, err
	}
	if entry.private == nil {
		return nil, fmt.Errorf("%w: %s", backend.ErrNoPrivateKey, keyID)
	}
	if opts != nil && opts.HashFunc() != 0 && len(digest) != opts.HashFunc().Size() {
		return nil, fmt.Errorf("%w: digest length %d does not match %s", backend.ErrInvalidAlgorithm, len(digest), opts.HashFunc())
	}
	return entry.private.Sign(b.random(), digest, opts)
}

// ExportPublicKey returns the SubjectPublicKeyInfo of keyID.
func (b *PKCS8Backend) ExportPublicKey(ctx context.Context, keyID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, backend.ErrClosed
	}
	entry, err := b.lookupLocked(keyID)
	if err != nil {
		return nil, err
	}
	return x509.MarshalPKIXPublicKey(entry.record.PublicKey)
}

// ImportPublicKey stores a SubjectPublicKeyInfo under label.
func (b *PKCS8Backend) ImportPublicKey(ctx context.Context, label string, spki []byte, alg types.Algorithm) (*backend.KeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, backend.ErrClosed
	}
	if err := storage.ValidateID(label); err != nil {
		return nil, fmt.Errorf("%w: %q", backend.ErrInvalidLabel, label)
	}
	if !alg.Valid() {
		return nil, fmt.Errorf("%w: %s", backend.ErrInvalidAlgorithm, alg)
	}
	pub, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrKeyImportFailed, err)
	}
	if !alg.MatchesKey(pub) {
		return nil, fmt.Errorf("%w: key is not %s", backend.ErrKeyImportFailed, alg)
	}
	if err := b.checkUnusedLocked(label); err != nil {
		return nil, err
	}
	if err := storage.SavePublicKey(b.storage, b.slot, label, spki); err != nil {
		return nil, fmt.Errorf("failed to save public key: %w", err)
	}

	entry := &keyEntry{
		record: backend.KeyRecord{
			ID:        label,
			Label:     label,
			Algorithm: alg,
			PublicKey: pub,
		},
		persisted: true,
	}
	b.session[label] = entry

	rec := entry.record
	return &rec, nil
}

// StoreCertificate persists a DER certificate under label. Labels are
// write-once.
func (b *PKCS8Backend) StoreCertificate(ctx context.Context, label string, der []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return backend.ErrClosed
	}
	if err := storage.ValidateID(label); err != nil {
		return fmt.Errorf("%w: %q", backend.ErrInvalidLabel, label)
	}
	if _, err := x509.ParseCertificate(der); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrInvalidCertificate, err)
	}
	exists, err := storage.CertExists(b.storage, b.slot, label)
	if err != nil {
		return fmt.Errorf("failed to check certificate existence: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", backend.ErrCertificateExists, label)
	}
	if err := storage.SaveCert(b.storage, b.slot, label, der); err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	return nil
}

// Certificate returns the DER certificate stored under label.
func (b *PKCS8Backend) Certificate(ctx context.Context, label string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, backend.ErrClosed
	}
	der, err := storage.GetCert(b.storage, b.slot, label)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
			return nil, fmt.Errorf("%w: %s", backend.ErrCertificateNotFound, label)
		}
		return nil, fmt.Errorf("failed to retrieve certificate: %w", err)
	}
	return der, nil
}

// StoreKey writes the key keyID to storage. Storing an already persisted
// key is a no-op.
func (b *PKCS8Backend) StoreKey(ctx context.Context, keyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return backend.ErrClosed
	}
	entry, err := b.lookupLocked(keyID)
	if err != nil {
		return err
	}
	if entry.persisted {
		return nil
	}

	spki, err := x509.MarshalPKIXPublicKey(entry.record.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyEncodingFailed, err)
	}
	if err := storage.SavePublicKey(b.storage, b.slot, keyID, spki); err != nil {
		return fmt.Errorf("failed to save public key: %w", err)
	}
	if entry.private != nil {
		if err := b.storeKey(keyID, entry.private); err != nil {
			return err
		}
	}
	entry.persisted = true
	return nil
}

// ListKeys returns the IDs of session and stored keys.
func (b *PKCS8Backend) ListKeys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, backend.ErrClosed
	}

	stored, err := storage.ListPublicKeys(b.storage, b.slot)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	seen := make(map[string]struct{}, len(stored))
	ids := make([]string, 0, len(stored)+len(b.session))
	for _, id := range stored {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for id := range b.session {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close drops session keys. The storage backend is left open.
func (b *PKCS8Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.session = nil
	return nil
}

func (b *PKCS8Backend) random() io.Reader {
	if b.rand != nil {
		return b.rand
	}
	return rand.Reader
}

func (b *PKCS8Backend) checkUnusedLocked(label string) error {
	if _, ok := b.session[label]; ok {
		return fmt.Errorf("%w: %s", backend.ErrKeyAlreadyExists, label)
	}
	exists, err := storage.PublicKeyExists(b.storage, b.slot, label)
	if err != nil {
		return fmt.Errorf("failed to check key existence: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", backend.ErrKeyAlreadyExists, label)
	}
	return nil
}

// lookupLocked finds keyID in the session, loading it from storage if
// needed. Caller holds b.mu for writing.
func (b *PKCS8Backend) lookupLocked(keyID string) (*keyEntry, error) {
	if entry, ok := b.session[keyID]; ok {
		return entry, nil
	}

	spki, err := storage.GetPublicKey(b.storage, b.slot, keyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
			return nil, fmt.Errorf("%w: %s", backend.ErrKeyNotFound, keyID)
		}
		return nil, fmt.Errorf("failed to retrieve key: %w", err)
	}
	pub, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDecodingFailed, err)
	}
	alg, err := types.AlgorithmForPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDecodingFailed, err)
	}

	entry := &keyEntry{
		record: backend.KeyRecord{
			ID:        keyID,
			Label:     keyID,
			Algorithm: alg,
			PublicKey: pub,
		},
		persisted: true,
	}

	keyData, err := storage.GetKey(b.storage, b.slot, keyID)
	switch {
	case err == nil:
		priv, err := b.decodeKey(keyData)
		if err != nil {
			return nil, err
		}
		if !priv.PublicKey.Equal(pub) {
			return nil, fmt.Errorf("%w: stored key pair %s is inconsistent", ErrKeyDecodingFailed, keyID)
		}
		entry.private = priv
		entry.record.HasPrivate = true
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to retrieve key: %w", err)
	}

	b.session[keyID] = entry
	return entry, nil
}

// storeKey encodes a private key in PKCS#8 format and stores it.
func (b *PKCS8Backend) storeKey(keyID string, priv *ecdsa.PrivateKey) error {
	var keyData []byte
	var err error

	if len(b.password) > 0 {
		keyData, err = pkcs8.MarshalPrivateKey(priv, b.password, nil)
	} else {
		keyData, err = x509.MarshalPKCS8PrivateKey(priv)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyEncodingFailed, err)
	}

	if err := storage.SaveKey(b.storage, b.slot, keyID, keyData); err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}
	return nil
}

// decodeKey decodes a PKCS#8 encoded private key.
func (b *PKCS8Backend) decodeKey(keyData []byte) (*ecdsa.PrivateKey, error) {
	if len(b.password) > 0 {
		priv, err := pkcs8.ParsePKCS8PrivateKeyECDSA(keyData, b.password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
		}
		return priv, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v (key may be encrypted)", ErrKeyDecodingFailed, err)
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrKeyDecodingFailed, key)
	}
	return priv, nil
}

// Verify interface compliance at compile time.
var _ backend.Provider = (*PKCS8Backend)(nil)
