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

import (
	"fmt"
	"io"

	"github.com/jeremyhahn/go-certslot/pkg/backend"
	"github.com/jeremyhahn/go-certslot/pkg/storage"
)

// Config contains configuration for the PKCS8Backend.
type Config struct {
	// SlotID namespaces this slot's objects inside KeyStorage.
	SlotID string

	// KeyStorage is the underlying storage for key material. It is owned
	// by the caller and may be shared by several slots.
	KeyStorage storage.Backend

	// Password encrypts private keys at rest (PKCS#8 PBES2). Empty keeps
	// them unencrypted.
	Password []byte

	// Rand is the entropy source for key generation and signing.
	// Defaults to crypto/rand.
	Rand io.Reader
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", backend.ErrInvalidConfig)
	}
	if err := storage.ValidateID(c.SlotID); err != nil {
		return fmt.Errorf("%w: slot id %q", backend.ErrInvalidConfig, c.SlotID)
	}
	if c.KeyStorage == nil {
		return fmt.Errorf("%w: KeyStorage is required", backend.ErrInvalidConfig)
	}
	return nil
}

// String describes the configuration without the password.
func (c *Config) String() string {
	pw := "none"
	if len(c.Password) > 0 {
		pw = "****"
	}
	return fmt.Sprintf("pkcs8{slot=%s password=%s}", c.SlotID, pw)
}

// NewBackend creates a new PKCS#8 software slot with the given configuration.
//
// Example usage:
//
//	p, err := pkcs8.NewBackend(&pkcs8.Config{
//	    SlotID:     "slot-a",
//	    KeyStorage: memory.New(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	rec, err := p.GenerateKeyPair(ctx, "ca", types.AlgorithmECDSAP256SHA256)
func NewBackend(config *Config) (*PKCS8Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &PKCS8Backend{
		slot:     config.SlotID,
		storage:  config.KeyStorage,
		password: append([]byte(nil), config.Password...),
		rand:     config.Rand,
		session:  make(map[string]*keyEntry),
	}, nil
}
