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

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func allErrors() []error {
	return []error{
		ErrKeyNotFound,
		ErrKeyAlreadyExists,
		ErrCertificateNotFound,
		ErrCertificateExists,
		ErrInvalidCertificate,
		ErrInvalidAlgorithm,
		ErrInvalidLabel,
		ErrKeyImportFailed,
		ErrNoPrivateKey,
		ErrNotSupported,
		ErrClosed,
		ErrInvalidConfig,
	}
}

// TestErrorUniqueness ensures all error messages are unique and prefixed
func TestErrorUniqueness(t *testing.T) {
	messages := make(map[string]bool)
	for _, err := range allErrors() {
		msg := err.Error()
		assert.False(t, messages[msg], "Error message should be unique: %s", msg)
		assert.Contains(t, msg, "backend:", "Error message should contain 'backend:' prefix")
		messages[msg] = true
	}
	assert.Equal(t, len(allErrors()), len(messages))
}

// TestErrorWrapping tests that errors survive fmt.Errorf wrapping
func TestErrorWrapping(t *testing.T) {
	for _, base := range allErrors() {
		t.Run(base.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("slot-a: %w", base)
			assert.True(t, errors.Is(wrapped, base))
			for _, other := range allErrors() {
				if other != base {
					assert.False(t, errors.Is(wrapped, other))
				}
			}
		})
	}
}

func TestParseBackendType(t *testing.T) {
	tests := []struct {
		in   string
		want BackendType
	}{
		{"pkcs8", BackendTypePKCS8},
		{"Software", BackendTypePKCS8},
		{" PKCS11 ", BackendTypePKCS11},
		{"hsm", BackendTypePKCS11},
		{"tpm2", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBackendType(tt.in))
		})
	}
	assert.Equal(t, "pkcs11", BackendTypePKCS11.String())
}
