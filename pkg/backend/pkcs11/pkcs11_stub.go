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

//go:build !pkcs11

package pkcs11

import "github.com/jeremyhahn/go-certslot/pkg/backend"

// Compiled reports whether PKCS#11 support is built in.
const Compiled = false

// NewProvider returns ErrNotCompiled; rebuild with -tags pkcs11.
func NewProvider(config *Config) (backend.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrNotCompiled
}
