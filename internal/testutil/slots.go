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

package testutil

import (
	"time"

	"github.com/jeremyhahn/go-certslot/pkg/backend"
	"github.com/jeremyhahn/go-certslot/pkg/backend/pkcs8"
	"github.com/jeremyhahn/go-certslot/pkg/slot"
	"github.com/jeremyhahn/go-certslot/pkg/storage/memory"
)

// SlotOptions customizes NewSoftwareSlot.
type SlotOptions struct {
	// Wrap decorates the provider, for fault injection.
	Wrap func(backend.Provider) backend.Provider

	// Timeout bounds provider calls. Zero uses the slot default.
	Timeout time.Duration
}

// NewSoftwareSlot returns a slot over a pkcs8 provider with its own
// in-memory storage.
func NewSoftwareSlot(id string, opts *SlotOptions) (*slot.Slot, error) {
	if opts == nil {
		opts = &SlotOptions{}
	}
	base, err := pkcs8.NewBackend(&pkcs8.Config{SlotID: id, KeyStorage: memory.New()})
	if err != nil {
		return nil, err
	}
	var p backend.Provider = base
	if opts.Wrap != nil {
		p = opts.Wrap(p)
	}
	return slot.New(&slot.Config{ID: id, Provider: p, Timeout: opts.Timeout})
}
