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

package slot

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-certslot/pkg/adapters/logger"
	"github.com/jeremyhahn/go-certslot/pkg/metrics"
)

// Signer returns a crypto.Signer that signs with h inside this slot. It is
// the only way to obtain a signer for a handle, and it refuses handles owned
// by another slot with ErrCrossSlotSigningViolation.
//
// ctx bounds every Sign call made through the returned signer.
func (s *Slot) Signer(ctx context.Context, h *KeyPairHandle) (crypto.Signer, error) {
	if err := s.checkOwned(h); err != nil {
		if errors.Is(err, ErrCrossSlotSigningViolation) {
			s.logger.ErrorContext(ctx, "policy violation: foreign key handle",
				logger.Label(h.keyID), logger.String("owner", h.slotID))
		}
		return nil, err
	}
	if !h.hasPrivate {
		return nil, fmt.Errorf("%w: key %s in slot %s is public only", ErrSigningKeyUnavailable, h.keyID, s.id)
	}
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: %w", ErrSigningKeyUnavailable, ErrClosed)
	}
	return &slotSigner{ctx: ctx, slot: s, handle: h}, nil
}

// slotSigner routes crypto.Signer calls to the slot provider.
type slotSigner struct {
	ctx    context.Context
	slot   *Slot
	handle *KeyPairHandle
}

// Public returns the public half of the key.
func (ss *slotSigner) Public() crypto.PublicKey {
	return ss.handle.pub
}

// Sign signs digest in the owning slot. The rand argument is ignored; the
// provider supplies its own entropy.
func (ss *slotSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	var sig []byte
	err := ss.slot.do(ss.ctx, metrics.OpSign, func(ctx context.Context) error {
		var err error
		sig, err = ss.slot.provider.Sign(ctx, ss.handle.keyID, digest, opts)
		return err
	})
	if err != nil {
		return nil, signError(err)
	}
	return sig, nil
}

// signError keeps timeouts and cancellation as they are and reports every
// other provider failure as ErrSigningKeyUnavailable.
func signError(err error) error {
	switch {
	case errors.Is(err, ErrProviderTimeout),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrSigningKeyUnavailable, err)
	}
}

var _ crypto.Signer = (*slotSigner)(nil)
