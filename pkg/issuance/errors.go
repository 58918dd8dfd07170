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

package issuance

import (
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-certslot/pkg/slot"
	"github.com/jeremyhahn/go-certslot/pkg/transfer"
)

var (
	// ErrInvalidRequest is returned for a request that cannot be built.
	ErrInvalidRequest = errors.New("issuance: invalid request")

	// ErrInvalidConfig is returned when the orchestrator configuration is invalid.
	ErrInvalidConfig = errors.New("issuance: invalid configuration")

	// ErrAuthorityRequired is returned when no authority is supplied.
	ErrAuthorityRequired = errors.New("issuance: authority is required")
)

// IssuanceError reports the stage at which one certificate's issuance
// failed. It unwraps to the underlying cause.
type IssuanceError struct {
	// RequestID identifies the request within its batch.
	RequestID string
	// Serial is the hex serial number, empty before StageBuilt.
	Serial string
	// Stage is the stage that could not be reached.
	Stage Stage
	// Slot and Label locate a certificate a slot already holds when only
	// the sink failed. The slot copy is left in place.
	Slot  string
	Label string
	// Err is the cause.
	Err error
}

func (e *IssuanceError) Error() string {
	msg := fmt.Sprintf("issuance %s failed at %s: %v", e.RequestID, e.Stage, e.Err)
	if e.Serial != "" {
		msg = fmt.Sprintf("issuance %s (serial %s) failed at %s: %v", e.RequestID, e.Serial, e.Stage, e.Err)
	}
	if e.Label != "" {
		msg += fmt.Sprintf(" (certificate held by slot %s as %s)", e.Slot, e.Label)
	}
	return msg
}

func (e *IssuanceError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a provider timeout, the only failure
// that is retried.
func IsRetryable(err error) bool {
	return errors.Is(err, slot.ErrProviderTimeout)
}

// IsPolicyViolation reports whether err is a misuse of private key
// material: exporting a private key or signing with a foreign key.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, transfer.ErrPrivateKeyExportDenied) ||
		errors.Is(err, slot.ErrCrossSlotSigningViolation)
}
