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

// Stage is a step of one certificate's issuance. Stages only move forward.
type Stage int

const (
	// StageRequested is the initial stage of every request.
	StageRequested Stage = iota
	// StageBuilt means the unsigned template exists.
	StageBuilt
	// StageSigned means the issuer slot signed the certificate.
	StageSigned
	// StageTransferred means the certificate was delivered to another slot.
	StageTransferred
	// StageStored means the certificate reached its slot and the sink.
	StageStored
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageRequested:
		return "requested"
	case StageBuilt:
		return "built"
	case StageSigned:
		return "signed"
	case StageTransferred:
		return "transferred"
	case StageStored:
		return "stored"
	default:
		return "unknown"
	}
}
