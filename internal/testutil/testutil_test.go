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
	"context"
	"testing"

	"github.com/jeremyhahn/go-certslot/pkg/types"
)

func TestGenerateTestCA(t *testing.T) {
	ca, err := GenerateTestCA("CA #1")
	if err != nil {
		t.Fatalf("GenerateTestCA() error = %v", err)
	}
	if !ca.Cert.IsCA || ca.Cert.Subject.CommonName != "CA #1" {
		t.Errorf("unexpected CA certificate: %v", ca.Cert.Subject)
	}
	if len(ca.CertPEM) == 0 {
		t.Error("CertPEM is empty")
	}

	leaf, err := ca.Issue(7, "leaf")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := leaf.CheckSignatureFrom(ca.Cert); err != nil {
		t.Errorf("leaf not signed by CA: %v", err)
	}
	if leaf.SerialNumber.Int64() != 7 {
		t.Errorf("serial = %v, want 7", leaf.SerialNumber)
	}
}

func TestNewSoftwareSlot(t *testing.T) {
	s, err := NewSoftwareSlot("slot-a", nil)
	if err != nil {
		t.Fatalf("NewSoftwareSlot() error = %v", err)
	}
	defer s.Close()

	if s.ID() != "slot-a" {
		t.Errorf("ID() = %v, want slot-a", s.ID())
	}
	key, err := s.GenerateKeyPair(context.Background(), "k", types.DefaultAlgorithm)
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	if !s.Owns(key) {
		t.Error("slot does not own its key")
	}

	if _, err := NewSoftwareSlot("bad/id", nil); err == nil {
		t.Error("NewSoftwareSlot(bad/id) error = nil, want error")
	}
}
