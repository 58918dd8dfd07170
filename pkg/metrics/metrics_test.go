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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	// Metrics should be enabled by default
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordOperation(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpGenerate, "pkcs8", StatusSuccess, 0.5)

	if count := testutil.CollectAndCount(OperationsTotal); count != 1 {
		t.Errorf("Expected 1 operation recorded, got %d", count)
	}
	if count := testutil.CollectAndCount(OperationDuration); count != 1 {
		t.Errorf("Expected 1 histogram sample, got %d", count)
	}

	RecordOperation(OpSign, "pkcs11", StatusError, 0.1)
	RecordOperation(OpSign, "pkcs11", StatusError, 0.2)

	if count := testutil.CollectAndCount(OperationsTotal); count != 2 {
		t.Errorf("Expected 2 label sets, got %d", count)
	}
	if v := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpSign, "pkcs11", StatusError)); v != 2 {
		t.Errorf("Expected sign error count 2, got %v", v)
	}
}

func TestRecordOperationWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	OperationsTotal.Reset()
	ErrorsTotal.Reset()
	IssuanceStageTotal.Reset()
	IssuedCertificatesTotal.Reset()

	RecordOperation(OpSign, "pkcs8", StatusSuccess, 0.1)
	RecordError(OpSign, "pkcs8", "timeout")
	RecordStage("signed", StatusSuccess)
	RecordIssued("A")
	SetSlotBusy("A", true)

	for name, c := range map[string]int{
		"operations": testutil.CollectAndCount(OperationsTotal),
		"errors":     testutil.CollectAndCount(ErrorsTotal),
		"stages":     testutil.CollectAndCount(IssuanceStageTotal),
		"issued":     testutil.CollectAndCount(IssuedCertificatesTotal),
	} {
		if c != 0 {
			t.Errorf("Expected no %s recorded while disabled, got %d", name, c)
		}
	}
}

func TestRecordError(t *testing.T) {
	Enable()
	ErrorsTotal.Reset()

	RecordError(OpSign, "pkcs11", "timeout")
	RecordError(OpTransfer, "pkcs8", "policy_violation")

	if count := testutil.CollectAndCount(ErrorsTotal); count != 2 {
		t.Errorf("Expected 2 error series, got %d", count)
	}
}

func TestIssuanceMetrics(t *testing.T) {
	Enable()
	IssuanceStageTotal.Reset()
	IssuedCertificatesTotal.Reset()
	SlotBusy.Reset()

	RecordStage("built", StatusSuccess)
	RecordStage("signed", StatusSuccess)
	RecordStage("signed", StatusError)
	RecordIssued("A")
	RecordIssued("A")

	if v := testutil.ToFloat64(IssuanceStageTotal.WithLabelValues("signed", StatusError)); v != 1 {
		t.Errorf("Expected 1 signed error, got %v", v)
	}
	if v := testutil.ToFloat64(IssuedCertificatesTotal.WithLabelValues("A")); v != 2 {
		t.Errorf("Expected 2 issued certificates, got %v", v)
	}

	SetSlotBusy("A", true)
	if v := testutil.ToFloat64(SlotBusy.WithLabelValues("A")); v != 1 {
		t.Errorf("Expected slot busy 1, got %v", v)
	}
	SetSlotBusy("A", false)
	if v := testutil.ToFloat64(SlotBusy.WithLabelValues("A")); v != 0 {
		t.Errorf("Expected slot busy 0, got %v", v)
	}
}
