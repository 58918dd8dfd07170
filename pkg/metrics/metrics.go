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

// Package metrics provides Prometheus instrumentation for certificate
// issuance. It counts provider operations per slot type, issuance stage
// transitions and issued certificates.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all certslot metrics
	Namespace = "certslot"

	// Label names
	LabelOperation = "operation"
	LabelBackend   = "backend"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelStage     = "stage"
	LabelSlot      = "slot"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpGenerate    = "generate"
	OpSign        = "sign"
	OpExport      = "export"
	OpImport      = "import"
	OpStoreCert   = "store_certificate"
	OpGetCert     = "get_certificate"
	OpStoreKey    = "store_key"
	OpIssue       = "issue"
	OpTransfer    = "transfer"
	OpPersist     = "persist"
	OpCreateCA    = "create_authority"
	OpBatch       = "batch"
	OpHealthCheck = "health_check"
)

var (
	// OperationsTotal tracks provider operations by type, backend, and status.
	// Use RecordOperation to increment this counter with the appropriate labels.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of provider operations by type, backend, and status",
		},
		[]string{LabelOperation, LabelBackend, LabelStatus},
	)

	// OperationDuration tracks the duration of provider operations in seconds.
	// Buckets cover software keys through slow network HSMs.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of provider operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{LabelOperation, LabelBackend},
	)

	// ErrorsTotal tracks errors by operation, backend, and error type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation, backend, and error type",
		},
		[]string{LabelOperation, LabelBackend, LabelErrorType},
	)

	// IssuanceStageTotal counts stage transitions of certificate issuance.
	IssuanceStageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "issuance_stage_total",
			Help:      "Issuance stage outcomes by stage and status",
		},
		[]string{LabelStage, LabelStatus},
	)

	// IssuedCertificatesTotal counts certificates persisted per issuing slot.
	IssuedCertificatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "issued_certificates_total",
			Help:      "Total number of certificates issued and stored, by issuing slot",
		},
		[]string{LabelSlot},
	)

	// SlotBusy is 1 while a provider call holds the slot.
	SlotBusy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "slot_busy",
			Help:      "Whether a provider call currently holds the slot (1) or not (0)",
		},
		[]string{LabelSlot},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a provider operation with its duration and status.
//
// Parameters:
//   - operation: The operation name (use Op* constants)
//   - backend: The slot backend type ("pkcs8", "pkcs11")
//   - status: The operation status (use Status* constants)
//   - duration: The operation duration in seconds
func RecordOperation(operation, backend, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, backend, status).Inc()
	OperationDuration.WithLabelValues(operation, backend).Observe(duration)
}

// RecordError records an error event with context about where it occurred.
// errorType should be specific, e.g. "timeout" or "policy_violation".
func RecordError(operation, backend, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, backend, errorType).Inc()
}

// RecordStage records the outcome of an issuance stage.
func RecordStage(stage, status string) {
	if !enabled.Load() {
		return
	}
	IssuanceStageTotal.WithLabelValues(stage, status).Inc()
}

// RecordIssued counts a stored certificate for the issuing slot.
func RecordIssued(slot string) {
	if !enabled.Load() {
		return
	}
	IssuedCertificatesTotal.WithLabelValues(slot).Inc()
}

// SetSlotBusy marks a slot as held by a provider call or idle.
func SetSlotBusy(slot string, busy bool) {
	if !enabled.Load() {
		return
	}
	value := 0.0
	if busy {
		value = 1.0
	}
	SlotBusy.WithLabelValues(slot).Set(value)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
