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

package certstore

import (
	"crypto/x509"
	"time"

	"github.com/jeremyhahn/go-certslot/pkg/storage"
	"github.com/jeremyhahn/go-certslot/pkg/types"
)

// Config provides configuration for creating a new CertStore instance.
type Config struct {
	// Storage holds the certificates. Required. It is owned by the caller.
	Storage storage.Backend

	// VerifyOptions provides default verification options.
	// Optional - if not provided, defaults will be used.
	VerifyOptions *x509.VerifyOptions
}

// CertificateInfo summarizes a stored certificate.
type CertificateInfo struct {
	// Slot is the slot the certificate was filed under.
	Slot string `json:"slot,omitempty" yaml:"slot,omitempty"`

	// Serial is the lowercase hex serial number.
	Serial string `json:"serial" yaml:"serial"`

	// Subject is the subject name in RFC 4514 form.
	Subject string `json:"subject" yaml:"subject"`

	// Issuer is the issuer name in RFC 4514 form.
	Issuer string `json:"issuer" yaml:"issuer"`

	// NotBefore is the certificate validity start time.
	NotBefore time.Time `json:"not_before" yaml:"not_before"`

	// NotAfter is the certificate validity end time.
	NotAfter time.Time `json:"not_after" yaml:"not_after"`

	// SignatureAlgorithm is the algorithm the issuer signed with.
	SignatureAlgorithm string `json:"signature_algorithm" yaml:"signature_algorithm"`

	// IsCA indicates if this is a CA certificate.
	IsCA bool `json:"is_ca" yaml:"is_ca"`

	// SelfSigned is true when issuer and subject are the same name.
	SelfSigned bool `json:"self_signed" yaml:"self_signed"`

	// KeyUsage lists the key usage names.
	KeyUsage []string `json:"key_usage" yaml:"key_usage"`
}

// Info summarizes cert. slotID may be empty.
func Info(slotID string, cert *x509.Certificate) *CertificateInfo {
	return &CertificateInfo{
		Slot:               slotID,
		Serial:             storage.SerialHex(cert.SerialNumber),
		Subject:            cert.Subject.String(),
		Issuer:             cert.Issuer.String(),
		NotBefore:          cert.NotBefore.UTC(),
		NotAfter:           cert.NotAfter.UTC(),
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		IsCA:               cert.BasicConstraintsValid && cert.IsCA,
		SelfSigned:         string(cert.RawIssuer) == string(cert.RawSubject),
		KeyUsage:           types.KeyUsageNames(cert.KeyUsage),
	}
}
