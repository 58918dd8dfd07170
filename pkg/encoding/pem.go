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

// Package encoding converts certificates and public keys between DER and
// PEM for storage sinks and the command line.
package encoding

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// PEM block types
const (
	PEMTypePublicKey   = "PUBLIC KEY"
	PEMTypeCertificate = "CERTIFICATE"
)

// EncodePublicKeyPEM encodes a public key to PEM format.
//
// Example:
//
//	pemData, err := encoding.EncodePublicKeyPEM(publicKey)
func EncodePublicKeyPEM(publicKey crypto.PublicKey) ([]byte, error) {
	if publicKey == nil {
		return nil, ErrInvalidPublicKey
	}

	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return encodeBlock(PEMTypePublicKey, der)
}

// EncodeSPKIPEM wraps a DER SubjectPublicKeyInfo in a PUBLIC KEY block.
func EncodeSPKIPEM(spki []byte) ([]byte, error) {
	if len(spki) == 0 {
		return nil, ErrInvalidPublicKey
	}
	return encodeBlock(PEMTypePublicKey, spki)
}

// DecodePublicKeyPEM decodes PEM encoded data to a public key.
//
// Returns the public key as crypto.PublicKey (type assert to specific type if needed).
func DecodePublicKeyPEM(data []byte) (crypto.PublicKey, error) {
	block, err := decodeBlock(data, PEMTypePublicKey)
	if err != nil {
		return nil, err
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// EncodeCertificatePEM encodes an X.509 certificate to PEM format.
//
// Example:
//
//	pemData, err := encoding.EncodeCertificatePEM(cert)
func EncodeCertificatePEM(cert *x509.Certificate) ([]byte, error) {
	if cert == nil || len(cert.Raw) == 0 {
		return nil, ErrInvalidCertificate
	}
	return encodeBlock(PEMTypeCertificate, cert.Raw)
}

// DecodeCertificatePEM decodes PEM encoded data to an X.509 certificate.
func DecodeCertificatePEM(data []byte) (*x509.Certificate, error) {
	block, err := decodeBlock(data, PEMTypeCertificate)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// DecodeCertificate accepts a certificate as DER or PEM.
func DecodeCertificate(data []byte) (*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN")) {
		return DecodeCertificatePEM(data)
	}
	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}
	return cert, nil
}

// EncodeCertificateChainPEM encodes multiple X.509 certificates to PEM format.
// The certificates are concatenated in order (typically leaf to root).
func EncodeCertificateChainPEM(certs []*x509.Certificate) ([]byte, error) {
	if len(certs) == 0 {
		return nil, ErrInvalidCertificate
	}

	var buf bytes.Buffer
	for _, cert := range certs {
		if cert == nil || len(cert.Raw) == 0 {
			return nil, ErrInvalidCertificate
		}
		block := &pem.Block{
			Type:  PEMTypeCertificate,
			Bytes: cert.Raw,
		}
		if err := pem.Encode(&buf, block); err != nil {
			return nil, fmt.Errorf("failed to encode certificate chain PEM: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeCertificateChainPEM decodes PEM encoded data containing multiple certificates.
// Returns all certificates found in the PEM data in order.
func DecodeCertificateChainPEM(data []byte) ([]*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	var certs []*x509.Certificate
	remaining := data

	for len(remaining) > 0 {
		var block *pem.Block
		block, remaining = pem.Decode(remaining)
		if block == nil {
			break
		}
		if block.Type != PEMTypeCertificate {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate in chain: %w", err)
		}
		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, ErrInvalidPEMEncoding
	}
	return certs, nil
}

func encodeBlock(blockType string, der []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return nil, fmt.Errorf("failed to encode PEM: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeBlock(data []byte, blockType string) (*pem.Block, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEMEncoding
	}
	if block.Type != blockType {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrUnexpectedBlockType, block.Type, blockType)
	}
	return block, nil
}
