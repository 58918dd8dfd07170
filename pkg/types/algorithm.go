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

// Package types holds the algorithm and key usage catalogue shared by the
// slot providers, the certificate builder and the signer.
package types

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownAlgorithm is returned when an algorithm name is not recognized.
	ErrUnknownAlgorithm = errors.New("types: unknown algorithm")

	// ErrUnknownCurve is returned when a curve name is not recognized.
	ErrUnknownCurve = errors.New("types: unknown curve")

	// ErrUnsupportedKey is returned when a public key has no matching algorithm.
	ErrUnsupportedKey = errors.New("types: unsupported public key")
)

// Algorithm identifies a key type and signature digest pair. A slot key is
// generated for an Algorithm and every certificate it signs uses the same one.
type Algorithm string

const (
	// AlgorithmECDSAP256SHA256 is ECDSA over NIST P-256 with SHA-256.
	AlgorithmECDSAP256SHA256 Algorithm = "ecdsa-p256-sha256"

	// AlgorithmECDSAP384SHA384 is ECDSA over NIST P-384 with SHA-384.
	AlgorithmECDSAP384SHA384 Algorithm = "ecdsa-p384-sha384"

	// DefaultAlgorithm is used when no algorithm is configured.
	DefaultAlgorithm = AlgorithmECDSAP256SHA256
)

// String returns the canonical algorithm name.
func (a Algorithm) String() string {
	return string(a)
}

// Valid reports whether a is a supported algorithm.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmECDSAP256SHA256, AlgorithmECDSAP384SHA384:
		return true
	default:
		return false
	}
}

// Curve returns the elliptic curve keys for this algorithm are generated on.
func (a Algorithm) Curve() elliptic.Curve {
	switch a {
	case AlgorithmECDSAP256SHA256:
		return elliptic.P256()
	case AlgorithmECDSAP384SHA384:
		return elliptic.P384()
	default:
		return nil
	}
}

// Hash returns the digest algorithm used when signing.
func (a Algorithm) Hash() crypto.Hash {
	switch a {
	case AlgorithmECDSAP256SHA256:
		return crypto.SHA256
	case AlgorithmECDSAP384SHA384:
		return crypto.SHA384
	default:
		return 0
	}
}

// SignatureAlgorithm returns the x509 signature algorithm identifier.
func (a Algorithm) SignatureAlgorithm() x509.SignatureAlgorithm {
	switch a {
	case AlgorithmECDSAP256SHA256:
		return x509.ECDSAWithSHA256
	case AlgorithmECDSAP384SHA384:
		return x509.ECDSAWithSHA384
	default:
		return x509.UnknownSignatureAlgorithm
	}
}

// PublicKeyAlgorithm returns the x509 public key algorithm.
func (a Algorithm) PublicKeyAlgorithm() x509.PublicKeyAlgorithm {
	if a.Valid() {
		return x509.ECDSA
	}
	return x509.UnknownPublicKeyAlgorithm
}

// MatchesKey reports whether pub is a key of this algorithm's type and curve.
func (a Algorithm) MatchesKey(pub crypto.PublicKey) bool {
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok || ecPub == nil || ecPub.Curve == nil {
		return false
	}
	curve := a.Curve()
	if curve == nil {
		return false
	}
	return ecPub.Curve.Params().Name == curve.Params().Name
}

// ParseAlgorithm converts a configuration string to an Algorithm.
// Accepts the canonical names plus the common JOSE and curve aliases.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ecdsa-p256-sha256", "es256", "p-256", "p256", "ecdsa-with-sha256":
		return AlgorithmECDSAP256SHA256, nil
	case "ecdsa-p384-sha384", "es384", "p-384", "p384", "ecdsa-with-sha384":
		return AlgorithmECDSAP384SHA384, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAlgorithm, s)
	}
}

// AlgorithmForPublicKey returns the Algorithm matching a public key.
func AlgorithmForPublicKey(pub crypto.PublicKey) (Algorithm, error) {
	for _, a := range []Algorithm{AlgorithmECDSAP256SHA256, AlgorithmECDSAP384SHA384} {
		if a.MatchesKey(pub) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
}

// AlgorithmForSignature returns the Algorithm matching an x509 signature algorithm.
func AlgorithmForSignature(sigAlg x509.SignatureAlgorithm) (Algorithm, error) {
	switch sigAlg {
	case x509.ECDSAWithSHA256:
		return AlgorithmECDSAP256SHA256, nil
	case x509.ECDSAWithSHA384:
		return AlgorithmECDSAP384SHA384, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAlgorithm, sigAlg)
	}
}

// ParseCurve converts a string to an elliptic.Curve.
func ParseCurve(curveName string) (elliptic.Curve, error) {
	curveName = strings.ToUpper(strings.TrimSpace(curveName))
	switch curveName {
	case "P-256", "P256", "SECP256R1", "PRIME256V1":
		return elliptic.P256(), nil
	case "P-384", "P384", "SECP384R1":
		return elliptic.P384(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCurve, curveName)
	}
}
