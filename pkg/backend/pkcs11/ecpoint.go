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

package pkcs11

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/jeremyhahn/go-certslot/pkg/backend"
)

var (
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidNamedCurveP256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
	oidNamedCurveP384 = asn1.ObjectIdentifier{1, 3, 132, 0, 34}
)

// ecParams returns the CKA_EC_PARAMS value (a DER named-curve OID).
func ecParams(curve elliptic.Curve) ([]byte, error) {
	switch curve {
	case elliptic.P256():
		return asn1.Marshal(oidNamedCurveP256)
	case elliptic.P384():
		return asn1.Marshal(oidNamedCurveP384)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCurve, curve)
	}
}

// ecPointAttributes converts a public key into CKA_EC_PARAMS and
// CKA_EC_POINT values. The point is a DER OCTET STRING holding the
// uncompressed encoding.
func ecPointAttributes(pub *ecdsa.PublicKey) (params, point []byte, err error) {
	params, err = ecParams(pub.Curve)
	if err != nil {
		return nil, nil, err
	}
	ecdhKey, err := pub.ECDH()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", backend.ErrKeyImportFailed, err)
	}
	point, err = asn1.Marshal(ecdhKey.Bytes())
	if err != nil {
		return nil, nil, err
	}
	return params, point, nil
}

// publicKeyFromAttributes rebuilds an ECDSA public key from CKA_EC_PARAMS
// and CKA_EC_POINT by assembling a SubjectPublicKeyInfo and parsing it.
// Tokens that return the raw point without the OCTET STRING wrapper are
// accepted.
func publicKeyFromAttributes(params, point []byte) (*ecdsa.PublicKey, error) {
	var curveOID asn1.ObjectIdentifier
	if rest, err := asn1.Unmarshal(params, &curveOID); err != nil || len(rest) > 0 {
		return nil, fmt.Errorf("%w: malformed EC params", backend.ErrKeyImportFailed)
	}
	if !curveOID.Equal(oidNamedCurveP256) && !curveOID.Equal(oidNamedCurveP384) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curveOID)
	}

	raw := point
	var octets []byte
	if rest, err := asn1.Unmarshal(point, &octets); err == nil && len(rest) == 0 {
		raw = octets
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(spki *cryptobyte.Builder) {
		spki.AddASN1(cbasn1.SEQUENCE, func(alg *cryptobyte.Builder) {
			alg.AddASN1ObjectIdentifier(oidPublicKeyECDSA)
			alg.AddASN1ObjectIdentifier(curveOID)
		})
		spki.AddASN1BitString(raw)
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrKeyImportFailed, err)
	}

	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrKeyImportFailed, err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", backend.ErrKeyImportFailed, pub)
	}
	return ecPub, nil
}
