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
	"crypto/rand"
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-certslot/pkg/backend"
)

func TestECPointRoundTrip(t *testing.T) {
	for _, curve := range []elliptic.Curve{elliptic.P256(), elliptic.P384()} {
		t.Run(curve.Params().Name, func(t *testing.T) {
			key, err := ecdsa.GenerateKey(curve, rand.Reader)
			require.NoError(t, err)

			params, point, err := ecPointAttributes(&key.PublicKey)
			require.NoError(t, err)

			pub, err := publicKeyFromAttributes(params, point)
			require.NoError(t, err)
			assert.True(t, key.PublicKey.Equal(pub))
		})
	}
}

func TestPublicKeyFromAttributes_UnwrappedPoint(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	params, point, err := ecPointAttributes(&key.PublicKey)
	require.NoError(t, err)

	var raw []byte
	_, err = asn1.Unmarshal(point, &raw)
	require.NoError(t, err)
	require.Equal(t, byte(0x04), raw[0])

	pub, err := publicKeyFromAttributes(params, raw)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))
}

func TestECParams_Unsupported(t *testing.T) {
	_, err := ecParams(elliptic.P521())
	assert.ErrorIs(t, err, ErrUnsupportedCurve)

	p521, err := asn1.Marshal(asn1.ObjectIdentifier{1, 3, 132, 0, 35})
	require.NoError(t, err)
	_, err = publicKeyFromAttributes(p521, []byte{0x04})
	assert.ErrorIs(t, err, ErrUnsupportedCurve)

	_, err = publicKeyFromAttributes([]byte{0xff}, []byte{0x04})
	assert.ErrorIs(t, err, backend.ErrKeyImportFailed)

	params, err := ecParams(elliptic.P256())
	require.NoError(t, err)
	_, err = publicKeyFromAttributes(params, []byte{0x04, 0x01, 0x02})
	assert.ErrorIs(t, err, backend.ErrKeyImportFailed)
}
