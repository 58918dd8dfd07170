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

package transfer

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-certslot/internal/testutil"
	"github.com/jeremyhahn/go-certslot/pkg/certbuilder"
	"github.com/jeremyhahn/go-certslot/pkg/dn"
	"github.com/jeremyhahn/go-certslot/pkg/signer"
	"github.com/jeremyhahn/go-certslot/pkg/slot"
	"github.com/jeremyhahn/go-certslot/pkg/types"
)

func newSlot(t *testing.T, id string) *slot.Slot {
	t.Helper()
	s, err := testutil.NewSoftwareSlot(id, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func selfSigned(t *testing.T, s *slot.Slot, alg types.Algorithm) *slot.Certificate {
	t.Helper()
	ctx := context.Background()
	key, err := s.GenerateKeyPair(ctx, s.NewLabel("ca"), alg)
	require.NoError(t, err)
	name := dn.MustBuildName(dn.CommonName("CA #1"))
	tmpl, err := certbuilder.Build(&certbuilder.Request{
		Issuer:     name,
		Subject:    name,
		SubjectKey: key.PublicKey(),
	})
	require.NoError(t, err)
	cert, err := signer.Sign(ctx, tmpl, key, s, alg)
	require.NoError(t, err)
	return cert
}

func TestExport_PrivateKeyDenied(t *testing.T) {
	ctx := context.Background()
	a := newSlot(t, "A")
	key, err := a.GenerateKeyPair(ctx, "ca", types.AlgorithmECDSAP256SHA256)
	require.NoError(t, err)

	_, err = ExportPublicArtifact(ctx, key, a)
	assert.ErrorIs(t, err, ErrPrivateKeyExportDenied)

	_, err = ExportPublicArtifact(ctx, key.Private(), a)
	assert.ErrorIs(t, err, ErrPrivateKeyExportDenied)

	// Denied even when asked through the wrong slot.
	b := newSlot(t, "B")
	_, err = ExportPublicArtifact(ctx, key.Private(), b)
	assert.ErrorIs(t, err, ErrPrivateKeyExportDenied)
}

func TestExport_ForeignArtifact(t *testing.T) {
	ctx := context.Background()
	a := newSlot(t, "A")
	b := newSlot(t, "B")

	key, err := a.GenerateKeyPair(ctx, "k", types.AlgorithmECDSAP256SHA256)
	require.NoError(t, err)
	pub, err := a.ExportPublicKey(ctx, key)
	require.NoError(t, err)

	_, err = ExportPublicArtifact(ctx, pub, b)
	assert.ErrorIs(t, err, ErrForeignArtifact)

	cert := selfSigned(t, a, types.AlgorithmECDSAP256SHA256)
	_, err = ExportPublicArtifact(ctx, cert, b)
	assert.ErrorIs(t, err, ErrForeignArtifact)
}

func TestPublicKey_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, alg := range []types.Algorithm{types.AlgorithmECDSAP256SHA256, types.AlgorithmECDSAP384SHA384} {
		t.Run(alg.String(), func(t *testing.T) {
			a := newSlot(t, "A")
			b := newSlot(t, "B")

			key, err := b.GenerateKeyPair(ctx, "subject", alg)
			require.NoError(t, err)
			pub, err := b.ExportPublicKey(ctx, key)
			require.NoError(t, err)

			raw, err := ExportPublicArtifact(ctx, pub, b)
			require.NoError(t, err)

			again, err := ExportPublicArtifact(ctx, pub, b)
			require.NoError(t, err)
			assert.Equal(t, raw, again, "record encoding must be deterministic")

			rec, err := decodeRecord(raw)
			require.NoError(t, err)
			assert.Equal(t, recordVersion, rec.Version)
			assert.Equal(t, kindPublicKey, rec.Kind)
			assert.Equal(t, alg.String(), rec.Algorithm)
			assert.Equal(t, "B", rec.Origin)

			out, err := ImportPublicArtifact(ctx, raw, a, alg)
			require.NoError(t, err)
			imported, ok := out.(*slot.PublicKey)
			require.True(t, ok)

			assert.Equal(t, "A", imported.SlotID())
			assert.Equal(t, alg, imported.Algorithm())
			assert.True(t, strings.HasPrefix(imported.Label(), "pub-B-"), imported.Label())
			assert.Equal(t, pub.SubjectPublicKeyInfo(), imported.SubjectPublicKeyInfo())
			assert.True(t, pub.Key().(*ecdsa.PublicKey).Equal(imported.Key()))
		})
	}
}

func TestPublicKey_BareSPKI(t *testing.T) {
	ctx := context.Background()
	a := newSlot(t, "A")

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	out, err := ImportPublicArtifact(ctx, spki, a, "")
	require.NoError(t, err)
	pub := out.(*slot.PublicKey)
	assert.Equal(t, spki, pub.SubjectPublicKeyInfo())
	assert.True(t, strings.HasPrefix(pub.Label(), PublicKeyLabelPrefix+"-"))

	_, err = ImportPublicArtifact(ctx, spki, a, types.AlgorithmECDSAP384SHA384)
	assert.ErrorIs(t, err, ErrAlgorithmMismatch)
}

func TestPublicKey_PublicOnlyHandle(t *testing.T) {
	ctx := context.Background()
	a := newSlot(t, "A")
	b := newSlot(t, "B")

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	h, err := a.ImportPublicKey(ctx, "peer", spki, types.AlgorithmECDSAP256SHA256)
	require.NoError(t, err)
	require.False(t, h.HasPrivate())

	out, err := Transfer(ctx, h, a, b, types.AlgorithmECDSAP256SHA256)
	require.NoError(t, err)
	assert.Equal(t, "B", out.SlotID())
	assert.Equal(t, spki, out.(*slot.PublicKey).SubjectPublicKeyInfo())
}

func TestCertificate_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newSlot(t, "A")
	b := newSlot(t, "B")

	cert := selfSigned(t, a, types.AlgorithmECDSAP256SHA256)

	raw, err := ExportPublicArtifact(ctx, cert, a)
	require.NoError(t, err)
	assert.Equal(t, cert.DER(), raw)

	out, err := ImportPublicArtifact(ctx, raw, b, types.AlgorithmECDSAP256SHA256)
	require.NoError(t, err)
	imported, ok := out.(*slot.Certificate)
	require.True(t, ok)
	assert.Equal(t, "B", imported.SlotID())
	assert.Equal(t, cert.DER(), imported.DER())

	stored, err := b.Certificate(ctx, imported.Label())
	require.NoError(t, err)
	assert.Equal(t, cert.DER(), stored.DER())
}

func TestCertificate_SelfRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newSlot(t, "A")
	cert := selfSigned(t, a, types.AlgorithmECDSAP256SHA256)

	first, err := Transfer(ctx, cert, a, a, types.AlgorithmECDSAP256SHA256)
	require.NoError(t, err)
	second, err := Transfer(ctx, cert, a, a, types.AlgorithmECDSAP256SHA256)
	require.NoError(t, err)

	for _, out := range []slot.Artifact{first, second} {
		c := out.(*slot.Certificate)
		assert.Equal(t, "A", c.SlotID())
		assert.Equal(t, cert.DER(), c.DER())
		assert.NotEqual(t, cert.Label(), c.Label())
	}
	assert.NotEqual(t, first.Label(), second.Label())
	assert.NotSame(t, first, second)
}

func TestCertificate_AlgorithmMismatch(t *testing.T) {
	ctx := context.Background()
	a := newSlot(t, "A")
	b := newSlot(t, "B")
	cert := selfSigned(t, a, types.AlgorithmECDSAP256SHA256)

	_, err := Transfer(ctx, cert, a, b, types.AlgorithmECDSAP384SHA384)
	assert.ErrorIs(t, err, ErrAlgorithmMismatch)

	_, err = ImportPublicArtifact(ctx, cert.DER(), b, types.Algorithm("rsa-2048"))
	assert.ErrorIs(t, err, ErrAlgorithmMismatch)
}

func TestRecord_AlgorithmMismatch(t *testing.T) {
	ctx := context.Background()
	a := newSlot(t, "A")

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	// Declares P-384 but carries a P-256 key.
	lying, err := encodeRecord(&publicKeyRecord{
		Version:   recordVersion,
		Kind:      kindPublicKey,
		Algorithm: types.AlgorithmECDSAP384SHA384.String(),
		SPKI:      spki,
	})
	require.NoError(t, err)
	_, err = ImportPublicArtifact(ctx, lying, a, types.AlgorithmECDSAP384SHA384)
	assert.ErrorIs(t, err, ErrAlgorithmMismatch)

	honest, err := encodeRecord(&publicKeyRecord{
		Version:   recordVersion,
		Kind:      kindPublicKey,
		Algorithm: types.AlgorithmECDSAP256SHA256.String(),
		SPKI:      spki,
	})
	require.NoError(t, err)
	_, err = ImportPublicArtifact(ctx, honest, a, types.AlgorithmECDSAP384SHA384)
	assert.ErrorIs(t, err, ErrAlgorithmMismatch)

	_, err = ImportPublicArtifact(ctx, honest, a, types.AlgorithmECDSAP256SHA256)
	assert.NoError(t, err)
}

func TestImport_Malformed(t *testing.T) {
	ctx := context.Background()
	a := newSlot(t, "A")

	badVersion, err := encodeRecord(&publicKeyRecord{Version: 2, Kind: kindPublicKey, Algorithm: "ecdsa-p256-sha256", SPKI: []byte{0x30, 0x00}})
	require.NoError(t, err)
	badKind, err := encodeRecord(&publicKeyRecord{Version: 1, Kind: "private-key", Algorithm: "ecdsa-p256-sha256", SPKI: []byte{0x30, 0x00}})
	require.NoError(t, err)
	unknownField, err := encMode.Marshal(map[string]any{"v": 1, "kind": kindPublicKey, "alg": "ecdsa-p256-sha256", "spki": []byte{1}, "d": []byte{2}})
	require.NoError(t, err)
	badSPKI, err := encodeRecord(&publicKeyRecord{Version: 1, Kind: kindPublicKey, Algorithm: "ecdsa-p256-sha256", SPKI: []byte{0x30, 0x03, 0x02, 0x01, 0x01}})
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not a certificate")},
		{"truncated der", []byte{0x30, 0x10, 0x30}},
		{"trailing data", []byte{0x30, 0x02, 0x30, 0x00, 0xff}},
		{"bad certificate", []byte{0x30, 0x05, 0x30, 0x03, 0x02, 0x01, 0x01}},
		{"record version", badVersion},
		{"record kind", badKind},
		{"record unknown field", unknownField},
		{"record spki", badSPKI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportPublicArtifact(ctx, tt.raw, a, types.AlgorithmECDSAP256SHA256)
			assert.ErrorIs(t, err, ErrMalformedArtifact)
			assert.ErrorIs(t, err, slot.ErrKeyImportFailed)
		})
	}
}

func TestDetect(t *testing.T) {
	a := newSlot(t, "A")
	cert := selfSigned(t, a, types.AlgorithmECDSAP256SHA256)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	rec, err := encodeRecord(&publicKeyRecord{Version: 1, Kind: kindPublicKey, Algorithm: "ecdsa-p256-sha256", SPKI: spki})
	require.NoError(t, err)

	assert.Equal(t, formatCertificate, detect(cert.DER()))
	assert.Equal(t, formatSPKI, detect(spki))
	assert.Equal(t, formatRecord, detect(rec))
	assert.Equal(t, formatUnknown, detect(nil))
	assert.Equal(t, formatUnknown, detect([]byte{0x04, 0x01, 0x00}))
}

func TestNilArguments(t *testing.T) {
	ctx := context.Background()
	a := newSlot(t, "A")

	_, err := ExportPublicArtifact(ctx, nil, a)
	assert.ErrorIs(t, err, slot.ErrInvalidHandle)

	cert := selfSigned(t, a, types.AlgorithmECDSAP256SHA256)
	_, err = ExportPublicArtifact(ctx, cert, nil)
	assert.ErrorIs(t, err, ErrSlotRequired)

	_, err = ImportPublicArtifact(ctx, cert.DER(), nil, "")
	assert.ErrorIs(t, err, ErrSlotRequired)

	_, err = Transfer(ctx, cert, a, nil, "")
	assert.ErrorIs(t, err, ErrSlotRequired)
}
