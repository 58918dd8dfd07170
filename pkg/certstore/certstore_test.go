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
	"context"
	"crypto/x509"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-certslot/internal/testutil"
	"github.com/jeremyhahn/go-certslot/pkg/encoding"
	"github.com/jeremyhahn/go-certslot/pkg/storage/memory"
)

func newTestCA(t *testing.T) *testutil.TestCA {
	t.Helper()
	ca, err := testutil.GenerateTestCA("CA #1")
	require.NoError(t, err)
	return ca
}

func issue(t *testing.T, ca *testutil.TestCA, serial int64, cn string) *x509.Certificate {
	t.Helper()
	cert, err := ca.Issue(serial, cn)
	require.NoError(t, err)
	return cert
}

func newStore(t *testing.T) CertStore {
	t.Helper()
	store, err := New(&Config{Storage: memory.New()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&Config{})
	assert.ErrorIs(t, err, ErrStorageRequired)
}

func TestStoreAndGet(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ca := newTestCA(t)
	leaf := issue(t, ca, 1, "Ivanov I.I.")

	require.NoError(t, store.StoreCertificate(ctx, "A", leaf))

	got, err := store.GetCertificate("A", big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, leaf.Raw, got.Raw)

	pemData, err := store.GetCertificatePEM("A", big.NewInt(1))
	require.NoError(t, err)
	decoded, err := encoding.DecodeCertificatePEM(pemData)
	require.NoError(t, err)
	assert.Equal(t, leaf.Raw, decoded.Raw)

	_, err = store.GetCertificate("B", big.NewInt(1))
	assert.ErrorIs(t, err, ErrCertNotFound)
	_, err = store.GetCertificate("A", big.NewInt(2))
	assert.ErrorIs(t, err, ErrCertNotFound)
	_, err = store.GetCertificate("A", nil)
	assert.ErrorIs(t, err, ErrCertNotFound)
}

func TestStore_WriteOncePerSlot(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ca := newTestCA(t)
	leaf := issue(t, ca, 1, "leaf")

	require.NoError(t, store.StoreCertificate(ctx, "A", leaf))
	err := store.StoreCertificate(ctx, "A", leaf)
	assert.ErrorIs(t, err, ErrCertAlreadyExists)

	// The same serial may be filed under another slot.
	require.NoError(t, store.StoreCertificate(ctx, "B", leaf))

	slots, err := store.ListSlots()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, slots)
}

func TestStore_InvalidInput(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ca := newTestCA(t)

	assert.ErrorIs(t, store.StoreCertificate(ctx, "A", nil), ErrCertInvalid)
	assert.ErrorIs(t, store.StoreCertificate(ctx, "", ca.Cert), ErrInvalidSlot)
	assert.ErrorIs(t, store.StoreCertificate(ctx, "../x", ca.Cert), ErrInvalidSlot)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.StoreCertificate(canceled, "A", ca.Cert), context.Canceled)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ca := newTestCA(t)

	for _, serial := range []int64{300, 2, 17} {
		require.NoError(t, store.StoreCertificate(ctx, "A", issue(t, ca, serial, "leaf")))
	}

	certs, err := store.ListCertificates("A")
	require.NoError(t, err)
	require.Len(t, certs, 3)
	assert.Equal(t, int64(2), certs[0].SerialNumber.Int64())
	assert.Equal(t, int64(17), certs[1].SerialNumber.Int64())
	assert.Equal(t, int64(300), certs[2].SerialNumber.Int64())

	require.NoError(t, store.DeleteCertificate("A", big.NewInt(17)))
	assert.ErrorIs(t, store.DeleteCertificate("A", big.NewInt(17)), ErrCertNotFound)

	certs, err = store.ListCertificates("A")
	require.NoError(t, err)
	assert.Len(t, certs, 2)

	empty, err := store.ListCertificates("unused")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestVerifyCertificate(t *testing.T) {
	store := newStore(t)
	ca := newTestCA(t)
	other := newTestCA(t)
	leaf := issue(t, ca, 1, "leaf")

	roots := x509.NewCertPool()
	roots.AddCert(ca.Cert)
	assert.NoError(t, store.VerifyCertificate(leaf, roots))

	otherRoots := x509.NewCertPool()
	otherRoots.AddCert(other.Cert)
	assert.ErrorIs(t, store.VerifyCertificate(leaf, otherRoots), ErrVerificationFailed)

	assert.ErrorIs(t, store.VerifyCertificate(leaf, nil), ErrNoRoots)
	assert.ErrorIs(t, store.VerifyCertificate(nil, roots), ErrCertInvalid)
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	store, err := New(&Config{Storage: backend})
	require.NoError(t, err)
	ca := newTestCA(t)

	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.StoreCertificate(ctx, "A", ca.Cert), ErrStorageClosed)
	_, err = store.GetCertificate("A", big.NewInt(1))
	assert.ErrorIs(t, err, ErrStorageClosed)
	_, err = store.ListCertificates("A")
	assert.ErrorIs(t, err, ErrStorageClosed)
	_, err = store.ListSlots()
	assert.ErrorIs(t, err, ErrStorageClosed)

	// The caller still owns the storage.
	_, err = backend.List("")
	assert.NoError(t, err)
}

func TestInfo(t *testing.T) {
	ca := newTestCA(t)
	leaf := issue(t, ca, 1, "Ivanov I.I.")

	info := Info("A", leaf)
	assert.Equal(t, "A", info.Slot)
	assert.Equal(t, "01", info.Serial)
	assert.Equal(t, "CN=Ivanov I.I.", info.Subject)
	assert.Equal(t, "CN=CA #1", info.Issuer)
	assert.False(t, info.IsCA)
	assert.False(t, info.SelfSigned)
	assert.Equal(t, []string{"digitalSignature"}, info.KeyUsage)
	assert.Equal(t, "ECDSA-SHA256", info.SignatureAlgorithm)

	caInfo := Info("", ca.Cert)
	assert.True(t, caInfo.IsCA)
	assert.True(t, caInfo.SelfSigned)
	assert.Equal(t, "64", caInfo.Serial)
}
