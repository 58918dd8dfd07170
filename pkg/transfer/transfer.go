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

// Package transfer moves public artifacts between slots.
//
// Certificates travel as plain DER. Public keys travel as a small CBOR
// record carrying the algorithm, the SubjectPublicKeyInfo and the origin
// slot; a bare SubjectPublicKeyInfo is accepted on import as well. Private
// keys cannot be exported in any form.
//
// Importing always creates a new object in the target slot, even when the
// target is the slot the artifact came from.
package transfer

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-certslot/pkg/metrics"
	"github.com/jeremyhahn/go-certslot/pkg/slot"
	"github.com/jeremyhahn/go-certslot/pkg/storage"
	"github.com/jeremyhahn/go-certslot/pkg/types"
)

// Label prefixes for imported objects.
const (
	CertificateLabelPrefix = "cert"
	PublicKeyLabelPrefix   = "pub"
)

// ExportPublicArtifact encodes a public artifact owned by source.
//
// Accepted artifacts are *slot.Certificate, *slot.PublicKey and public only
// *slot.KeyPairHandle values. A *slot.PrivateKey, or a key pair that holds a
// private half, fails with ErrPrivateKeyExportDenied.
func ExportPublicArtifact(ctx context.Context, artifact slot.Artifact, source *slot.Slot) ([]byte, error) {
	if source == nil {
		return nil, ErrSlotRequired
	}
	if artifact == nil {
		return nil, slot.ErrInvalidHandle
	}

	switch a := artifact.(type) {
	case *slot.PrivateKey:
		return nil, fmt.Errorf("%w: key %s in slot %s", ErrPrivateKeyExportDenied, a.Label(), a.SlotID())
	case *slot.KeyPairHandle:
		if a.HasPrivate() {
			return nil, fmt.Errorf("%w: key pair %s in slot %s holds a private key", ErrPrivateKeyExportDenied, a.Label(), a.SlotID())
		}
		if err := checkOwner(a, source); err != nil {
			return nil, err
		}
		pub, err := source.ExportPublicKey(ctx, a)
		if err != nil {
			return nil, err
		}
		return encodePublicKey(pub, source)
	case *slot.PublicKey:
		if err := checkOwner(a, source); err != nil {
			return nil, err
		}
		return encodePublicKey(a, source)
	case *slot.Certificate:
		if err := checkOwner(a, source); err != nil {
			return nil, err
		}
		return a.DER(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArtifact, artifact.Kind())
	}
}

// ImportPublicArtifact decodes raw into target after checking it against
// expected. An empty expected selects types.DefaultAlgorithm.
//
// Certificates come back as *slot.Certificate and public keys as
// *slot.PublicKey, both stored under a fresh label.
func ImportPublicArtifact(ctx context.Context, raw []byte, target *slot.Slot, expected types.Algorithm) (slot.Artifact, error) {
	if target == nil {
		return nil, ErrSlotRequired
	}
	if expected == "" {
		expected = types.DefaultAlgorithm
	}
	if !expected.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrAlgorithmMismatch, types.ErrUnknownAlgorithm)
	}

	switch detect(raw) {
	case formatCertificate:
		return importCertificate(ctx, raw, target, expected)
	case formatSPKI:
		return importPublicKey(ctx, raw, "", target, expected)
	case formatRecord:
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, malformed(err)
		}
		alg, err := types.ParseAlgorithm(rec.Algorithm)
		if err != nil || rec.Algorithm == "" {
			return nil, fmt.Errorf("%w: record algorithm %q", ErrAlgorithmMismatch, rec.Algorithm)
		}
		if alg != expected {
			return nil, fmt.Errorf("%w: record is %s, expected %s", ErrAlgorithmMismatch, alg, expected)
		}
		return importPublicKey(ctx, rec.SPKI, rec.Origin, target, expected)
	default:
		return nil, malformed(fmt.Errorf("%d bytes are neither DER nor a public key record", len(raw)))
	}
}

// Transfer exports artifact from source and imports it into target.
// source and target may be the same slot.
func Transfer(ctx context.Context, artifact slot.Artifact, source, target *slot.Slot, expected types.Algorithm) (slot.Artifact, error) {
	if source == nil || target == nil {
		return nil, ErrSlotRequired
	}
	start := time.Now()
	out, err := transfer(ctx, artifact, source, target, expected)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	metrics.RecordOperation(metrics.OpTransfer, target.Type().String(), status, time.Since(start).Seconds())
	return out, err
}

func transfer(ctx context.Context, artifact slot.Artifact, source, target *slot.Slot, expected types.Algorithm) (slot.Artifact, error) {
	raw, err := ExportPublicArtifact(ctx, artifact, source)
	if err != nil {
		return nil, fmt.Errorf("export from slot %s: %w", source.ID(), err)
	}
	out, err := ImportPublicArtifact(ctx, raw, target, expected)
	if err != nil {
		return nil, fmt.Errorf("import into slot %s: %w", target.ID(), err)
	}
	return out, nil
}

func checkOwner(a slot.Artifact, source *slot.Slot) error {
	if !source.Owns(a) {
		return fmt.Errorf("%w: %s %s belongs to slot %s, not %s",
			ErrForeignArtifact, a.Kind(), a.Label(), a.SlotID(), source.ID())
	}
	return nil
}

func encodePublicKey(pub *slot.PublicKey, source *slot.Slot) ([]byte, error) {
	return encodeRecord(&publicKeyRecord{
		Version:   recordVersion,
		Kind:      kindPublicKey,
		Algorithm: pub.Algorithm().String(),
		SPKI:      pub.SubjectPublicKeyInfo(),
		Origin:    source.ID(),
	})
}

func importCertificate(ctx context.Context, der []byte, target *slot.Slot, expected types.Algorithm) (*slot.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, malformed(err)
	}
	if cert.SignatureAlgorithm != expected.SignatureAlgorithm() {
		return nil, fmt.Errorf("%w: certificate signed with %s, expected %s",
			ErrAlgorithmMismatch, cert.SignatureAlgorithm, expected.SignatureAlgorithm())
	}
	if cert.PublicKeyAlgorithm != expected.PublicKeyAlgorithm() {
		return nil, fmt.Errorf("%w: certificate key is %s, expected %s",
			ErrAlgorithmMismatch, cert.PublicKeyAlgorithm, expected.PublicKeyAlgorithm())
	}
	return target.StoreCertificate(ctx, target.NewLabel(CertificateLabelPrefix), der)
}

func importPublicKey(ctx context.Context, spki []byte, origin string, target *slot.Slot, expected types.Algorithm) (*slot.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, malformed(err)
	}
	if !expected.MatchesKey(key) {
		actual := "unsupported key"
		if alg, err := types.AlgorithmForPublicKey(key); err == nil {
			actual = alg.String()
		}
		return nil, fmt.Errorf("%w: key is %s, expected %s", ErrAlgorithmMismatch, actual, expected)
	}

	prefix := PublicKeyLabelPrefix
	if origin != target.ID() && storage.ValidateID(origin) == nil {
		prefix += "-" + origin
	}
	h, err := target.ImportPublicKey(ctx, target.NewLabel(prefix), spki, expected)
	if err != nil {
		return nil, err
	}
	return target.ExportPublicKey(ctx, h)
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w: %v", ErrMalformedArtifact, slot.ErrKeyImportFailed, err)
}
