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
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const (
	recordVersion = 1
	kindPublicKey = "public-key"
)

// publicKeyRecord is the interchange form of a public key.
type publicKeyRecord struct {
	Version   int    `cbor:"v"`
	Kind      string `cbor:"kind"`
	Algorithm string `cbor:"alg"`
	SPKI      []byte `cbor:"spki"`
	Origin    string `cbor:"origin,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("transfer: cbor encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("transfer: cbor decoder: %v", err))
	}
}

func encodeRecord(rec *publicKeyRecord) ([]byte, error) {
	return encMode.Marshal(rec)
}

func decodeRecord(raw []byte) (*publicKeyRecord, error) {
	var rec publicKeyRecord
	if err := decMode.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("unsupported record version %d", rec.Version)
	}
	if rec.Kind != kindPublicKey {
		return nil, fmt.Errorf("unsupported record kind %q", rec.Kind)
	}
	if len(rec.SPKI) == 0 {
		return nil, errors.New("record has no public key")
	}
	return &rec, nil
}

// format is the detected encoding of raw transfer bytes.
type format int

const (
	formatUnknown format = iota
	formatCertificate
	formatSPKI
	formatRecord
)

// detect classifies raw without fully parsing it. A Certificate and a
// SubjectPublicKeyInfo are both a single DER SEQUENCE whose first element
// is a SEQUENCE; inside a SubjectPublicKeyInfo that inner SEQUENCE is an
// AlgorithmIdentifier and starts with an OBJECT IDENTIFIER.
func detect(raw []byte) format {
	if len(raw) == 0 {
		return formatUnknown
	}
	// CBOR major type 5 (map).
	if raw[0]>>5 == 5 {
		return formatRecord
	}

	input := cryptobyte.String(raw)
	var outer, first cryptobyte.String
	if !input.ReadASN1(&outer, cbasn1.SEQUENCE) || !input.Empty() {
		return formatUnknown
	}
	if !outer.ReadASN1(&first, cbasn1.SEQUENCE) {
		return formatUnknown
	}
	if first.PeekASN1Tag(cbasn1.OBJECT_IDENTIFIER) {
		return formatSPKI
	}
	return formatCertificate
}
