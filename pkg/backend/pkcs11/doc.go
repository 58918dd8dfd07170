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

// Package pkcs11 implements a slot provider on a PKCS#11 token.
//
// Key pairs are generated on the token through crypto11 and never leave
// it; signing happens inside the token. Public keys received from another
// slot are created as CKO_PUBLIC_KEY objects and certificates as
// CKO_CERTIFICATE objects, both as token objects. Object labels double as
// CKA_ID values.
//
// The provider is compiled only with the pkcs11 build tag, since it links
// against the token library through cgo. Without the tag NewProvider
// returns ErrNotCompiled.
//
// # Usage Example
//
//	p, err := pkcs11.NewProvider(&pkcs11.Config{
//		SlotID:     "slot-a",
//		Library:    "/usr/lib/softhsm/libsofthsm2.so",
//		TokenLabel: "issuing",
//		PIN:        "user1234",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//
// # Testing with SoftHSM
//
//	softhsm2-util --init-token --free --label "certslot-test" \
//		--so-pin "admin1234" --pin "user1234"
//	PKCS11_LIBRARY=/usr/lib/softhsm/libsofthsm2.so go test -tags pkcs11 ./pkg/backend/pkcs11/...
//
// Tests that need a token skip when PKCS11_LIBRARY is unset.
package pkcs11
