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

package storage

import (
	"sort"
	"strings"
)

// Layout:
//
//	slots/<slot>/keys/<id>.p8        private key, PKCS#8 DER
//	slots/<slot>/pub/<id>.spki       public key, SubjectPublicKeyInfo DER
//	slots/<slot>/certs/<label>.der   certificate stored by the slot
//	issued/<slot>/<serial>.der       certificate handed to the sink
const (
	slotsRoot  = "slots/"
	issuedRoot = "issued/"

	keysDir  = "keys/"
	pubDir   = "pub/"
	certsDir = "certs/"

	keyExt  = ".p8"
	pubExt  = ".spki"
	certExt = ".der"
)

// ValidateID rejects IDs that would escape their directory.
func ValidateID(id string) error {
	if id == "" || strings.ContainsAny(id, "/\\\x00") || id == "." || id == ".." {
		return ErrInvalidID
	}
	return nil
}

// SlotPrefix returns the key prefix of everything a slot owns.
func SlotPrefix(slot string) string {
	return slotsRoot + slot + "/"
}

// KeyPath returns the path of a private key.
func KeyPath(slot, id string) string {
	return SlotPrefix(slot) + keysDir + id + keyExt
}

// PublicKeyPath returns the path of a public key.
func PublicKeyPath(slot, id string) string {
	return SlotPrefix(slot) + pubDir + id + pubExt
}

// CertPath returns the path of a certificate stored by a slot.
func CertPath(slot, label string) string {
	return SlotPrefix(slot) + certsDir + label + certExt
}

// IssuedPath returns the sink path of an issued certificate.
func IssuedPath(slot, serialHex string) string {
	return issuedRoot + slot + "/" + serialHex + certExt
}

// ListKeys returns the private key IDs of a slot.
func ListKeys(backend Backend, slot string) ([]string, error) {
	return listIDs(backend, SlotPrefix(slot)+keysDir, keyExt)
}

// ListPublicKeys returns the public key IDs of a slot.
func ListPublicKeys(backend Backend, slot string) ([]string, error) {
	return listIDs(backend, SlotPrefix(slot)+pubDir, pubExt)
}

// ListCerts returns the certificate labels of a slot.
func ListCerts(backend Backend, slot string) ([]string, error) {
	return listIDs(backend, SlotPrefix(slot)+certsDir, certExt)
}

// ListIssued returns the serials issued into a slot's sink directory.
func ListIssued(backend Backend, slot string) ([]string, error) {
	return listIDs(backend, issuedRoot+slot+"/", certExt)
}

// ListIssuedSlots returns every slot that has issued certificates.
func ListIssuedSlots(backend Backend) ([]string, error) {
	keys, err := backend.List(issuedRoot)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, k := range keys {
		rest := strings.TrimPrefix(k, issuedRoot)
		if i := strings.IndexByte(rest, '/'); i > 0 {
			seen[rest[:i]] = struct{}{}
		}
	}
	slots := make([]string, 0, len(seen))
	for s := range seen {
		slots = append(slots, s)
	}
	sort.Strings(slots)
	return slots, nil
}

func listIDs(backend Backend, prefix, ext string) ([]string, error) {
	keys, err := backend.List(prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		id := strings.TrimPrefix(k, prefix)
		if !strings.HasSuffix(id, ext) || strings.Contains(id, "/") {
			continue
		}
		id = strings.TrimSuffix(id, ext)
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
