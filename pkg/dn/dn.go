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

// Package dn builds ordered X.500 distinguished names from OID/value pairs.
//
// A DistinguishedName keeps the exact order its attributes were supplied in,
// one attribute per RDN, so the DER produced for a given input never changes.
// Values are encoded as PrintableString when every character allows it and
// as UTF8String otherwise.
package dn

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAttribute is returned for an empty name, a malformed or empty
// attribute type, an empty value, or a repeated attribute type.
var ErrInvalidAttribute = errors.New("dn: invalid attribute")

// Well-known attribute types.
const (
	OIDCommonName         = "2.5.4.3"
	OIDSerialNumber       = "2.5.4.5"
	OIDCountry            = "2.5.4.6"
	OIDLocality           = "2.5.4.7"
	OIDProvince           = "2.5.4.8"
	OIDStreetAddress      = "2.5.4.9"
	OIDOrganization       = "2.5.4.10"
	OIDOrganizationalUnit = "2.5.4.11"
	OIDEmailAddress       = "1.2.840.113549.1.9.1"
)

var shortNames = map[string]string{
	"CN":     OIDCommonName,
	"SERIAL": OIDSerialNumber,
	"C":      OIDCountry,
	"L":      OIDLocality,
	"ST":     OIDProvince,
	"STREET": OIDStreetAddress,
	"O":      OIDOrganization,
	"OU":     OIDOrganizationalUnit,
	"EMAIL":  OIDEmailAddress,
}

// Attribute is one (type, value) pair of a name. Type is a dotted-decimal OID.
type Attribute struct {
	Type  string `yaml:"oid" json:"oid"`
	Value string `yaml:"value" json:"value"`
}

// Attr is shorthand for Attribute{Type: oid, Value: value}.
func Attr(oid, value string) Attribute {
	return Attribute{Type: oid, Value: value}
}

// CommonName returns a commonName attribute.
func CommonName(value string) Attribute {
	return Attribute{Type: OIDCommonName, Value: value}
}

type attribute struct {
	oid   asn1.ObjectIdentifier
	value string
}

// DistinguishedName is an immutable, ordered X.500 name.
type DistinguishedName struct {
	attrs []attribute
}

// BuildName validates attrs and returns them as a DistinguishedName in the
// order given. The input models an ordered mapping, so each attribute type
// may appear once.
func BuildName(attrs ...Attribute) (DistinguishedName, error) {
	if len(attrs) == 0 {
		return DistinguishedName{}, fmt.Errorf("%w: name has no attributes", ErrInvalidAttribute)
	}

	seen := make(map[string]struct{}, len(attrs))
	out := make([]attribute, 0, len(attrs))
	for i, a := range attrs {
		oid, err := ParseOID(a.Type)
		if err != nil {
			return DistinguishedName{}, fmt.Errorf("attribute %d: %w", i, err)
		}
		if a.Value == "" {
			return DistinguishedName{}, fmt.Errorf("%w: attribute %s has an empty value", ErrInvalidAttribute, oid)
		}
		key := oid.String()
		if _, dup := seen[key]; dup {
			return DistinguishedName{}, fmt.Errorf("%w: attribute %s repeated", ErrInvalidAttribute, key)
		}
		seen[key] = struct{}{}
		out = append(out, attribute{oid: oid, value: a.Value})
	}
	return DistinguishedName{attrs: out}, nil
}

// MustBuildName is BuildName for fixed names; it panics on error.
func MustBuildName(attrs ...Attribute) DistinguishedName {
	name, err := BuildName(attrs...)
	if err != nil {
		panic(err)
	}
	return name
}

// ParseOID parses a dotted-decimal object identifier. It requires at least
// two arcs, a first arc of 0, 1 or 2, a second arc below 40 under 0 and 1,
// and decimal arcs without sign or leading zeros.
func ParseOID(s string) (asn1.ObjectIdentifier, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty attribute type", ErrInvalidAttribute)
	}
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: %q needs at least two arcs", ErrInvalidAttribute, s)
	}
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		if p == "" || (len(p) > 1 && p[0] == '0') {
			return nil, fmt.Errorf("%w: %q is not a valid OID", ErrInvalidAttribute, s)
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("%w: %q is not a valid OID", ErrInvalidAttribute, s)
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q arc out of range", ErrInvalidAttribute, s)
		}
		oid[i] = n
	}
	if oid[0] > 2 {
		return nil, fmt.Errorf("%w: %q first arc must be 0, 1 or 2", ErrInvalidAttribute, s)
	}
	if oid[0] < 2 && oid[1] > 39 {
		return nil, fmt.Errorf("%w: %q second arc must be below 40", ErrInvalidAttribute, s)
	}
	return oid, nil
}

// ResolveType maps a short attribute name (CN, O, OU, C, L, ST, STREET,
// SERIAL, EMAIL) to its OID. Any other input is returned unchanged.
func ResolveType(name string) string {
	if oid, ok := shortNames[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return oid
	}
	return strings.TrimSpace(name)
}

// Len returns the number of attributes.
func (n DistinguishedName) Len() int {
	return len(n.attrs)
}

// IsZero reports whether n was never built.
func (n DistinguishedName) IsZero() bool {
	return len(n.attrs) == 0
}

// Attributes returns a copy of the attributes in order.
func (n DistinguishedName) Attributes() []Attribute {
	out := make([]Attribute, len(n.attrs))
	for i, a := range n.attrs {
		out[i] = Attribute{Type: a.oid.String(), Value: a.value}
	}
	return out
}

// Value returns the value for an attribute type, if present.
func (n DistinguishedName) Value(oid string) (string, bool) {
	for _, a := range n.attrs {
		if a.oid.String() == oid {
			return a.value, true
		}
	}
	return "", false
}

// RDNSequence returns the name as single-valued RDNs in insertion order.
func (n DistinguishedName) RDNSequence() pkix.RDNSequence {
	seq := make(pkix.RDNSequence, 0, len(n.attrs))
	for _, a := range n.attrs {
		oid := make(asn1.ObjectIdentifier, len(a.oid))
		copy(oid, a.oid)
		seq = append(seq, pkix.RelativeDistinguishedNameSET{
			{Type: oid, Value: a.value},
		})
	}
	return seq
}

// Marshal returns the DER encoding of the name.
func (n DistinguishedName) Marshal() ([]byte, error) {
	if n.IsZero() {
		return nil, fmt.Errorf("%w: name has no attributes", ErrInvalidAttribute)
	}
	der, err := asn1.Marshal(n.RDNSequence())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttribute, err)
	}
	return der, nil
}

// Name converts to a pkix.Name. Attributes pkix.Name has no field for are
// kept in Names.
func (n DistinguishedName) Name() pkix.Name {
	var name pkix.Name
	seq := n.RDNSequence()
	name.FillFromRDNSequence(&seq)
	return name
}

// String formats the name per RFC 4514.
func (n DistinguishedName) String() string {
	return n.RDNSequence().String()
}

// Equal reports whether both names hold the same attributes in the same order.
func (n DistinguishedName) Equal(other DistinguishedName) bool {
	if len(n.attrs) != len(other.attrs) {
		return false
	}
	for i := range n.attrs {
		if !n.attrs[i].oid.Equal(other.attrs[i].oid) || n.attrs[i].value != other.attrs[i].value {
			return false
		}
	}
	return true
}

// ParseName decodes a DER Name. Multi-valued RDNs are flattened in order.
func ParseName(der []byte) (DistinguishedName, error) {
	var seq pkix.RDNSequence
	rest, err := asn1.Unmarshal(der, &seq)
	if err != nil {
		return DistinguishedName{}, fmt.Errorf("%w: %v", ErrInvalidAttribute, err)
	}
	if len(rest) > 0 {
		return DistinguishedName{}, fmt.Errorf("%w: trailing data after name", ErrInvalidAttribute)
	}

	attrs := make([]Attribute, 0, len(seq))
	for _, rdn := range seq {
		for _, atv := range rdn {
			value, ok := atv.Value.(string)
			if !ok {
				return DistinguishedName{}, fmt.Errorf("%w: attribute %s is not a string", ErrInvalidAttribute, atv.Type)
			}
			attrs = append(attrs, Attribute{Type: atv.Type.String(), Value: value})
		}
	}
	return BuildName(attrs...)
}
