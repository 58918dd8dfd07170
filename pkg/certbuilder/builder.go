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

// Package certbuilder resolves a certificate request into a fully specified,
// unsigned X.509 v3 certificate.
//
// Defaults are applied by exported functions so they can be tested on their
// own: ResolveSerial, ResolveNotBefore, ResolveNotAfter and AddOneYear. The
// Key Usage extension is always present and non-critical; it defaults to
// digitalSignature.
//
// Building is purely structural. No key material is touched and nothing is
// signed; see the signer package for that.
package certbuilder

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/jeremyhahn/go-certslot/pkg/dn"
)

// Version is the X.509 version every template carries.
const Version = 3

// Request describes a certificate to build. Zero values select defaults.
// Serial uniqueness is the caller's responsibility.
type Request struct {
	// Serial is a big-endian serial number. Random when empty.
	Serial []byte

	Issuer  dn.DistinguishedName
	Subject dn.DistinguishedName

	// NotBefore defaults to the builder clock, NotAfter to one year later.
	NotBefore time.Time
	NotAfter  time.Time

	// SubjectKey is the public key being certified.
	SubjectKey crypto.PublicKey

	// KeyUsage defaults to x509.KeyUsageDigitalSignature.
	KeyUsage x509.KeyUsage

	// IsCA adds a critical Basic Constraints extension with cA set.
	IsCA bool

	// AuthorityKeyID is copied into the Authority Key Identifier extension
	// when set.
	AuthorityKeyID []byte
}

// Template is an immutable, fully resolved unsigned certificate.
type Template struct {
	version              int
	serial               *big.Int
	issuer               dn.DistinguishedName
	subject              dn.DistinguishedName
	rawIssuer            []byte
	rawSubject           []byte
	notBefore            time.Time
	notAfter             time.Time
	keyUsage             x509.KeyUsage
	isCA                 bool
	publicKey            crypto.PublicKey
	subjectPublicKeyInfo []byte
	authorityKeyID       []byte
	extensions           []pkix.Extension
}

// Version returns the certificate version (always 3).
func (t *Template) Version() int { return t.version }

// SerialNumber returns a copy of the serial number.
func (t *Template) SerialNumber() *big.Int { return new(big.Int).Set(t.serial) }

// Issuer returns the issuer name.
func (t *Template) Issuer() dn.DistinguishedName { return t.issuer }

// Subject returns the subject name.
func (t *Template) Subject() dn.DistinguishedName { return t.subject }

// RawIssuer returns the DER encoded issuer name.
func (t *Template) RawIssuer() []byte { return cloneBytes(t.rawIssuer) }

// RawSubject returns the DER encoded subject name.
func (t *Template) RawSubject() []byte { return cloneBytes(t.rawSubject) }

// NotBefore returns the start of the validity period.
func (t *Template) NotBefore() time.Time { return t.notBefore }

// NotAfter returns the end of the validity period.
func (t *Template) NotAfter() time.Time { return t.notAfter }

// KeyUsage returns the key usage flags.
func (t *Template) KeyUsage() x509.KeyUsage { return t.keyUsage }

// IsCA reports whether the certificate asserts cA.
func (t *Template) IsCA() bool { return t.isCA }

// PublicKey returns the subject public key.
func (t *Template) PublicKey() crypto.PublicKey { return t.publicKey }

// SubjectPublicKeyInfo returns the DER encoded subject public key.
func (t *Template) SubjectPublicKeyInfo() []byte { return cloneBytes(t.subjectPublicKeyInfo) }

// SelfSigned reports whether issuer and subject names are identical.
func (t *Template) SelfSigned() bool { return t.issuer.Equal(t.subject) }

// Extensions returns a copy of the extensions the template adds.
func (t *Template) Extensions() []pkix.Extension {
	out := make([]pkix.Extension, len(t.extensions))
	for i, ext := range t.extensions {
		out[i] = pkix.Extension{Id: ext.Id, Critical: ext.Critical, Value: cloneBytes(ext.Value)}
	}
	return out
}

// Certificate returns a fresh x509.Certificate suitable as the template
// argument of x509.CreateCertificate.
func (t *Template) Certificate() *x509.Certificate {
	return &x509.Certificate{
		Version:               t.version,
		SerialNumber:          t.SerialNumber(),
		RawSubject:            t.RawSubject(),
		NotBefore:             t.notBefore,
		NotAfter:              t.notAfter,
		BasicConstraintsValid: t.isCA,
		IsCA:                  t.isCA,
		AuthorityKeyId:        cloneBytes(t.authorityKeyID),
		ExtraExtensions:       t.Extensions(),
	}
}

// Parent returns the parent argument of x509.CreateCertificate: the issuer
// name and the key expected to sign.
func (t *Template) Parent(issuerKey crypto.PublicKey) *x509.Certificate {
	return &x509.Certificate{
		RawSubject: t.RawIssuer(),
		PublicKey:  issuerKey,
	}
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the time source used for a default NotBefore.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithRand sets the randomness source used for default serials.
func WithRand(r io.Reader) Option {
	return func(b *Builder) {
		if r != nil {
			b.rand = r
		}
	}
}

// Builder turns Requests into Templates.
type Builder struct {
	now  func() time.Time
	rand io.Reader
}

// NewBuilder returns a Builder using time.Now and crypto/rand unless
// overridden.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		now:  time.Now,
		rand: rand.Reader,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build resolves req into a Template with the default builder.
func Build(req *Request) (*Template, error) {
	return NewBuilder().Build(req)
}

// Build validates req, applies defaults and returns the resolved Template.
func (b *Builder) Build(req *Request) (*Template, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}

	rawIssuer, err := req.Issuer.Marshal()
	if err != nil {
		return nil, fmt.Errorf("issuer: %w", err)
	}
	rawSubject, err := req.Subject.Marshal()
	if err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}

	if req.SubjectKey == nil {
		return nil, fmt.Errorf("%w: subject key is missing", ErrKeyImportFailed)
	}
	spki, err := x509.MarshalPKIXPublicKey(req.SubjectKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyImportFailed, err)
	}

	notBefore := ResolveNotBefore(req.NotBefore, b.now())
	notAfter := ResolveNotAfter(notBefore, req.NotAfter)
	if !notAfter.After(notBefore) {
		return nil, fmt.Errorf("%w: %s is not after %s", ErrInvalidValidityPeriod,
			notAfter.Format(time.RFC3339), notBefore.Format(time.RFC3339))
	}

	serial, err := ResolveSerial(req.Serial, b.rand)
	if err != nil {
		return nil, err
	}

	usage := req.KeyUsage
	if usage == 0 {
		usage = x509.KeyUsageDigitalSignature
	}
	ku, err := KeyUsageExtension(usage)
	if err != nil {
		return nil, err
	}
	extensions := []pkix.Extension{ku}
	if req.IsCA {
		bc, err := BasicConstraintsExtension()
		if err != nil {
			return nil, err
		}
		extensions = append(extensions, bc)
	}

	return &Template{
		version:              Version,
		serial:               serial,
		issuer:               req.Issuer,
		subject:              req.Subject,
		rawIssuer:            rawIssuer,
		rawSubject:           rawSubject,
		notBefore:            notBefore,
		notAfter:             notAfter,
		keyUsage:             usage,
		isCA:                 req.IsCA,
		publicKey:            req.SubjectKey,
		subjectPublicKeyInfo: spki,
		authorityKeyID:       cloneBytes(req.AuthorityKeyID),
		extensions:           extensions,
	}, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
