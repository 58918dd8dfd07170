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

//go:build pkcs11

package pkcs11

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ThalesGroup/crypto11"
	"github.com/miekg/pkcs11"

	"github.com/jeremyhahn/go-certslot/pkg/backend"
	"github.com/jeremyhahn/go-certslot/pkg/storage"
	"github.com/jeremyhahn/go-certslot/pkg/types"
)

// Compiled reports whether PKCS#11 support is built in.
const Compiled = true

// contextRef tracks reference count for a cached context
type contextRef struct {
	ctx      *crypto11.Context
	refCount int
}

// contextCache stores crypto11 contexts keyed by library, token and PIN so
// that two slots on the same token share one login.
var (
	contextCache   = make(map[string]*contextRef)
	contextCacheMu sync.Mutex
)

// Backend implements backend.Provider on a PKCS#11 token.
//
// Thread Safety:
// All operations are protected by a mutex. The engine serializes calls per
// slot as well, so contention here only occurs between slots sharing a token.
type Backend struct {
	config *Config
	ctx    *crypto11.Context
	p11ctx *pkcs11.Ctx
	closed bool
	mu     sync.Mutex
}

// NewBackend validates config and returns a backend that is not yet logged in.
// Call Login before use, or use NewProvider.
func NewBackend(config *Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if config.LibraryConfig != "" && config.IsSoftHSM() {
		if err := os.Setenv("SOFTHSM2_CONF", config.LibraryConfig); err != nil {
			return nil, fmt.Errorf("failed to set SOFTHSM2_CONF: %w", err)
		}
	}
	return &Backend{config: config}, nil
}

// NewProvider creates a backend and logs in to the token.
func NewProvider(config *Config) (backend.Provider, error) {
	b, err := NewBackend(config)
	if err != nil {
		return nil, err
	}
	if err := b.Login(); err != nil {
		return nil, err
	}
	return b, nil
}

// Type returns the backend type (PKCS#11).
func (b *Backend) Type() backend.BackendType {
	return backend.BackendTypePKCS11
}

// Config returns the PKCS#11 configuration.
func (b *Backend) Config() *Config {
	return b.config
}

// Capabilities returns the capabilities of this backend.
func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		HardwareBacked:     true,
		KeyPersistence:     true,
		CertificateStorage: true,
		PublicKeyImport:    true,
	}
}

// Login authenticates with the token using the configured user PIN.
// The method uses a cached context if available to avoid re-initialization.
func (b *Backend) Login() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.PIN == "" {
		return ErrInvalidUserPIN
	}
	if b.ctx != nil {
		return nil
	}

	cacheKey := contextCacheKey(b.config)
	contextCacheMu.Lock()
	defer contextCacheMu.Unlock()

	if ref, exists := contextCache[cacheKey]; exists {
		b.ctx = ref.ctx
		ref.refCount++
		return nil
	}

	cfg := &crypto11.Config{
		Path:       b.config.Library,
		TokenLabel: b.config.TokenLabel,
		Pin:        b.config.PIN,
	}
	if b.config.TokenLabel == "" {
		cfg.SlotNumber = b.config.Slot
	}
	ctx, err := crypto11.Configure(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure PKCS#11 context: %w", err)
	}

	b.ctx = ctx
	contextCache[cacheKey] = &contextRef{ctx: ctx, refCount: 1}
	return nil
}

// Initialize initializes an uninitialized token with the given PINs and
// logs in. It exists for development tokens such as SoftHSM; production
// tokens are provisioned out of band.
func (b *Backend) Initialize(soPIN, userPIN string) error {
	if len(soPIN) < 4 {
		return ErrInvalidSOPINLength
	}
	if len(userPIN) < 4 {
		return ErrInvalidPINLength
	}

	b.mu.Lock()
	b.config.SOPIN = soPIN
	b.config.PIN = userPIN
	err := b.initializeToken(soPIN, userPIN)
	b.mu.Unlock()

	if err != nil && !errors.Is(err, ErrAlreadyInitialized) {
		return fmt.Errorf("failed to initialize token: %w", err)
	}
	return b.Login()
}

// GenerateKeyPair generates an ECDSA key pair on the token. The label is
// used as both CKA_LABEL and CKA_ID.
func (b *Backend) GenerateKeyPair(ctx context.Context, label string, alg types.Algorithm) (*backend.KeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return nil, err
	}
	if err := storage.ValidateID(label); err != nil {
		return nil, fmt.Errorf("%w: %q", backend.ErrInvalidLabel, label)
	}
	if !alg.Valid() {
		return nil, fmt.Errorf("%w: %s", backend.ErrInvalidAlgorithm, alg)
	}
	if err := b.checkUnusedLocked(label); err != nil {
		return nil, err
	}

	id := []byte(label)
	signer, err := b.ctx.GenerateECDSAKeyPairWithLabel(id, id, alg.Curve())
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	return &backend.KeyRecord{
		ID:         label,
		Label:      label,
		Algorithm:  alg,
		PublicKey:  signer.Public(),
		HasPrivate: true,
	}, nil
}

// Sign signs digest with the private key keyID inside the token.
func (b *Backend) Sign(ctx context.Context, keyID string, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return nil, err
	}
	signer, err := b.ctx.FindKeyPair([]byte(keyID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find key: %w", err)
	}
	if signer == nil {
		if _, found, err := b.findPublicKeyLocked(keyID); err == nil && found {
			return nil, fmt.Errorf("%w: %s", backend.ErrNoPrivateKey, keyID)
		}
		return nil, fmt.Errorf("%w: %s", backend.ErrKeyNotFound, keyID)
	}
	return signer.Sign(rand.Reader, digest, opts)
}

// ExportPublicKey returns the SubjectPublicKeyInfo of keyID.
func (b *Backend) ExportPublicKey(ctx context.Context, keyID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return nil, err
	}
	pub, err := b.publicKeyLocked(keyID)
	if err != nil {
		return nil, err
	}
	return x509.MarshalPKIXPublicKey(pub)
}

// ImportPublicKey creates a CKO_PUBLIC_KEY token object from a
// SubjectPublicKeyInfo.
func (b *Backend) ImportPublicKey(ctx context.Context, label string, spki []byte, alg types.Algorithm) (*backend.KeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return nil, err
	}
	if err := storage.ValidateID(label); err != nil {
		return nil, fmt.Errorf("%w: %q", backend.ErrInvalidLabel, label)
	}
	if !alg.Valid() {
		return nil, fmt.Errorf("%w: %s", backend.ErrInvalidAlgorithm, alg)
	}
	parsed, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrKeyImportFailed, err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok || !alg.MatchesKey(pub) {
		return nil, fmt.Errorf("%w: key is not %s", backend.ErrKeyImportFailed, alg)
	}
	if err := b.checkUnusedLocked(label); err != nil {
		return nil, err
	}

	params, point, err := ecPointAttributes(pub)
	if err != nil {
		return nil, err
	}
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
		pkcs11.NewAttribute(pkcs11.CKA_ID, []byte(label)),
		pkcs11.NewAttribute(pkcs11.CKA_EC_PARAMS, params),
		pkcs11.NewAttribute(pkcs11.CKA_EC_POINT, point),
	}
	err = b.withSessionLocked(func(p *pkcs11.Ctx, session pkcs11.SessionHandle) error {
		_, err := p.CreateObject(session, template)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create object: %v", backend.ErrKeyImportFailed, err)
	}

	return &backend.KeyRecord{
		ID:        label,
		Label:     label,
		Algorithm: alg,
		PublicKey: pub,
	}, nil
}

// StoreCertificate creates a CKO_CERTIFICATE token object under label.
func (b *Backend) StoreCertificate(ctx context.Context, label string, der []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return err
	}
	if err := storage.ValidateID(label); err != nil {
		return fmt.Errorf("%w: %q", backend.ErrInvalidLabel, label)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrInvalidCertificate, err)
	}
	existing, err := b.ctx.FindCertificate(nil, []byte(label), nil)
	if err != nil {
		return fmt.Errorf("failed to find certificate: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", backend.ErrCertificateExists, label)
	}
	if err := b.ctx.ImportCertificateWithLabel([]byte(label), []byte(label), cert); err != nil {
		return fmt.Errorf("failed to import certificate: %w", err)
	}
	return nil
}

// Certificate returns the DER certificate stored under label.
func (b *Backend) Certificate(ctx context.Context, label string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return nil, err
	}
	cert, err := b.ctx.FindCertificate(nil, []byte(label), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find certificate: %w", err)
	}
	if cert == nil {
		return nil, fmt.Errorf("%w: %s", backend.ErrCertificateNotFound, label)
	}
	return cert.Raw, nil
}

// StoreKey confirms keyID exists. Keys are created as token objects, so
// there is nothing further to persist.
func (b *Backend) StoreKey(ctx context.Context, keyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return err
	}
	_, err := b.publicKeyLocked(keyID)
	return err
}

// Close releases the PKCS#11 context and any associated resources.
// It uses reference counting for cached contexts to prevent premature
// closure when several slots share the same token login.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var closeErr error
	if b.ctx != nil {
		cacheKey := contextCacheKey(b.config)
		contextCacheMu.Lock()
		last := true
		if ref, exists := contextCache[cacheKey]; exists {
			ref.refCount--
			last = ref.refCount <= 0
			if last {
				delete(contextCache, cacheKey)
			}
		}
		contextCacheMu.Unlock()

		if last {
			if err := b.ctx.Close(); err != nil {
				closeErr = fmt.Errorf("failed to close PKCS#11 context: %w", err)
			}
		}
		b.ctx = nil
	}

	if b.p11ctx != nil {
		b.p11ctx.Destroy()
		b.p11ctx = nil
	}
	return closeErr
}

func (b *Backend) ready() error {
	if b.closed {
		return backend.ErrClosed
	}
	if b.ctx == nil {
		return ErrNotInitialized
	}
	return nil
}

func (b *Backend) checkUnusedLocked(label string) error {
	signer, err := b.ctx.FindKeyPair([]byte(label), nil)
	if err != nil {
		return fmt.Errorf("failed to check key existence: %w", err)
	}
	if signer != nil {
		return fmt.Errorf("%w: %s", backend.ErrKeyAlreadyExists, label)
	}
	_, found, err := b.findPublicKeyLocked(label)
	if err != nil {
		return fmt.Errorf("failed to check key existence: %w", err)
	}
	if found {
		return fmt.Errorf("%w: %s", backend.ErrKeyAlreadyExists, label)
	}
	return nil
}

// publicKeyLocked resolves keyID to a public key, from a key pair or a
// standalone public key object.
func (b *Backend) publicKeyLocked(keyID string) (crypto.PublicKey, error) {
	signer, err := b.ctx.FindKeyPair([]byte(keyID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find key: %w", err)
	}
	if signer != nil {
		return signer.Public(), nil
	}
	pub, found, err := b.findPublicKeyLocked(keyID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", backend.ErrKeyNotFound, keyID)
	}
	return pub, nil
}

// findPublicKeyLocked looks up a CKO_PUBLIC_KEY object by CKA_ID and reads
// its EC attributes.
func (b *Backend) findPublicKeyLocked(keyID string) (*ecdsa.PublicKey, bool, error) {
	var pub *ecdsa.PublicKey
	err := b.withSessionLocked(func(p *pkcs11.Ctx, session pkcs11.SessionHandle) error {
		template := []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
			pkcs11.NewAttribute(pkcs11.CKA_ID, []byte(keyID)),
		}
		if err := p.FindObjectsInit(session, template); err != nil {
			return fmt.Errorf("failed to init find public key: %w", err)
		}
		objs, _, err := p.FindObjects(session, 1)
		if finalErr := p.FindObjectsFinal(session); err == nil && finalErr != nil {
			err = finalErr
		}
		if err != nil {
			return fmt.Errorf("failed to find public key: %w", err)
		}
		if len(objs) == 0 {
			return nil
		}

		attrs, err := p.GetAttributeValue(session, objs[0], []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_EC_PARAMS, nil),
			pkcs11.NewAttribute(pkcs11.CKA_EC_POINT, nil),
		})
		if err != nil {
			return fmt.Errorf("failed to read public key: %w", err)
		}
		var params, point []byte
		for _, a := range attrs {
			switch a.Type {
			case pkcs11.CKA_EC_PARAMS:
				params = a.Value
			case pkcs11.CKA_EC_POINT:
				point = a.Value
			}
		}
		pub, err = publicKeyFromAttributes(params, point)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return pub, pub != nil, nil
}

// withSessionLocked runs fn in a logged-in read/write session of the
// low-level API. The session is closed afterwards; the login is not undone
// because C_Logout would also end crypto11's sessions.
func (b *Backend) withSessionLocked(fn func(*pkcs11.Ctx, pkcs11.SessionHandle) error) error {
	if b.p11ctx == nil {
		p := pkcs11.New(b.config.Library)
		if p == nil {
			return fmt.Errorf("failed to load PKCS#11 library: %s", b.config.Library)
		}
		if err := p.Initialize(); err != nil {
			if !errors.Is(err, pkcs11.Error(pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED)) {
				p.Destroy()
				return fmt.Errorf("failed to initialize PKCS#11: %w", err)
			}
		}
		b.p11ctx = p
	}

	slot, err := findSlot(b.p11ctx, b.config)
	if err != nil {
		return err
	}
	session, err := b.p11ctx.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer b.p11ctx.CloseSession(session)

	if err := b.p11ctx.Login(session, pkcs11.CKU_USER, b.config.PIN); err != nil {
		if !errors.Is(err, pkcs11.Error(pkcs11.CKR_USER_ALREADY_LOGGED_IN)) {
			return fmt.Errorf("failed to login: %w", err)
		}
	}
	return fn(b.p11ctx, session)
}

// initializeToken initializes the token with SO and user PINs.
// Must be called with mutex held.
func (b *Backend) initializeToken(soPIN, userPIN string) error {
	p := pkcs11.New(b.config.Library)
	if p == nil {
		return fmt.Errorf("failed to load PKCS#11 library: %s", b.config.Library)
	}
	defer p.Destroy()

	if err := p.Initialize(); err != nil {
		if !errors.Is(err, pkcs11.Error(pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED)) {
			return fmt.Errorf("failed to initialize PKCS#11: %w", err)
		}
	} else {
		defer p.Finalize()
	}

	slot, err := findSlot(p, b.config)
	if err != nil && b.config.Slot == nil {
		// An uninitialized token has no label yet; fall back to the first slot.
		slots, listErr := p.GetSlotList(true)
		if listErr != nil || len(slots) == 0 {
			return ErrTokenNotFound
		}
		slot = slots[0]
	}

	tokenInfo, err := p.GetTokenInfo(slot)
	if err != nil {
		return fmt.Errorf("failed to get token info: %w", err)
	}
	if tokenInfo.Flags&pkcs11.CKF_TOKEN_INITIALIZED != 0 {
		return ErrAlreadyInitialized
	}

	if err := p.InitToken(slot, soPIN, b.config.TokenLabel); err != nil {
		return fmt.Errorf("failed to init token: %w", err)
	}
	session, err := p.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer p.CloseSession(session)

	if err := p.Login(session, pkcs11.CKU_SO, soPIN); err != nil {
		return fmt.Errorf("failed to login as SO: %w", err)
	}
	defer p.Logout(session)

	if err := p.InitPIN(session, userPIN); err != nil {
		return fmt.Errorf("failed to init user PIN: %w", err)
	}
	return nil
}

// findSlot returns the slot holding the configured token.
func findSlot(p *pkcs11.Ctx, config *Config) (uint, error) {
	if config.TokenLabel == "" && config.Slot != nil {
		return uint(*config.Slot), nil
	}
	slots, err := p.GetSlotList(true)
	if err != nil {
		return 0, fmt.Errorf("failed to get slot list: %w", err)
	}
	for _, slot := range slots {
		info, err := p.GetTokenInfo(slot)
		if err != nil {
			continue
		}
		if info.Label == config.TokenLabel {
			return slot, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrTokenNotFound, config.TokenLabel)
}

// contextCacheKey generates a unique cache key for a PKCS#11 configuration.
// The key is based on the library path, token and PIN to prevent
// cross-contamination between different authentication sessions.
func contextCacheKey(config *Config) string {
	slot := -1
	if config.Slot != nil {
		slot = *config.Slot
	}
	return fmt.Sprintf("%s:%s:%d:%s", config.Library, config.TokenLabel, slot, config.PIN)
}

var _ backend.Provider = (*Backend)(nil)
