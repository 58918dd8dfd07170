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

package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-certslot/pkg/backend"
	"github.com/jeremyhahn/go-certslot/pkg/backend/pkcs11"
	"github.com/jeremyhahn/go-certslot/pkg/dn"
	"github.com/jeremyhahn/go-certslot/pkg/ratelimit"
	"github.com/jeremyhahn/go-certslot/pkg/types"
	"github.com/jeremyhahn/go-certslot/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Default values applied by Default.
const (
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultStorage      = "file"
	DefaultDataDir      = "./certslot-data"
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 100 * time.Millisecond
	DefaultTimeout      = 30 * time.Second
	DefaultConcurrency  = 4
	DefaultCALabel      = "ca"
)

// Config represents the complete issuance configuration
type Config struct {
	Logging      LoggingConfig       `yaml:"logging"`
	Metrics      MetricsConfig       `yaml:"metrics"`
	Storage      StorageConfig       `yaml:"storage"`
	Issuance     IssuanceConfig      `yaml:"issuance"`
	Slots        []SlotConfig        `yaml:"slots"`
	Authority    AuthorityConfig     `yaml:"authority"`
	Certificates []CertificateConfig `yaml:"certificates"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles metric collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StorageConfig selects where software keys and issued certificates live
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, file
	Path    string `yaml:"path"`
}

// IssuanceConfig tunes the orchestrator
type IssuanceConfig struct {
	Algorithm    string        `yaml:"algorithm"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	Timeout      time.Duration `yaml:"timeout"`
	Concurrency  int           `yaml:"concurrency"`
}

// SlotConfig describes one isolated slot
type SlotConfig struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"` // pkcs8, pkcs11

	// Password encrypts pkcs8 keys at rest.
	Password string `yaml:"password,omitempty"`

	PKCS11    *pkcs11.Config    `yaml:"pkcs11,omitempty"`
	RateLimit *ratelimit.Config `yaml:"ratelimit,omitempty"`

	// Timeout overrides issuance.timeout for this slot.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Attribute is one subject attribute. Type is an OID or a short name
// such as CN or O.
type Attribute struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// Subject is an ordered list of attributes.
type Subject []Attribute

// ValidityConfig bounds a certificate's validity. Unset bounds use the
// engine defaults.
type ValidityConfig struct {
	NotBefore *time.Time `yaml:"not_before,omitempty"`
	NotAfter  *time.Time `yaml:"not_after,omitempty"`
}

// AuthorityConfig describes the signing authority
type AuthorityConfig struct {
	Slot      string         `yaml:"slot"`
	Label     string         `yaml:"label"`
	Algorithm string         `yaml:"algorithm,omitempty"`
	Subject   Subject        `yaml:"subject"`
	Serial    string         `yaml:"serial,omitempty"`
	Validity  ValidityConfig `yaml:"validity"`
	KeyUsage  []string       `yaml:"key_usage,omitempty"`
	IsCA      bool           `yaml:"is_ca"`
	Persist   bool           `yaml:"persist"`
}

// CertificateConfig describes one certificate to issue
type CertificateConfig struct {
	ID       string         `yaml:"id"`
	Subject  Subject        `yaml:"subject"`
	Serial   string         `yaml:"serial,omitempty"`
	KeySlot  string         `yaml:"key_slot"`
	KeyLabel string         `yaml:"key_label,omitempty"`
	Label    string         `yaml:"label,omitempty"`
	Validity ValidityConfig `yaml:"validity"`
	KeyUsage []string       `yaml:"key_usage,omitempty"`
	Persist  bool           `yaml:"persist"`

	// DeliverTo names the slot that receives the signed certificate.
	DeliverTo string `yaml:"deliver_to,omitempty"`
}

// Default returns a configuration with every optional value filled in.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Storage: StorageConfig{
			Backend: DefaultStorage,
			Path:    DefaultDataDir,
		},
		Issuance: IssuanceConfig{
			Algorithm:    string(types.DefaultAlgorithm),
			MaxRetries:   DefaultMaxRetries,
			RetryBackoff: DefaultRetryBackoff,
			Timeout:      DefaultTimeout,
			Concurrency:  DefaultConcurrency,
		},
		Authority: AuthorityConfig{
			Label: DefaultCALabel,
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default, applies environment variable overrides
// and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("CERTSLOT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("CERTSLOT_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if dataDir := os.Getenv("CERTSLOT_DATA_DIR"); dataDir != "" {
		cfg.Storage.Path = dataDir
	}
	if retries := os.Getenv("CERTSLOT_MAX_RETRIES"); retries != "" {
		n, err := strconv.Atoi(retries)
		if err != nil || n < 0 {
			log.Printf("Warning: invalid CERTSLOT_MAX_RETRIES value %q, using %d",
				retries, cfg.Issuance.MaxRetries)
		} else {
			cfg.Issuance.MaxRetries = n
		}
	}

	lib := os.Getenv("PKCS11_LIBRARY")
	pin := os.Getenv("CERTSLOT_PKCS11_PIN")
	for i := range cfg.Slots {
		p := cfg.Slots[i].PKCS11
		if p == nil {
			continue
		}
		if lib != "" {
			p.Library = lib
		}
		if pin != "" {
			p.PIN = pin
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	switch c.Storage.Backend {
	case "memory":
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path must be specified for the file backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %q (must be memory or file)", c.Storage.Backend)
	}

	if _, err := types.ParseAlgorithm(c.Issuance.Algorithm); err != nil {
		return fmt.Errorf("issuance: %w", err)
	}
	if c.Issuance.MaxRetries < 0 {
		return fmt.Errorf("issuance: max_retries must not be negative")
	}
	if c.Issuance.RetryBackoff < 0 || c.Issuance.Timeout < 0 {
		return fmt.Errorf("issuance: durations must not be negative")
	}
	if c.Issuance.Concurrency < 1 {
		return fmt.Errorf("issuance: concurrency must be at least 1")
	}

	if len(c.Slots) == 0 {
		return fmt.Errorf("at least one slot must be configured")
	}
	seen := make(map[string]bool, len(c.Slots))
	for i := range c.Slots {
		s := &c.Slots[i]
		if err := validation.ValidateSlotID(s.ID); err != nil {
			return fmt.Errorf("slot %d: invalid id %q: %w", i, s.ID, err)
		}
		if seen[s.ID] {
			return fmt.Errorf("slot %s: duplicate id", s.ID)
		}
		seen[s.ID] = true
		if s.Timeout < 0 {
			return fmt.Errorf("slot %s: timeout must not be negative", s.ID)
		}
		switch backend.ParseBackendType(s.Type) {
		case backend.BackendTypePKCS8:
		case backend.BackendTypePKCS11:
			if s.PKCS11 == nil {
				return fmt.Errorf("slot %s: pkcs11 settings are required", s.ID)
			}
			if s.PKCS11.Library == "" {
				return fmt.Errorf("slot %s: pkcs11 library is required", s.ID)
			}
		default:
			return fmt.Errorf("slot %s: invalid type %q (must be pkcs8 or pkcs11)", s.ID, s.Type)
		}
	}

	if err := c.Authority.validate(seen); err != nil {
		return fmt.Errorf("authority: %w", err)
	}

	ids := make(map[string]bool, len(c.Certificates))
	for i := range c.Certificates {
		cert := &c.Certificates[i]
		if cert.ID == "" {
			return fmt.Errorf("certificate %d: id is required", i)
		}
		if ids[cert.ID] {
			return fmt.Errorf("certificate %s: duplicate id", cert.ID)
		}
		ids[cert.ID] = true
		if err := cert.validate(seen); err != nil {
			return fmt.Errorf("certificate %s: %w", cert.ID, err)
		}
	}
	return nil
}

func (a *AuthorityConfig) validate(slots map[string]bool) error {
	if !slots[a.Slot] {
		return fmt.Errorf("unknown slot %q", a.Slot)
	}
	if a.Label == "" {
		return fmt.Errorf("label is required")
	}
	if err := validation.ValidateLabel(a.Label); err != nil {
		return err
	}
	if a.Algorithm != "" {
		if _, err := types.ParseAlgorithm(a.Algorithm); err != nil {
			return err
		}
	}
	if _, err := a.Subject.Name(); err != nil {
		return err
	}
	if _, err := ParseSerial(a.Serial); err != nil {
		return err
	}
	if _, err := types.ParseKeyUsage(a.KeyUsage); err != nil {
		return err
	}
	return a.Validity.validate()
}

func (c *CertificateConfig) validate(slots map[string]bool) error {
	if !slots[c.KeySlot] {
		return fmt.Errorf("unknown key slot %q", c.KeySlot)
	}
	if c.DeliverTo != "" && !slots[c.DeliverTo] {
		return fmt.Errorf("unknown deliver_to slot %q", c.DeliverTo)
	}
	for _, label := range []string{c.KeyLabel, c.Label} {
		if label == "" {
			continue
		}
		if err := validation.ValidateLabel(label); err != nil {
			return err
		}
	}
	if _, err := c.Subject.Name(); err != nil {
		return err
	}
	if _, err := ParseSerial(c.Serial); err != nil {
		return err
	}
	if _, err := types.ParseKeyUsage(c.KeyUsage); err != nil {
		return err
	}
	return c.Validity.validate()
}

func (v ValidityConfig) validate() error {
	if v.NotBefore != nil && v.NotAfter != nil && !v.NotAfter.After(*v.NotBefore) {
		return fmt.Errorf("validity: not_after must be after not_before")
	}
	return nil
}

// Slot returns the slot configuration with the given ID.
func (c *Config) Slot(id string) (*SlotConfig, bool) {
	for i := range c.Slots {
		if c.Slots[i].ID == id {
			return &c.Slots[i], true
		}
	}
	return nil, false
}

// Name builds the distinguished name, resolving short attribute names.
func (s Subject) Name() (dn.DistinguishedName, error) {
	attrs := make([]dn.Attribute, len(s))
	for i, a := range s {
		attrs[i] = dn.Attr(dn.ResolveType(a.Type), a.Value)
	}
	return dn.BuildName(attrs...)
}

// Bounds returns the configured bounds, zero when unset.
func (v ValidityConfig) Bounds() (notBefore, notAfter time.Time) {
	if v.NotBefore != nil {
		notBefore = *v.NotBefore
	}
	if v.NotAfter != nil {
		notAfter = *v.NotAfter
	}
	return notBefore, notAfter
}

// ParseSerial decodes a hex serial number, keeping leading zero bytes.
// An empty string yields nil. Colons and spaces are ignored.
func ParseSerial(s string) ([]byte, error) {
	s = strings.NewReplacer(":", "", " ", "").Replace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, nil
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid serial %q: %w", s, err)
	}
	return b, nil
}
