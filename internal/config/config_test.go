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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-certslot/pkg/backend/pkcs11"
	"github.com/jeremyhahn/go-certslot/pkg/dn"
)

const validConfig = `
logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true

storage:
  backend: "memory"

issuance:
  algorithm: "ecdsa-p384-sha384"
  max_retries: 0
  retry_backoff: "250ms"
  timeout: "5s"
  concurrency: 2

slots:
  - id: "slot-a"
    type: "pkcs8"
  - id: "slot-b"
    type: "pkcs8"
    password: "changeme"
    timeout: "1s"
    ratelimit:
      enabled: true
      ops_per_second: 10
      burst: 2

authority:
  slot: "slot-a"
  label: "root"
  subject:
    - type: "CN"
      value: "CA #1"
  is_ca: true
  key_usage: ["digitalSignature", "keyCertSign"]

certificates:
  - id: "leaf"
    subject:
      - type: "C"
        value: "RU"
      - type: "2.5.4.3"
        value: "Ivanov I.I."
    serial: "0000000000000001"
    key_slot: "slot-b"
    deliver_to: "slot-b"
    validity:
      not_before: 2023-03-01T00:00:00Z
      not_after: 2024-03-01T00:00:00Z
`

// TestLoad_Success tests successful loading of a valid config file
func TestLoad_Success(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(validConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %v, want debug", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Issuance.MaxRetries != 0 {
		t.Errorf("Issuance.MaxRetries = %d, want explicit 0", cfg.Issuance.MaxRetries)
	}
	if cfg.Issuance.RetryBackoff != 250*time.Millisecond {
		t.Errorf("Issuance.RetryBackoff = %v, want 250ms", cfg.Issuance.RetryBackoff)
	}
	if cfg.Issuance.Timeout != 5*time.Second {
		t.Errorf("Issuance.Timeout = %v, want 5s", cfg.Issuance.Timeout)
	}

	if len(cfg.Slots) != 2 {
		t.Fatalf("len(Slots) = %d, want 2", len(cfg.Slots))
	}
	b, ok := cfg.Slot("slot-b")
	if !ok {
		t.Fatal("Slot(slot-b) not found")
	}
	if b.Password != "changeme" || b.Timeout != time.Second {
		t.Errorf("slot-b = %+v", b)
	}
	if b.RateLimit == nil || !b.RateLimit.Enabled || b.RateLimit.Burst != 2 {
		t.Errorf("slot-b ratelimit = %+v", b.RateLimit)
	}
	if _, ok := cfg.Slot("slot-z"); ok {
		t.Error("Slot(slot-z) found, want missing")
	}

	if cfg.Authority.Label != "root" || !cfg.Authority.IsCA {
		t.Errorf("Authority = %+v", cfg.Authority)
	}

	leaf := cfg.Certificates[0]
	name, err := leaf.Subject.Name()
	if err != nil {
		t.Fatalf("Subject.Name() error = %v", err)
	}
	attrs := name.Attributes()
	if attrs[0].Type != dn.OIDCountry || attrs[1].Type != dn.OIDCommonName {
		t.Errorf("subject order = %v", attrs)
	}

	nb, na := leaf.Validity.Bounds()
	if !nb.Equal(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("NotBefore = %v", nb)
	}
	if !na.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("NotAfter = %v", na)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
slots:
  - id: "a"
    type: "software"
authority:
  slot: "a"
  subject:
    - type: "CN"
      value: "CA"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Issuance.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.Issuance.MaxRetries, DefaultMaxRetries)
	}
	if cfg.Issuance.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", cfg.Issuance.Concurrency, DefaultConcurrency)
	}
	if cfg.Authority.Label != DefaultCALabel {
		t.Errorf("Authority.Label = %q, want %q", cfg.Authority.Label, DefaultCALabel)
	}
	if cfg.Storage.Backend != DefaultStorage || cfg.Storage.Path != DefaultDataDir {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	_, na := cfg.Authority.Validity.Bounds()
	if !na.IsZero() {
		t.Errorf("unset NotAfter = %v, want zero", na)
	}
}

// TestLoad_FileNotFound tests loading a non-existent config file
func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("slots: [unterminated"))
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Fatalf("Parse() error = %v, want parse error", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CERTSLOT_LOG_LEVEL", "warn")
	t.Setenv("CERTSLOT_LOG_FORMAT", "json")
	t.Setenv("CERTSLOT_DATA_DIR", "/var/lib/certslot")
	t.Setenv("CERTSLOT_MAX_RETRIES", "5")
	t.Setenv("PKCS11_LIBRARY", "/usr/lib/softhsm/libsofthsm2.so")
	t.Setenv("CERTSLOT_PKCS11_PIN", "1234")

	cfg := Default()
	cfg.Slots = []SlotConfig{
		{ID: "a", Type: "pkcs8"},
		{ID: "hsm", Type: "pkcs11", PKCS11: &pkcs11.Config{Library: "/opt/hsm.so", TokenLabel: "certslot"}},
	}
	applyEnvOverrides(cfg)

	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Storage.Path != "/var/lib/certslot" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Issuance.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.Issuance.MaxRetries)
	}
	p := cfg.Slots[1].PKCS11
	if p.Library != "/usr/lib/softhsm/libsofthsm2.so" || p.PIN != "1234" {
		t.Errorf("pkcs11 = %s", p)
	}
	if cfg.Slots[0].PKCS11 != nil {
		t.Error("pkcs8 slot gained pkcs11 settings")
	}
}

func TestApplyEnvOverrides_InvalidRetries(t *testing.T) {
	t.Setenv("CERTSLOT_MAX_RETRIES", "many")

	cfg := Default()
	applyEnvOverrides(cfg)
	if cfg.Issuance.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.Issuance.MaxRetries, DefaultMaxRetries)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Storage.Backend = "memory"
		cfg.Slots = []SlotConfig{{ID: "a", Type: "pkcs8"}, {ID: "b", Type: "pkcs8"}}
		cfg.Authority.Slot = "a"
		cfg.Authority.Subject = Subject{{Type: "CN", Value: "CA #1"}}
		cfg.Certificates = []CertificateConfig{{
			ID:      "leaf",
			Subject: Subject{{Type: "CN", Value: "leaf"}},
			KeySlot: "b",
		}}
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	before := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "invalid log level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"storage backend", func(c *Config) { c.Storage.Backend = "s3" }, "invalid storage backend"},
		{"storage path", func(c *Config) { c.Storage.Backend = "file"; c.Storage.Path = "" }, "storage path"},
		{"algorithm", func(c *Config) { c.Issuance.Algorithm = "rsa" }, "issuance"},
		{"retries", func(c *Config) { c.Issuance.MaxRetries = -1 }, "max_retries"},
		{"backoff", func(c *Config) { c.Issuance.RetryBackoff = -time.Second }, "durations"},
		{"concurrency", func(c *Config) { c.Issuance.Concurrency = 0 }, "concurrency"},
		{"no slots", func(c *Config) { c.Slots = nil }, "at least one slot"},
		{"slot id", func(c *Config) { c.Slots[0].ID = "bad/id" }, "invalid id"},
		{"duplicate slot", func(c *Config) { c.Slots[1].ID = "a" }, "duplicate id"},
		{"slot type", func(c *Config) { c.Slots[0].Type = "tpm2" }, "invalid type"},
		{"pkcs11 settings", func(c *Config) { c.Slots[0].Type = "pkcs11" }, "pkcs11 settings"},
		{"authority slot", func(c *Config) { c.Authority.Slot = "z" }, "unknown slot"},
		{"authority label", func(c *Config) { c.Authority.Label = "" }, "label is required"},
		{"authority label path", func(c *Config) { c.Authority.Label = "../ca" }, "path traversal"},
		{"certificate label", func(c *Config) { c.Certificates[0].Label = "a b" }, "invalid characters"},
		{"authority subject", func(c *Config) { c.Authority.Subject = nil }, "invalid attribute"},
		{"authority oid", func(c *Config) { c.Authority.Subject[0].Type = "2.5..3" }, "invalid attribute"},
		{"authority serial", func(c *Config) { c.Authority.Serial = "zz" }, "invalid serial"},
		{"authority key usage", func(c *Config) { c.Authority.KeyUsage = []string{"serverAuth"} }, "unknown key usage"},
		{"certificate id", func(c *Config) { c.Certificates[0].ID = "" }, "id is required"},
		{"duplicate certificate", func(c *Config) {
			c.Certificates = append(c.Certificates, c.Certificates[0])
		}, "duplicate id"},
		{"key slot", func(c *Config) { c.Certificates[0].KeySlot = "z" }, "unknown key slot"},
		{"deliver to", func(c *Config) { c.Certificates[0].DeliverTo = "z" }, "unknown deliver_to"},
		{"validity", func(c *Config) {
			c.Certificates[0].Validity = ValidityConfig{NotBefore: &before, NotAfter: &before}
		}, "not_after must be after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestParseSerial(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"", nil},
		{"0000000000000001", []byte{0, 0, 0, 0, 0, 0, 0, 1}},
		{"0x0102", []byte{1, 2}},
		{"01:02:03", []byte{1, 2, 3}},
		{"abc", []byte{0x0a, 0xbc}},
	}
	for _, tt := range tests {
		got, err := ParseSerial(tt.in)
		if err != nil {
			t.Fatalf("ParseSerial(%q) error = %v", tt.in, err)
		}
		if string(got) != string(tt.want) {
			t.Errorf("ParseSerial(%q) = %x, want %x", tt.in, got, tt.want)
		}
	}

	if _, err := ParseSerial("xyz"); err == nil {
		t.Error("ParseSerial(xyz) error = nil, want error")
	}
}
