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

package pkcs11

import (
	"fmt"
	"os"
	"strings"

	"github.com/jeremyhahn/go-certslot/pkg/backend"
	"github.com/jeremyhahn/go-certslot/pkg/storage"
)

// Config selects a token and how to log in to it.
type Config struct {
	// SlotID names this slot inside the engine.
	SlotID string `yaml:"-" json:"-" mapstructure:"-"`

	// Library is the path to the PKCS#11 library file.
	// Examples:
	//   - /usr/lib/softhsm/libsofthsm2.so (SoftHSM)
	//   - /usr/lib/libykcs11.so (YubiKey)
	Library string `yaml:"library" json:"library" mapstructure:"library"`

	// LibraryConfig is exported as SOFTHSM2_CONF before the library loads
	// when set.
	LibraryConfig string `yaml:"config,omitempty" json:"config,omitempty" mapstructure:"config"`

	// TokenLabel is the label of the PKCS#11 token to use.
	TokenLabel string `yaml:"token_label" json:"token_label" mapstructure:"token_label"`

	// Slot is the token slot number. Used when TokenLabel is empty.
	Slot *int `yaml:"slot,omitempty" json:"slot,omitempty" mapstructure:"slot"`

	// PIN is the user PIN for the token.
	PIN string `yaml:"pin,omitempty" json:"-" mapstructure:"pin"`

	// SOPIN is the Security Officer PIN, only needed by Initialize.
	SOPIN string `yaml:"so_pin,omitempty" json:"-" mapstructure:"so_pin"`
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", backend.ErrInvalidConfig)
	}
	if err := storage.ValidateID(c.SlotID); err != nil {
		return fmt.Errorf("%w: slot id %q", backend.ErrInvalidConfig, c.SlotID)
	}
	if c.Library == "" {
		return fmt.Errorf("%w: library path is required", backend.ErrInvalidConfig)
	}
	if _, err := os.Stat(c.Library); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrLibraryNotFound, c.Library)
	}
	if c.TokenLabel == "" && c.Slot == nil {
		return fmt.Errorf("%w: token label or slot number is required", backend.ErrInvalidConfig)
	}
	if c.PIN == "" {
		return ErrInvalidUserPIN
	}
	if len(c.PIN) < 4 {
		return ErrInvalidPINLength
	}
	if c.SOPIN != "" && len(c.SOPIN) < 4 {
		return ErrInvalidSOPINLength
	}
	return nil
}

// IsSoftHSM reports whether the library is SoftHSM.
func (c *Config) IsSoftHSM() bool {
	return strings.Contains(c.Library, "libsofthsm")
}

// String describes the configuration with PINs masked.
func (c *Config) String() string {
	pinMask := "****"
	if c.PIN == "" {
		pinMask = "<not set>"
	}
	sopinMask := "****"
	if c.SOPIN == "" {
		sopinMask = "<not set>"
	}

	slot := "<not set>"
	if c.Slot != nil {
		slot = fmt.Sprintf("%d", *c.Slot)
	}

	return fmt.Sprintf("PKCS#11 Config{SlotID: %s, Library: %s, TokenLabel: %s, Slot: %s, PIN: %s, SOPIN: %s}",
		c.SlotID, c.Library, c.TokenLabel, slot, pinMask, sopinMask)
}

// SoftHSMConfig returns a softhsm2.conf body storing tokens in tokenDir.
func SoftHSMConfig(tokenDir string) string {
	return fmt.Sprintf(`# SoftHSM v2 configuration file

directories.tokendir = %s
objectstore.backend = file
objectstore.umask = 0077

# ERROR, WARNING, INFO, DEBUG
log.level = ERROR

slots.removable = false
slots.mechanisms = ALL
library.reset_on_fork = false
`, tokenDir)
}
