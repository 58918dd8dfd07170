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

// Package validation checks user-supplied slot IDs and object labels
// before they reach a provider or a storage path.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	maxLabelLength  = 255
	maxSlotIDLength = 64
	maxLogLength    = 1000
)

var (
	// slotIDPattern matches lowercase alphanumerics, hyphens and underscores
	slotIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]*$`)

	labelPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
)

// ValidateLabel validates a key or certificate label. Labels become file
// names in the storage layer, so path separators, parent directory
// references, control characters and anything outside [a-zA-Z0-9_-.]
// are rejected.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("label cannot be empty")
	}

	if strings.Contains(label, "\x00") {
		return fmt.Errorf("label contains null byte")
	}

	// Check length before the pattern (prevent ReDoS)
	if len(label) > maxLabelLength {
		return fmt.Errorf("label too long (max %d characters)", maxLabelLength)
	}

	if filepath.IsAbs(label) {
		return fmt.Errorf("label cannot be an absolute path")
	}

	cleaned := filepath.Clean(label)
	if label == "." || strings.HasPrefix(cleaned, "..") || strings.Contains(cleaned, string(filepath.Separator)+"..") {
		return fmt.Errorf("label contains path traversal attempt")
	}

	if hasControl(label) {
		return fmt.Errorf("label contains control characters")
	}

	if !labelPattern.MatchString(label) {
		return fmt.Errorf("label contains invalid characters (allowed: a-z, A-Z, 0-9, -, _, .)")
	}

	return nil
}

// ValidateSlotID validates a slot identifier.
// Slot IDs must be simple lowercase identifiers.
func ValidateSlotID(id string) error {
	if id == "" {
		return fmt.Errorf("slot ID cannot be empty")
	}

	if len(id) > maxSlotIDLength {
		return fmt.Errorf("slot ID too long (max %d characters)", maxSlotIDLength)
	}

	if hasControl(id) {
		return fmt.Errorf("slot ID contains control characters")
	}

	if !slotIDPattern.MatchString(id) {
		return fmt.Errorf("slot ID contains invalid characters (allowed: a-z, 0-9, -, _)")
	}

	return nil
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > maxLogLength {
		s = s[:maxLogLength] + "...[truncated]"
	}

	return s
}

func hasControl(s string) bool {
	for _, r := range s {
		if r < 32 || r == 127 {
			return true
		}
	}
	return false
}
