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

package validation

import (
	"strings"
	"testing"
)

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		wantErr bool
	}{
		{"simple", "ca", false},
		{"with hyphen", "cert-remote", false},
		{"with underscore", "signing_key", false},
		{"with dot", "root.v2", false},
		{"generated", "key-3f2a9c", false},
		{"max length", strings.Repeat("a", 255), false},
		{"empty", "", true},
		{"null byte", "key\x00name", true},
		{"absolute path", "/etc/passwd", true},
		{"path traversal", "../secret", true},
		{"nested traversal", "a/../../b", true},
		{"dot", ".", true},
		{"dot dot", "..", true},
		{"slash", "ca/leaf", true},
		{"backslash", "ca\\leaf", true},
		{"space", "my key", true},
		{"newline", "key\nname", true},
		{"tab", "key\tname", true},
		{"colon", "slot:key", true},
		{"semicolon", "key;rm", true},
		{"del character", "key\x7fname", true},
		{"right-to-left override", "key\u202e", true},
		{"too long", strings.Repeat("a", 256), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabel(tt.label)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLabel(%q) error = %v, wantErr %v", tt.label, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSlotID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "hsm", false},
		{"with hyphen", "slot-a", false},
		{"with underscore", "slot_b", false},
		{"digits", "slot1", false},
		{"max length", strings.Repeat("a", 64), false},
		{"empty", "", true},
		{"uppercase", "SlotA", true},
		{"leading hyphen", "-slot", true},
		{"slash", "bad/id", true},
		{"dot dot", "..", true},
		{"null byte", "slot\x00", true},
		{"newline", "slot\n", true},
		{"quote", "slot' OR '1'='1", true},
		{"too long", strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlotID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSlotID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean string", "CN=CA #1,O=Acme", "CN=CA #1,O=Acme"},
		{"with newline", "CN=a\nlevel=error", "CN=alevel=error"},
		{"with tab", "hello\tworld", "helloworld"},
		{"with null byte", "hello\x00world", "helloworld"},
		{"with del character", "hello\x7fworld", "helloworld"},
		{"with multiple controls", "hello\n\r\t\x00world", "helloworld"},
		{"very long string", strings.Repeat("a", 1500), strings.Repeat("a", 1000) + "...[truncated]"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeForLog(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeForLog(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func BenchmarkValidateLabel(b *testing.B) {
	label := "cert-remote"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ValidateLabel(label)
	}
}

func BenchmarkSanitizeForLog(b *testing.B) {
	input := "CN=Ivanov I.I.,O=Example Org,C=RU"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = SanitizeForLog(input)
	}
}
