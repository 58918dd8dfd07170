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

package types

import (
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKeyUsage is returned when a key usage name is not recognized.
var ErrUnknownKeyUsage = errors.New("types: unknown key usage")

// keyUsageNames lists usages in RFC 5280 bit order.
var keyUsageNames = []struct {
	name  string
	usage x509.KeyUsage
}{
	{"digitalSignature", x509.KeyUsageDigitalSignature},
	{"contentCommitment", x509.KeyUsageContentCommitment},
	{"keyEncipherment", x509.KeyUsageKeyEncipherment},
	{"dataEncipherment", x509.KeyUsageDataEncipherment},
	{"keyAgreement", x509.KeyUsageKeyAgreement},
	{"keyCertSign", x509.KeyUsageCertSign},
	{"cRLSign", x509.KeyUsageCRLSign},
	{"encipherOnly", x509.KeyUsageEncipherOnly},
	{"decipherOnly", x509.KeyUsageDecipherOnly},
}

// ParseKeyUsage combines key usage names into a flag set.
// Names are matched case-insensitively; "nonRepudiation" is accepted as an
// alias for contentCommitment.
func ParseKeyUsage(names []string) (x509.KeyUsage, error) {
	var usage x509.KeyUsage
	for _, name := range names {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "nonrepudiation" {
			n = "contentcommitment"
		}
		found := false
		for _, ku := range keyUsageNames {
			if strings.ToLower(ku.name) == n {
				usage |= ku.usage
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %s", ErrUnknownKeyUsage, name)
		}
	}
	return usage, nil
}

// KeyUsageNames returns the names of the flags set in usage, in bit order.
func KeyUsageNames(usage x509.KeyUsage) []string {
	names := make([]string, 0, len(keyUsageNames))
	for _, ku := range keyUsageNames {
		if usage&ku.usage != 0 {
			names = append(names, ku.name)
		}
	}
	return names
}
