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

package certbuilder

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"
)

// SerialLength is the size of a generated serial number in bytes.
const SerialLength = 10

// maxSerialLength is the RFC 5280 limit on serial number octets.
const maxSerialLength = 20

// ResolveSerial returns the serial number to use. An explicit serial is
// read as a big-endian unsigned integer, so leading zero bytes carry no
// weight. Without one, SerialLength random bytes are drawn from r until the
// value is non-zero. A nil r means crypto/rand.
func ResolveSerial(serial []byte, r io.Reader) (*big.Int, error) {
	if len(serial) > 0 {
		n := new(big.Int).SetBytes(serial)
		if n.Sign() == 0 {
			return nil, fmt.Errorf("%w: serial is zero", ErrInvalidSerial)
		}
		if len(n.Bytes()) > maxSerialLength {
			return nil, fmt.Errorf("%w: serial exceeds %d octets", ErrInvalidSerial, maxSerialLength)
		}
		return n, nil
	}

	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, SerialLength)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("certbuilder: read serial: %w", err)
		}
		n := new(big.Int).SetBytes(buf)
		if n.Sign() != 0 {
			return n, nil
		}
	}
}

// ResolveNotBefore returns t, or now when t is zero, in UTC truncated to
// whole seconds.
func ResolveNotBefore(t, now time.Time) time.Time {
	if t.IsZero() {
		t = now
	}
	return t.UTC().Truncate(time.Second)
}

// ResolveNotAfter returns notAfter, or AddOneYear(notBefore) when notAfter
// is zero, in UTC truncated to whole seconds.
func ResolveNotAfter(notBefore, notAfter time.Time) time.Time {
	if notAfter.IsZero() {
		notAfter = AddOneYear(notBefore)
	}
	return notAfter.UTC().Truncate(time.Second)
}

// AddOneYear adds one calendar year. February 29 rolls over to March 1.
func AddOneYear(t time.Time) time.Time {
	return t.AddDate(1, 0, 0)
}
