// Copyright 2026 The Poolvote Authors
// This file is part of Poolvote.
//
// Poolvote is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Poolvote is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Poolvote. If not, see <http://www.gnu.org/licenses/>.

package common

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the expected length of an account address in bytes.
const AddressLength = 20

// Address identifies a depositor account. It follows the 20-byte
// convention of EVM-style account identifiers.
type Address [AddressLength]byte

// HexToAddress parses a hex string (with or without 0x prefix) into an
// Address. Input shorter than 20 bytes is left-padded with zeros, longer
// input keeps its rightmost 20 bytes.
func HexToAddress(s string) Address {
	var a Address
	a.SetBytes(fromHex(s))
	return a
}

// ParseAddress is the strict variant of HexToAddress: the input must be
// exactly 20 hex-encoded bytes.
func ParseAddress(s string) (Address, error) {
	b := fromHex(s)
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("invalid address %q: want %d bytes, got %d", s, AddressLength, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

func fromHex(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// SetBytes sets the address to the value of b. If b is larger than 20
// bytes, b will be cropped from the left.
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the 0x-prefixed lowercase hex encoding of the address.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is the all-zero address.
func (a Address) IsZero() bool { return a == Address{} }

// Cmp compares two addresses bytewise, returning -1, 0 or 1.
func (a Address) Cmp(other Address) int { return bytes.Compare(a[:], other[:]) }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(input []byte) error {
	parsed, err := ParseAddress(string(input))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
