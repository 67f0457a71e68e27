package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of a ledger account address
const AddressLength = 20

// Address identifies a ledger account. The zero value is the designated
// unspendable address: it may receive units (burn) but is rejected wherever
// a spendable destination is required.
type Address [AddressLength]byte

// ZeroAddress is the unspendable burn destination
var ZeroAddress = Address{}

// ParseAddress decodes a hex-encoded address, with or without the 0x prefix
func ParseAddress(s string) (Address, error) {
	var a Address
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != AddressLength {
		return a, fmt.Errorf("invalid address %q: got %d bytes, want %d", s, len(raw), AddressLength)
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress parses a hex address and panics on invalid input.
// Intended for fixtures and genesis wiring only.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Hex returns the 0x-prefixed lowercase hex encoding
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// String implements fmt.Stringer
func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is the unspendable zero address
func (a Address) IsZero() bool { return a == ZeroAddress }

// MarshalText encodes the address as its hex form for JSON and map keys
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText decodes a hex-encoded address
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
