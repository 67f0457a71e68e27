package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	hex := "0x00112233445566778899aabbccddeeff00112233"

	a, err := ParseAddress(hex)
	require.NoError(t, err)
	assert.Equal(t, hex, a.Hex())

	// The 0x prefix is optional.
	b, err := ParseAddress("00112233445566778899aabbccddeeff00112233")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = ParseAddress("0x1234")
	assert.Error(t, err)

	_, err = ParseAddress("0xzz112233445566778899aabbccddeeff00112233")
	assert.Error(t, err)
}

func TestAddress_IsZero(t *testing.T) {
	assert.True(t, ZeroAddress.IsZero())
	assert.False(t, MustParseAddress("0x0000000000000000000000000000000000000001").IsZero())
}

func TestAddress_JSONRoundTrip(t *testing.T) {
	a := MustParseAddress("0xd00d00000000000000000000000000000000beef")

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"0xd00d00000000000000000000000000000000beef"`, string(raw))

	var back Address
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, a, back)

	// Addresses work as JSON map keys via the text encoding.
	m := map[Address]string{a: "holder"}
	raw, err = json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(raw), a.Hex())
}
