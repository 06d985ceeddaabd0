package types

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestUUIDToBytes32RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "id")
		var id uuid.UUID
		copy(id[:], raw)

		encoded := UUIDToBytes32(id)
		require.Equal(t, id[:], encoded[:16])
		require.Equal(t, make([]byte, 16), encoded[16:])

		require.Equal(t, id, Bytes32ToUUID(encoded))
	})
}

func TestParseBytes32RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "root")
		hexStr := "0x" + hex.EncodeToString(raw)

		parsed, err := ParseBytes32(hexStr)
		require.NoError(t, err)
		require.Equal(t, raw, parsed[:])
	})
}

func TestParseBytes32ZeroValues(t *testing.T) {
	zero := [32]byte{}

	for _, input := range []string{
		"",
		"0x",
		"0000000000000000000000000000000000000000000000000000000000000000",
		"0x0000000000000000000000000000000000000000000000000000000000000000",
	} {
		got, err := ParseBytes32(input)
		require.NoError(t, err, input)
		require.Equal(t, zero, got, input)
	}
}

func TestParseBytes32RejectsWrongLength(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 64).Filter(func(n int) bool { return n != 32 }).Draw(t, "n")
		raw := rapid.SliceOfN(rapid.Byte(), n, n).
			Filter(func(b []byte) bool {
				for _, c := range b {
					if c != 0 {
						return true
					}
				}
				return false
			}).
			Draw(t, "raw")

		_, err := ParseBytes32(hex.EncodeToString(raw))
		require.ErrorIs(t, err, ErrInvalidBytes32)
	})
}

func TestParseBytes32RejectsInvalidHex(t *testing.T) {
	_, err := ParseBytes32(strings.Repeat("zz", 32))
	require.ErrorIs(t, err, ErrInvalidBytes32)
}
