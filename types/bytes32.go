package types

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidBytes32 is returned by ParseBytes32 when the input, after
// stripping an optional "0x" prefix, decodes to something other than
// exactly 32 bytes. Callers that need to surface this through the error
// taxonomy wrap it with errs.NewInvalidBytes32 (Transaction category,
// InvalidBytes32 leaf).
var ErrInvalidBytes32 = errors.New("types: invalid bytes32 length")

// UUIDToBytes32 left-aligns the 16 id bytes into the high 16 bytes of a
// 32-byte word and zero-pads the remaining 16 bytes. This matches the
// registry contract's and sequencer's id encoding exactly.
func UUIDToBytes32(id uuid.UUID) [32]byte {
	var out [32]byte
	copy(out[:16], id[:])
	return out
}

// Bytes32ToUUID recovers the 128-bit identifier from the encoding produced
// by UUIDToBytes32: the first 16 bytes are the id, the low 16 bytes are
// discarded.
func Bytes32ToUUID(b [32]byte) uuid.UUID {
	var id uuid.UUID
	copy(id[:], b[:16])
	return id
}

// ParseBytes32 parses a hex root string into 32 raw bytes. "" and any
// all-ASCII-zero hex string (after stripping an optional "0x" prefix) are
// treated as the zero root. Any other input whose decoded length isn't
// exactly 32 bytes is rejected with ErrInvalidBytes32.
func ParseBytes32(hexStr string) ([32]byte, error) {
	var out [32]byte

	s := strings.TrimPrefix(hexStr, "0x")
	if s == "" || isAllZero(s) {
		return out, nil
	}

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, ErrInvalidBytes32
	}
	if len(decoded) != 32 {
		return out, ErrInvalidBytes32
	}

	copy(out[:], decoded)
	return out, nil
}

func isAllZero(s string) bool {
	for _, c := range s {
		if c != '0' {
			return false
		}
	}
	return true
}
