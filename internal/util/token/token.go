// Package token generates opaque random identifiers, such as session IDs,
// encoded with Crockford's base32 alphabet in lowercase.
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSize is returned when a token of zero or negative size is requested.
var ErrInvalidSize = errors.New("invalid token size")

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz" // Crockford's base32, lowercase

// New returns size random bytes from crypto/rand, encoded.
func New(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return Encode(buf), nil
}

// Encode encodes a byte slice with Crockford's base32 alphabet, without padding.
func Encode(input []byte) string {
	var (
		result strings.Builder
		bits   uint
		accum  uint
	)

	result.Grow((len(input)*8 + 4) / 5)

	for _, b := range input {
		accum = accum<<8 | uint(b)
		bits += 8

		for bits >= 5 {
			bits -= 5
			result.WriteByte(alphabet[(accum>>bits)&0x1F])
		}
	}

	if bits > 0 {
		result.WriteByte(alphabet[(accum<<(5-bits))&0x1F])
	}

	return result.String()
}

// EncodedLen returns the length of Encode's output for n input bytes.
func EncodedLen(n int) int {
	return (n*8 + 4) / 5
}

// Valid reports whether s looks like a token of size bytes produced by New.
// It lets callers reject malformed input before it reaches storage.
func Valid(s string, size int) bool {
	if len(s) != EncodedLen(size) {
		return false
	}

	for i := range len(s) {
		if strings.IndexByte(alphabet, s[i]) < 0 {
			return false
		}
	}

	return true
}
