package attendance

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet avoids 0/O and 1/I so codes read back unambiguously. Its
// length divides 256, so byte sampling carries no modulo bias.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 8

// NewSessionCode returns a crypto-random session code. Uniqueness is owned
// by the database; collisions surface as key conflicts and the caller
// regenerates.
func NewSessionCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session code: %w", err)
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}
