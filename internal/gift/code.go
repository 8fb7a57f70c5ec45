package gift

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// codeAlphabet omits characters that are easy to misread (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	// CodeLength is the length of minted gift codes.
	CodeLength    = 10
	minCodeLength = 8
)

// generateCode returns a random code drawn from codeAlphabet.
func generateCode(length int) (string, error) {
	if length < minCodeLength {
		return "", fmt.Errorf("gift: code length %d below %d", length, minCodeLength)
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// 256 is a multiple of len(codeAlphabet), so the modulo is unbiased.
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
