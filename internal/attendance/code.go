package attendance

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// CodeAlphabet omits I, O, 1 and 0 so codes survive being read aloud.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of symbols in a session code.
const CodeLength = 6

// CodeGenerator produces candidate session codes.
type CodeGenerator func() (string, error)

// RandomCode draws CodeLength symbols uniformly from CodeAlphabet.
// len(CodeAlphabet) divides 256, so the byte reduction is unbiased.
func RandomCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeCode upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
