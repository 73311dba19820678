package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeLength is the number of digits in a login code.
const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a zero-padded six digit code drawn uniformly from
// [000000, 999999] using crypto/rand. A failing entropy source is treated as
// fatal.
func GenerateCode() string {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		panic(fmt.Sprintf("services: read random code: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// ValidCodeFormat reports whether code is exactly six ASCII digits.
func ValidCodeFormat(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
