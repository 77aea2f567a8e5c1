package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// PasscodeLength is the number of digits in a reset passcode.
const PasscodeLength = 6

// GeneratePasscode returns a fixed-length numeric code from crypto/rand.
// Codes only need to be unique per (user, validity window); collisions
// across users are fine.
func GeneratePasscode() (string, error) {
	digits := make([]byte, PasscodeLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate passcode digit: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
