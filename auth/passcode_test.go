package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratePasscodeShape(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		code, err := GeneratePasscode()
		require.NoError(t, err)
		require.Len(t, code, PasscodeLength)
		for _, c := range code {
			require.True(t, c >= '0' && c <= '9', "passcode must be numeric, got %q", code)
		}
	}
}

func TestGeneratePasscodeVaries(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GeneratePasscode()
		require.NoError(t, err)
		seen[code] = true
	}
	// 50 draws from a million-value space colliding down to a handful would
	// mean the random source is broken.
	require.Greater(t, len(seen), 40)
}
