package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintIsStable(t *testing.T) {
	first, err := Fingerprint()
	if err != nil {
		// Machines without any readable hardware identity must get an
		// explicit error, never a shared placeholder value.
		assert.ErrorIs(t, err, ErrNoHardwareIdentity)
		assert.Empty(t, first)
		t.Skip("no hardware identity available on this machine")
	}

	require.NotEmpty(t, first)
	assert.Len(t, first, 32) // hex of a truncated sha256 digest

	second, err := Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
