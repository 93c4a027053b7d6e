package licensing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)

		assert.Len(t, key, 36)
		assert.Equal(t, strings.ToUpper(key), key)
		assert.False(t, seen[key], "duplicate key generated")
		seen[key] = true
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "ABC-DEF", NormalizeKey("  abc-def "))
	assert.Equal(t, "ABC-DEF", NormalizeKey("ABC-DEF"))
}
