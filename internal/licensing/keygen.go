package licensing

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateKey returns a fresh license key: a random UUID, uppercased.
// 122 bits of entropy makes collisions a store-constraint concern only.
func GenerateKey() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ToUpper(id.String()), nil
}

// NormalizeKey maps user-supplied keys onto the stored representation.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
