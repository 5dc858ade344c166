package naming

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// DefaultPasswordLength matches the length issued for per-tenant database credentials.
const DefaultPasswordLength = 12

var invalidDatabaseChars = regexp.MustCompile(`[^a-z0-9_]`)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// SanitizeDatabaseName canonicalizes a tenant display name into a valid
// document-store database identifier: lowercase, every character outside
// [a-z0-9_] replaced with an underscore. Total and idempotent.
func SanitizeDatabaseName(name string) string {
	return invalidDatabaseChars.ReplaceAllString(strings.ToLower(name), "_")
}

// DatabaseUserFor derives the database principal name for a sanitized database name.
func DatabaseUserFor(sanitized string) string {
	return sanitized + "_user"
}

// GeneratePassword draws length characters uniformly from the Latin-letter
// alphabet using crypto/rand. The result is never derived from tenant input.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		length = DefaultPasswordLength
	}

	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random source: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}

	return string(out), nil
}
