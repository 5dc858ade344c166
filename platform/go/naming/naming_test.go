package naming

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeDatabaseName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Acme Corp!":    "acme_corp_",
		"acme_corp":     "acme_corp",
		"":              "",
		"ALL CAPS":      "all_caps",
		"a-b.c/d":       "a_b_c_d",
		"already_valid": "already_valid",
	}

	for input, want := range cases {
		require.Equal(t, want, SanitizeDatabaseName(input), "input %q", input)
	}
}

func TestSanitizeDatabaseNameIsIdempotent(t *testing.T) {
	t.Parallel()

	pattern := regexp.MustCompile(`^[a-z0-9_]*$`)
	inputs := []string{"Acme Corp!", "  spaces  ", "ünïcödé", "123", "_", "a-b.c/d"}

	for _, input := range inputs {
		once := SanitizeDatabaseName(input)
		require.Regexp(t, pattern, once)
		require.Equal(t, once, SanitizeDatabaseName(once))
	}
}

func TestDatabaseUserFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, "acme_corp__user", DatabaseUserFor(SanitizeDatabaseName("Acme Corp!")))
}

func TestGeneratePassword(t *testing.T) {
	t.Parallel()

	alphabet := regexp.MustCompile(`^[a-zA-Z]+$`)

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		pw, err := GeneratePassword(DefaultPasswordLength)
		require.NoError(t, err)
		require.Len(t, pw, 12)
		require.Regexp(t, alphabet, pw)

		_, dup := seen[pw]
		require.False(t, dup, "duplicate password after %d draws", i)
		seen[pw] = struct{}{}
	}
}

func TestGeneratePasswordDefaultsLength(t *testing.T) {
	t.Parallel()

	pw, err := GeneratePassword(0)
	require.NoError(t, err)
	require.Len(t, pw, DefaultPasswordLength)
}
