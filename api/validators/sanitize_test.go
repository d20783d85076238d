package validators

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "used calculus book", SanitizeString("  used \t calculus\n\nbook ", 0))
	require.Equal(t, "lamp desk", SanitizeString("lamp\x00desk", 0))
	require.Equal(t, "café", SanitizeString("café au lait", 4))
	require.Equal(t, "ab", SanitizeString("ab cd", 3))
	require.Equal(t, "", SanitizeString(" \r\n ", 10))
}
