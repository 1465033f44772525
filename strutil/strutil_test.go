package strutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePattern(t *testing.T) {
	pat, ok := ParsePattern("48 8B ?? ?? E8")
	require.True(t, ok)
	require.Equal(t, []int{0x48, 0x8B, Wildcard, Wildcard, 0xE8}, pat)
}

func TestParsePatternInvalid(t *testing.T) {
	_, ok := ParsePattern("48 ZZ")
	require.False(t, ok)
}

func TestMatchAt(t *testing.T) {
	pat, ok := ParsePattern("48 8B ?? ?? E8")
	require.True(t, ok)

	buf := []byte{0x00, 0x48, 0x8B, 0x11, 0x22, 0xE8, 0x00}
	require.True(t, MatchAt(buf, pat, 1))
	require.False(t, MatchAt(buf, pat, 0))
	require.False(t, MatchAt(buf, pat, len(buf)-1))
}
