package selection

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeTrimsPunctuation(t *testing.T) {
	tokens := Tokenize("¿Qué pasa, amigo? (nada)")
	require.Equal(t, []string{"Qué", "pasa", "amigo", "nada"}, tokens)

	require.Empty(t, Tokenize("   "))
	require.Empty(t, Tokenize("... !!!"))
}

func TestResolveTokenExactMatch(t *testing.T) {
	idx, ok := ResolveToken("No hay mal que por bien no venga", "mal", 0)
	require.True(t, ok)
	require.Equal(t, 2, idx)
}

func TestResolveTokenPrefersOccurrenceNearHint(t *testing.T) {
	text := "La casa de la esquina era la más antigua"

	idx, ok := ResolveToken(text, "la", 0)
	require.True(t, ok)
	require.Equal(t, 0, idx)

	idx, ok = ResolveToken(text, "la", 4)
	require.True(t, ok)
	require.Equal(t, 3, idx)

	idx, ok = ResolveToken(text, "la", 7)
	require.True(t, ok)
	require.Equal(t, 6, idx)
}

func TestResolveTokenFuzzyMatchWithinDistance(t *testing.T) {
	// One trailing character of drift still resolves.
	idx, ok := ResolveToken("No hay mal que por bien no venga", "venga.", 7)
	require.True(t, ok)
	require.Equal(t, 7, idx)
}

func TestResolveTokenRefusesDistantWords(t *testing.T) {
	_, ok := ResolveToken("No hay mal que por bien no venga", "zanahoria", 0)
	require.False(t, ok)

	// Short words must not fuzzy-match everything.
	_, ok = ResolveToken("uno dos tres", "xy", 0)
	require.False(t, ok)
}
