package universe

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSymbolsDeterministic(t *testing.T) {
	candidates := []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF", "GGG"}

	first := SampleSymbols(rand.New(rand.NewSource(42)), candidates, 3)
	second := SampleSymbols(rand.New(rand.NewSource(42)), candidates, 3)
	assert.Equal(t, first, second, "same seed must draw the same symbols")

	other := SampleSymbols(rand.New(rand.NewSource(43)), candidates, 3)
	assert.Len(t, other, 3)
}

func TestSampleSymbolsDistinctAndSorted(t *testing.T) {
	candidates := []string{"ZZZ", "AAA", "MMM", "BBB", "QQQ"}

	picked := SampleSymbols(rand.New(rand.NewSource(7)), candidates, 4)
	require.Len(t, picked, 4)

	seen := make(map[string]bool)
	for i, s := range picked {
		assert.False(t, seen[s], "duplicate draw %s", s)
		seen[s] = true
		if i > 0 {
			assert.Less(t, picked[i-1], s, "draw must come back sorted")
		}
	}
}

func TestSampleSymbolsCapsAtAvailable(t *testing.T) {
	candidates := []string{"BBB", "AAA"}

	picked := SampleSymbols(rand.New(rand.NewSource(1)), candidates, 5)
	assert.Equal(t, []string{"AAA", "BBB"}, picked, "thin sector yields all candidates, no error")
}

func TestSampleSymbolsEmpty(t *testing.T) {
	assert.Nil(t, SampleSymbols(rand.New(rand.NewSource(1)), nil, 3))
	assert.Nil(t, SampleSymbols(rand.New(rand.NewSource(1)), []string{"AAA"}, 0))
}

func TestNextCandidate(t *testing.T) {
	candidates := []string{"AAA", "BBB", "CCC"}

	got, ok := NextCandidate(candidates, map[string]bool{"AAA": true})
	require.True(t, ok)
	assert.Equal(t, "BBB", got)

	got, ok = NextCandidate(candidates, map[string]bool{})
	require.True(t, ok)
	assert.Equal(t, "AAA", got)

	_, ok = NextCandidate(candidates, map[string]bool{"AAA": true, "BBB": true, "CCC": true})
	assert.False(t, ok, "exhausted sector has no candidate")
}
