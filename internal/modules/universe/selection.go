package universe

import (
	"math/rand"
	"sort"
)

// SampleSymbols draws up to n distinct symbols from candidates with the
// supplied RNG. A sector with fewer candidates than requested yields all of
// them (the per-sector cap). The result is sorted so downstream iteration
// order never depends on draw order.
//
// The draw is fully determined by the RNG state and the candidate order, so a
// fixed seed reproduces the exact symbol set.
func SampleSymbols(rng *rand.Rand, candidates []string, n int) []string {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}

	if len(candidates) <= n {
		picked := make([]string, len(candidates))
		copy(picked, candidates)
		sort.Strings(picked)
		return picked
	}

	perm := rng.Perm(len(candidates))
	picked := make([]string, 0, n)
	for _, idx := range perm[:n] {
		picked = append(picked, candidates[idx])
	}
	sort.Strings(picked)
	return picked
}

// NextCandidate returns the first candidate not yet in used. This is the
// substitution rule for symbols rejected on insufficient data: with the
// catalog's alphabetical ordering it always yields the same replacement for
// the same rejection history.
func NextCandidate(candidates []string, used map[string]bool) (string, bool) {
	for _, symbol := range candidates {
		if !used[symbol] {
			return symbol, true
		}
	}
	return "", false
}
