package rules

import (
	"github.com/opensource-finance/laftscreen/internal/domain"
)

// PairCount is the number of unordered pairs of distinct rules.
const PairCount = domain.RuleCount * (domain.RuleCount - 1) / 2

var pairs = buildPairs()

func buildPairs() []domain.RulePair {
	out := make([]domain.RulePair, 0, PairCount)
	for a := domain.RuleID(1); a <= domain.RuleCount; a++ {
		for b := a + 1; b <= domain.RuleCount; b++ {
			out = append(out, domain.RulePair{A: a, B: b})
		}
	}
	return out
}

// Pairs returns every rule pair in canonical order: (1,2), (1,3) ... (19,20).
func Pairs() []domain.RulePair {
	out := make([]domain.RulePair, len(pairs))
	copy(out, pairs)
	return out
}

// PairIndex returns the position of p in canonical order, or -1.
func PairIndex(p domain.RulePair) int {
	a, b := int(p.A), int(p.B)
	if !p.A.Valid() || !p.B.Valid() || a >= b {
		return -1
	}
	// Pairs starting below a occupy (a-1) rows of shrinking length.
	n := domain.RuleCount
	before := (a - 1) * (2*n - a) / 2
	return before + (b - a - 1)
}

// Expand computes every combination flag of a rule vector, aligned with
// Pairs. Each flag is the AND of its two rules.
func Expand(v domain.RuleVector) []bool {
	out := make([]bool, len(pairs))
	for i, p := range pairs {
		out[i] = v.Get(p.A) && v.Get(p.B)
	}
	return out
}

// Combination reports the flag for pair p from an expanded slice.
func Combination(flags []bool, p domain.RulePair) bool {
	i := PairIndex(p)
	if i < 0 || i >= len(flags) {
		return false
	}
	return flags[i]
}
