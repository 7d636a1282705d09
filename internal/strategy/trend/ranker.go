package trend

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RankCandidate is one instrument competing for a trend rank on a date.
// A nil deviation excludes the instrument from ranking entirely.
type RankCandidate struct {
	Symbol    string
	Deviation *decimal.Decimal
}

// Rank assigns dense ranks 1..N by absolute deviation, descending. Equal
// absolute deviations share a rank; iteration order between equals is lexical
// by symbol so output is deterministic.
func Rank(candidates []RankCandidate) map[string]int {
	ranked := make([]RankCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Deviation != nil {
			ranked = append(ranked, c)
		}
	}
	if len(ranked) == 0 {
		return map[string]int{}
	}

	sort.Slice(ranked, func(i, j int) bool {
		ai := ranked[i].Deviation.Abs()
		aj := ranked[j].Deviation.Abs()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})

	ranks := make(map[string]int, len(ranked))
	rank := 0
	var prev decimal.Decimal
	for i, c := range ranked {
		abs := c.Deviation.Abs()
		if i == 0 || !abs.Equal(prev) {
			rank++
			prev = abs
		}
		ranks[c.Symbol] = rank
	}
	return ranks
}
