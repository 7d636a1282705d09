package trend

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func devp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestRank(t *testing.T) {
	t.Run("dense rank with ties and a nil deviation", func(t *testing.T) {
		ranks := Rank([]RankCandidate{
			{Symbol: "A", Deviation: devp("0.20")},
			{Symbol: "B", Deviation: devp("-0.20")},
			{Symbol: "C", Deviation: devp("0.05")},
			{Symbol: "D", Deviation: nil},
		})

		assert.Equal(t, 1, ranks["A"])
		assert.Equal(t, 1, ranks["B"])
		assert.Equal(t, 2, ranks["C"])
		_, ranked := ranks["D"]
		assert.False(t, ranked, "nil deviation must stay unranked")
		assert.Len(t, ranks, 3)
	})

	t.Run("descending by absolute value", func(t *testing.T) {
		ranks := Rank([]RankCandidate{
			{Symbol: "SMALL", Deviation: devp("0.01")},
			{Symbol: "BIG", Deviation: devp("-0.30")},
			{Symbol: "MID", Deviation: devp("0.10")},
		})

		assert.Equal(t, 1, ranks["BIG"])
		assert.Equal(t, 2, ranks["MID"])
		assert.Equal(t, 3, ranks["SMALL"])
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		cands := []RankCandidate{
			{Symbol: "Z", Deviation: devp("0.10")},
			{Symbol: "A", Deviation: devp("-0.10")},
			{Symbol: "M", Deviation: devp("0.10")},
		}
		first := Rank(cands)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Rank(cands))
		}
		assert.Equal(t, 1, first["A"])
		assert.Equal(t, 1, first["M"])
		assert.Equal(t, 1, first["Z"])
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Rank(nil))
		assert.Empty(t, Rank([]RankCandidate{{Symbol: "X", Deviation: nil}}))
	})
}
