package market_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/stalk-market/internal/market"
)

func TestBuildTable_FirstPhaseBounds(t *testing.T) {
	table := market.BuildTable(100)
	require.Equal(t, 100, table.Buy)

	want := map[market.Pattern][]market.Bound{
		// a=0 starts with the decay stretch, a>0 with the hold.
		market.Fluctuating: {{Lower: 60, Upper: 80}, {Lower: 90, Upper: 140}},
		market.LargeSpike:  {{Lower: 85, Upper: 90}},
		market.Decreasing:  {{Lower: 85, Upper: 90}},
		// peak=0 skips the decay and opens on the shoulder.
		market.SmallSpike: {{Lower: 90, Upper: 140}, {Lower: 40, Upper: 90}},
	}
	for p, bounds := range want {
		tree := table.Trees[p]
		require.NotNil(t, tree, p.String())
		assert.Equal(t, market.Bound{Lower: 100, Upper: 100}, tree.Bound)
		assert.ElementsMatch(t, bounds, tree.Level(0), p.String())
		assert.Equal(t, len(market.VariantFor(p).Combinations), tree.Combinations(), p.String())
	}
	assert.Equal(t, 70, table.Combinations())
}

func TestBuildTable_NonEmptyAcrossBuyPrices(t *testing.T) {
	for buy := market.MinBuyPrice; buy <= market.MaxBuyPrice; buy++ {
		table := market.BuildTable(buy)
		for _, p := range market.Patterns {
			assert.NotEmpty(t, table.Trees[p].Level(0), "%s buy %d", p, buy)
		}
	}
}

func TestBuildTable_DecreasingIsFlatAfterFirstPhase(t *testing.T) {
	tree := market.BuildPatternTable(market.Decreasing, 100)

	assert.Equal(t, []market.Bound{{Lower: 85, Upper: 90}}, tree.Level(0))
	for phase := 1; phase < market.Phases; phase++ {
		assert.Equal(t, []market.Bound{{Lower: 80, Upper: 87}}, tree.Level(phase))
	}
	assert.Nil(t, tree.Level(market.Phases))
	assert.Nil(t, tree.Level(-1))
}

func TestBuildTable_SharesPrefixes(t *testing.T) {
	tree := market.BuildPatternTable(market.LargeSpike, 100)

	// Every large spike opens with the same decay phase.
	require.Len(t, tree.Children, 1)
	assert.Equal(t, 6, tree.Combinations())
}

func TestMatch_NoObservationsKeepsEverything(t *testing.T) {
	table := market.BuildTable(99)
	pred := market.MatchTable(table, market.Observed{})

	for _, p := range market.Patterns {
		res := market.Run(market.VariantFor(p), 99, market.ModeTable, market.Observed{})
		pp := pred.Patterns[p]
		assert.Equal(t, p, pp.Pattern)
		assert.Equal(t, res.Guarantees(), pp.Possible, p.String())
		assert.Zero(t, pp.Pruned)
	}
	assert.Equal(t, 70, pred.Surviving())
}

func TestMatch_PrunesAgainstTableBounds(t *testing.T) {
	tree := market.BuildPatternTable(market.Decreasing, 100)

	var inside market.Observed
	inside[0] = 85
	inside[5] = 80
	pp := tree.Match(inside)
	assert.Len(t, pp.Possible, 1)
	assert.Equal(t, 1, pp.Forecast.Combinations)
	assert.Equal(t, market.Bound{Lower: 80, Upper: 87}, pp.Forecast.Phases[5])

	var outside market.Observed
	outside[0] = 91
	pp = tree.Match(outside)
	assert.Empty(t, pp.Possible)
	assert.Equal(t, 1, pp.Pruned)
}

func TestMatch_AgreesWithTableRun(t *testing.T) {
	var obs market.Observed
	obs[0] = 70

	tree := market.BuildPatternTable(market.Fluctuating, 100)
	pp := tree.Match(obs)

	// Table bounds of phase 0 are fixed per first stretch, so only the
	// combinations that open with the decay stretch admit 70.
	res := market.Run(market.VariantFor(market.Fluctuating), 100, market.ModeTable, market.Observed{})
	want := 0
	for _, o := range res.Outcomes {
		if o.Trajectory[0].Contains(70) {
			want++
			assert.Contains(t, pp.Possible, o.ID)
		}
	}
	assert.Len(t, pp.Possible, want)
	assert.Equal(t, 56-want, pp.Pruned)
}

func TestMatch_NilTree(t *testing.T) {
	var n *market.Node
	pp := n.Match(market.Observed{})

	assert.Empty(t, pp.Possible)
	assert.Zero(t, n.Combinations())
}
