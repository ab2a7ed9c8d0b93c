package market_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/stalk-market/internal/market"
)

func TestVariant_SearchSpaceSizes(t *testing.T) {
	want := map[market.Pattern]int{
		market.Fluctuating: 56,
		market.LargeSpike:  6,
		market.Decreasing:  1,
		market.SmallSpike:  7,
	}
	for p, n := range want {
		assert.Len(t, market.VariantFor(p).Combinations, n, p.String())
	}
}

func TestVariant_CombinationsCoverTheWeek(t *testing.T) {
	for _, p := range market.Patterns {
		seen := make(map[string]bool)
		for _, c := range market.VariantFor(p).Combinations {
			assert.Equal(t, market.Phases, c.Phases(), "%s combination %s", p, c.ID)
			assert.False(t, seen[c.ID], "duplicate id %s in %s", c.ID, p)
			seen[c.ID] = true
			for _, st := range c.Steps {
				assert.GreaterOrEqual(t, st.Loops, 0)
			}
		}
	}
}

func TestVariant_FluctuatingOrderedByFirstHold(t *testing.T) {
	v := market.VariantFor(market.Fluctuating)
	require.True(t, v.AbortOnFirst)

	prev := 0
	for _, c := range v.Combinations {
		require.Equal(t, market.OpHold, c.Steps[0].Op)
		assert.GreaterOrEqual(t, c.Steps[0].Loops, prev)
		prev = c.Steps[0].Loops
	}
}

func TestVariant_FluctuatingIdentifiers(t *testing.T) {
	v := market.VariantFor(market.Fluctuating)

	assert.Equal(t, "02723", v.Combinations[0].ID)
	assert.Equal(t, "63120", v.Combinations[len(v.Combinations)-1].ID)
}

func TestVariant_OnlySmallSpikeDisplaces(t *testing.T) {
	for _, p := range market.Patterns {
		displaced := false
		for _, c := range market.VariantFor(p).Combinations {
			for _, st := range c.Steps {
				if st.Displacement != 0 {
					displaced = true
					assert.Equal(t, market.OpHold, st.Op)
					assert.Equal(t, 3, st.Loops)
				}
			}
		}
		assert.Equal(t, p == market.SmallSpike, displaced, p.String())
	}
}

func TestVariantFor_UnknownPanics(t *testing.T) {
	assert.Panics(t, func() { market.VariantFor(market.Pattern(9)) })
}

func TestPattern_String(t *testing.T) {
	assert.Equal(t, "fluctuating", market.Fluctuating.String())
	assert.Equal(t, "small_spike", market.SmallSpike.String())
	assert.Equal(t, "pattern(7)", market.Pattern(7).String())
}
