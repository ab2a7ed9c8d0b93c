// Package sample draws synthetic weeks of turnip prices using layered simplex noise.
// Each price is drawn inside the bound its own combination allows, so a
// sampled week is always consistent with the pattern that produced it.
package sample

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/stalk-market/internal/market"
)

// Config holds sampling parameters.
type Config struct {
	Pattern int   // -1 = any pattern
	Buy     int   // 0 = any buy price
	Seed    int64 // 0 = random
}

// Week is one sampled week.
type Week struct {
	Pattern     market.Pattern  `json:"pattern"`
	Buy         int             `json:"buy_price"`
	Combination string          `json:"combination"`
	Seed        int64           `json:"seed"`
	Prices      market.Observed `json:"prices"`
}

// Upto returns the prices of the first n phases, the rest unknown.
func (w Week) Upto(n int) market.Observed {
	var o market.Observed
	for i := 0; i < n && i < market.Phases; i++ {
		o[i] = w.Prices[i]
	}
	return o
}

// Draw samples a week according to cfg.
func Draw(cfg Config) Week {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	p := market.Pattern(cfg.Pattern)
	if !p.Valid() {
		p = market.Patterns[rng.Intn(market.PatternCount)]
	}
	buy := cfg.Buy
	if market.ValidateBuy(buy) != nil {
		buy = market.MinBuyPrice + rng.Intn(market.MaxBuyPrice-market.MinBuyPrice+1)
	}
	return sampleWeek(p, buy, seed, rng)
}

// Sample draws a week of pattern p at buy. The same seed gives the same week.
func Sample(p market.Pattern, buy int, seed int64) Week {
	return sampleWeek(p, buy, seed, rand.New(rand.NewSource(seed)))
}

func sampleWeek(p market.Pattern, buy int, seed int64, rng *rand.Rand) Week {
	v := market.VariantFor(p)
	idx := rng.Intn(len(v.Combinations))
	c := v.Combinations[idx]

	// The pick is a single combination, so no observations leaves exactly one outcome.
	one := v
	one.Combinations = []market.Combination{c}
	out := market.Run(one, buy, market.ModePredict, market.Observed{}).Outcomes[0]

	noise := opensimplex.NewNormalized(seed)
	w := Week{Pattern: p, Buy: buy, Combination: c.ID, Seed: seed}
	for phase, b := range out.Trajectory {
		n := octaveNoise(noise, float64(phase), float64(idx), 3, 0.35, 0.5)
		w.Prices[phase] = pick(b, n)
	}
	return w
}

// pick maps n in [0,1) onto an integer inside b.
func pick(b market.Bound, n float64) int {
	span := b.Upper - b.Lower + 1
	v := b.Lower + int(math.Floor(n*float64(span)))
	if v > b.Upper {
		v = b.Upper
	}
	if v < b.Lower {
		v = b.Lower
	}
	return v
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
