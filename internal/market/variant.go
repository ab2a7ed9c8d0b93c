package market

import (
	"fmt"
	"strconv"

	"github.com/talgya/stalk-market/internal/coef"
)

// Pattern identifies one of the four weekly price patterns.
type Pattern uint8

const (
	Fluctuating Pattern = iota // high, decreasing, high, decreasing, high
	LargeSpike                 // decreasing middle, high spike, random low
	Decreasing                 // consistently decreasing
	SmallSpike                 // decreasing, spike, decreasing
)

// PatternCount is the number of patterns.
const PatternCount = 4

// Patterns lists every pattern in index order.
var Patterns = [PatternCount]Pattern{Fluctuating, LargeSpike, Decreasing, SmallSpike}

func (p Pattern) String() string {
	switch p {
	case Fluctuating:
		return "fluctuating"
	case LargeSpike:
		return "large_spike"
	case Decreasing:
		return "decreasing"
	case SmallSpike:
		return "small_spike"
	}
	return "pattern(" + strconv.Itoa(int(p)) + ")"
}

// Valid reports whether p is one of the four patterns.
func (p Pattern) Valid() bool { return p < PatternCount }

// Op is the kind of a stretch.
type Op uint8

const (
	OpHold Op = iota
	OpShrink
)

// Step is one stretch of a combination. A hold step with a zero Spread uses
// the variant's default spread.
type Step struct {
	Op           Op
	Loops        int
	Spread       Spread
	Displacement int
}

// Combination is one concrete split of the week into stretches.
type Combination struct {
	ID    string
	Steps []Step
}

// Phases returns the number of phases the combination covers.
func (c Combination) Phases() int {
	n := 0
	for _, s := range c.Steps {
		n += s.Loops
	}
	return n
}

// Variant describes one pattern: its coefficients and its search space.
// Combinations are shared between callers and must not be modified.
type Variant struct {
	Pattern Pattern
	Decay   Decay
	Spread  Spread

	// AbortOnFirst stops the whole search when the first stretch of a
	// combination is rejected. Only valid when combinations are ordered so
	// that every later combination repeats that rejected prefix.
	AbortOnFirst bool

	Combinations []Combination
}

var variants = [PatternCount]Variant{
	fluctuatingVariant(),
	largeSpikeVariant(),
	decreasingVariant(),
	smallSpikeVariant(),
}

// VariantFor returns the descriptor of p. It panics on an unknown pattern.
func VariantFor(p Pattern) Variant {
	if !p.Valid() {
		panic(fmt.Sprintf("market: unknown pattern %d", p))
	}
	return variants[p]
}

var baseDecay = Decay{
	Upper:    coef.DecUpper,
	Lower:    coef.DecLower,
	Constant: coef.ConstantDecrease,
	Random:   coef.RandomDecrease,
}

func hold(n int) Step   { return Step{Op: OpHold, Loops: n} }
func shrink(n int) Step { return Step{Op: OpShrink, Loops: n} }

func holdWith(n int, lower, upper Rate) Step {
	return Step{Op: OpHold, Loops: n, Spread: Spread{Lower: lower, Upper: upper}}
}

// fluctuatingVariant splits the week into hold(a) shrink(d1) hold(b)
// shrink(d2) hold(c) with d1+d2 = 5 and a+b+c = 7, b >= 1.
// Ordered by a so a rejected first hold rejects everything after it.
func fluctuatingVariant() Variant {
	var combos []Combination
	for a := 0; a <= 6; a++ {
		for _, d1 := range []int{2, 3} {
			d2 := 5 - d1
			for c := 0; c <= 6-a; c++ {
				b := 7 - a - c
				combos = append(combos, Combination{
					ID:    fmt.Sprintf("%d%d%d%d%d", a, d1, b, d2, c),
					Steps: []Step{hold(a), shrink(d1), hold(b), shrink(d2), hold(c)},
				})
			}
		}
	}
	return Variant{
		Pattern: Fluctuating,
		Decay: Decay{
			Upper:    coef.FluctDecUpper,
			Lower:    coef.FluctDecLower,
			Constant: coef.FluctConstantDecrease,
			Random:   coef.FluctRandomDecrease,
		},
		Spread:       Spread{Lower: coef.FluctHoldLower, Upper: coef.FluctHoldUpper},
		AbortOnFirst: true,
		Combinations: combos,
	}
}

// largeSpikeVariant decays for 1..6 phases, climbs through five single-phase
// spike steps, then sits low for the rest of the week.
func largeSpikeVariant() Variant {
	var combos []Combination
	for peak := 1; peak <= 6; peak++ {
		combos = append(combos, Combination{
			ID: strconv.Itoa(peak),
			Steps: []Step{
				shrink(peak),
				holdWith(1, coef.SpikeA, coef.SpikeB),
				holdWith(1, coef.SpikeB, coef.SpikeC),
				holdWith(1, coef.SpikeC, coef.SpikeD),
				holdWith(1, coef.SpikeB, coef.SpikeC),
				holdWith(1, coef.SpikeA, coef.SpikeB),
				holdWith(Phases-peak-5, coef.SpikeE, coef.SpikeA),
			},
		})
	}
	return Variant{Pattern: LargeSpike, Decay: baseDecay, Combinations: combos}
}

func decreasingVariant() Variant {
	return Variant{
		Pattern:      Decreasing,
		Decay:        baseDecay,
		Combinations: []Combination{{ID: strconv.Itoa(Phases), Steps: []Step{shrink(Phases)}}},
	}
}

// smallSpikeVariant decays for 0..6 phases, rises over two shoulder phases,
// peaks for three, then decays again until Saturday PM.
func smallSpikeVariant() Variant {
	var combos []Combination
	for peak := 0; peak <= 6; peak++ {
		spike := holdWith(3, coef.SpikeB, coef.SpikeC)
		spike.Displacement = coef.SmallSpikeDisplacement
		combos = append(combos, Combination{
			ID: strconv.Itoa(peak),
			Steps: []Step{
				shrink(peak),
				holdWith(1, coef.SpikeA, coef.SpikeB),
				holdWith(1, coef.SpikeA, coef.SpikeB),
				spike,
				shrink(Phases - peak - 5),
			},
		})
	}
	return Variant{
		Pattern: SmallSpike,
		Decay: Decay{
			Upper:    coef.SmallDecUpper,
			Lower:    coef.SmallDecLower,
			Constant: coef.ConstantDecrease,
			Random:   coef.RandomDecrease,
		},
		Combinations: combos,
	}
}
