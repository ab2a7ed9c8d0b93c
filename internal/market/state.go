// Package market predicts the range of turnip prices for one week.
//
// The week after the Sunday buy has twelve half-day phases. Prices follow one
// of four patterns, each a fixed sequence of hold (plateau or spike) and shrink
// (decay) stretches whose lengths vary between weeks. For a buy price the
// package enumerates every admissible stretch split of every pattern, walks
// integer price bounds phase by phase, and keeps the splits that agree with
// the prices observed so far.
//
// Two modes share the same arithmetic. Prediction mode compounds each phase
// from the previous bound and prunes against observations. Table mode computes
// every phase fresh from the buy price and keeps every combination, for
// building lookup tables offline.
package market

// Phases is the number of half-day slots from Monday AM to Saturday PM.
const Phases = 12

// Buy price domain of the Sunday seller.
const (
	MinBuyPrice = 90
	MaxBuyPrice = 110
)

// Bound is the admissible price interval for one phase under one hypothesis.
type Bound struct {
	Lower int `json:"lower" msgpack:"l"`
	Upper int `json:"upper" msgpack:"u"`
}

// Contains reports whether price lies inside the bound, inclusive.
func (b Bound) Contains(price int) bool {
	return price >= b.Lower && price <= b.Upper
}

// Guarantee is the widest span of bounds seen so far in a combination.
// Min only decreases and Max only increases as phases advance.
type Guarantee struct {
	Min int `json:"min" msgpack:"n"`
	Max int `json:"max" msgpack:"x"`
}

// Widen stretches the guarantee to cover b.
func (g Guarantee) Widen(b Bound) Guarantee {
	if b.Lower < g.Min {
		g.Min = b.Lower
	}
	if b.Upper > g.Max {
		g.Max = b.Upper
	}
	return g
}

// Trajectory is the bound of every phase of one combination.
type Trajectory [Phases]Bound

// Observed holds the prices seen this week. Zero means unknown.
type Observed [Phases]int

// Known returns how many phases carry an observed price.
func (o Observed) Known() int {
	n := 0
	for _, p := range o {
		if p != 0 {
			n++
		}
	}
	return n
}

// BoundState is the per-combination state threaded through engine operations.
// It is a value: every operation takes one and returns the next, so no two
// combinations ever share it.
type BoundState struct {
	Buy int
	Bound
	Guarantee  Guarantee
	Phase      int
	Trajectory Trajectory
}
