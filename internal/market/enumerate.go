package market

import (
	"errors"
	"fmt"
)

// Outcome is one surviving combination.
type Outcome struct {
	ID         string
	Guarantee  Guarantee
	Trajectory Trajectory
}

// Result is the output of running one variant for one buy price.
type Result struct {
	Pattern  Pattern
	Mode     Mode
	Buy      int
	Outcomes []Outcome // survivors, in search order
	Pruned   int
}

// Guarantees maps every surviving combination to its guarantee.
func (r Result) Guarantees() map[string]Guarantee {
	out := make(map[string]Guarantee, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out[o.ID] = o.Guarantee
	}
	return out
}

// Run executes every combination of v from a fresh state. In prediction mode
// combinations contradicting observed are dropped; in table mode observed is
// ignored.
func Run(v Variant, buy int, mode Mode, observed Observed) Result {
	e := Engine{Mode: mode, Observed: observed, Decay: v.Decay, Spread: v.Spread}
	res := Result{Pattern: v.Pattern, Mode: mode, Buy: buy}

	for i, c := range v.Combinations {
		s := e.Reset(buy)
		var err error
		for j, st := range c.Steps {
			if s, err = e.apply(s, st); err != nil {
				if j == 0 && v.AbortOnFirst {
					res.Pruned += len(v.Combinations) - i
					return res
				}
				break
			}
		}
		if err != nil {
			if !errors.Is(err, ErrOutOfRange) {
				panic(fmt.Sprintf("market: %s combination %s: %v", v.Pattern, c.ID, err))
			}
			res.Pruned++
			continue
		}
		res.Outcomes = append(res.Outcomes, Outcome{ID: c.ID, Guarantee: s.Guarantee, Trajectory: s.Trajectory})
	}
	return res
}

func (e Engine) apply(s BoundState, st Step) (BoundState, error) {
	if st.Op == OpShrink {
		return e.Shrink(s, st.Loops)
	}
	if st.Spread == (Spread{}) {
		return e.HoldWith(s, st.Loops, e.Spread, st.Displacement)
	}
	return e.HoldWith(s, st.Loops, st.Spread, st.Displacement)
}

// Forecast is the per-phase envelope of a set of trajectories.
type Forecast struct {
	Phases       [Phases]Bound `json:"phases"`
	Guarantee    Guarantee     `json:"guarantee"`
	Combinations int           `json:"combinations"`
}

// Include widens the forecast to cover t, whose overall guarantee is g.
func (f *Forecast) Include(t Trajectory, g Guarantee) {
	if f.Combinations == 0 {
		f.Phases = t
		f.Guarantee = g
		f.Combinations = 1
		return
	}
	for i, b := range t {
		if b.Lower < f.Phases[i].Lower {
			f.Phases[i].Lower = b.Lower
		}
		if b.Upper > f.Phases[i].Upper {
			f.Phases[i].Upper = b.Upper
		}
	}
	f.Guarantee = f.Guarantee.Widen(Bound{Lower: g.Min, Upper: g.Max})
	f.Combinations++
}

// PatternPrediction is what one pattern still allows.
type PatternPrediction struct {
	Pattern  Pattern              `json:"pattern"`
	Possible map[string]Guarantee `json:"possible"`
	Forecast Forecast             `json:"forecast"`
	Pruned   int                  `json:"pruned"`
}

// Plausible reports whether any combination of the pattern survived.
func (p PatternPrediction) Plausible() bool { return len(p.Possible) > 0 }

// Prediction is the prediction-mode answer for one week.
type Prediction struct {
	Buy      int                             `json:"buy_price"`
	Observed Observed                        `json:"observed"`
	Patterns [PatternCount]PatternPrediction `json:"patterns"`
}

// Surviving returns the number of combinations left across all patterns.
func (p Prediction) Surviving() int {
	n := 0
	for _, pp := range p.Patterns {
		n += len(pp.Possible)
	}
	return n
}

// PredictPattern runs one pattern in prediction mode.
func PredictPattern(p Pattern, buy int, observed Observed) PatternPrediction {
	return summarize(Run(VariantFor(p), buy, ModePredict, observed))
}

// Predict runs every pattern in prediction mode.
func Predict(buy int, observed Observed) Prediction {
	pred := Prediction{Buy: buy, Observed: observed}
	for _, p := range Patterns {
		pred.Patterns[p] = PredictPattern(p, buy, observed)
	}
	return pred
}

func summarize(r Result) PatternPrediction {
	pp := PatternPrediction{Pattern: r.Pattern, Possible: r.Guarantees(), Pruned: r.Pruned}
	for _, o := range r.Outcomes {
		pp.Forecast.Include(o.Trajectory, o.Guarantee)
	}
	return pp
}
