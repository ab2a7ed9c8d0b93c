package market

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange marks a combination whose bounds exclude an observed price.
	// It prunes that combination and is never fatal.
	ErrOutOfRange = errors.New("market: observed price out of range")

	// ErrPhaseOverflow is returned when a stretch would run past Saturday PM.
	ErrPhaseOverflow = errors.New("market: stretch runs past the last phase")
)

// RangeError reports which phase rejected a combination.
type RangeError struct {
	Phase    int
	Observed int
	Bound    Bound
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("market: phase %d price %d outside [%d, %d]",
		e.Phase, e.Observed, e.Bound.Lower, e.Bound.Upper)
}

// Unwrap lets errors.Is match ErrOutOfRange.
func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// Rate is a multiplier in hundredths of the reference price (85 = ×0.85).
type Rate int

// Apply returns ceil(r × price) computed exactly in integers.
func (r Rate) Apply(price int) int {
	return ceilDiv(int(r)*price, 100)
}

func ceilDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}

// Mode selects between the two behaviours of the engine.
type Mode uint8

const (
	// ModePredict compounds bounds phase over phase and prunes against observations.
	ModePredict Mode = iota
	// ModeTable recomputes every phase from the buy price and never prunes.
	ModeTable
)

func (m Mode) String() string {
	if m == ModeTable {
		return "table"
	}
	return "predict"
}

// Decay holds the coefficients of a shrink stretch. The first phase of a
// stretch uses Upper and Lower; later phases drop Constant from the ceiling and
// Constant+Random from the floor.
type Decay struct {
	Upper    Rate
	Lower    Rate
	Constant Rate
	Random   Rate
}

// Spread holds the coefficients of a hold stretch.
type Spread struct {
	Lower Rate
	Upper Rate
}

// Engine applies hold and shrink stretches to a BoundState.
type Engine struct {
	Mode     Mode
	Observed Observed
	Decay    Decay
	Spread   Spread // default for Hold
}

// Reset returns the state every combination starts from.
func (e Engine) Reset(buy int) BoundState {
	return BoundState{
		Buy:       buy,
		Bound:     Bound{Lower: buy, Upper: buy},
		Guarantee: Guarantee{Min: buy, Max: buy},
	}
}

// Shrink applies loops consecutive decay phases.
func (e Engine) Shrink(s BoundState, loops int) (BoundState, error) {
	if s.Phase+loops > Phases {
		return s, ErrPhaseOverflow
	}
	for i := 0; i < loops; i++ {
		upper, lower := e.Decay.Upper, e.Decay.Lower
		if i > 0 {
			upper -= e.Decay.Constant
			lower -= e.Decay.Constant + e.Decay.Random
		}
		ref := e.reference(s)
		next := Bound{Lower: lower.Apply(ref.Lower), Upper: upper.Apply(ref.Upper)}

		var err error
		if s, err = e.advance(s, next); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Hold applies loops plateau phases with the engine's default spread.
func (e Engine) Hold(s BoundState, loops int) (BoundState, error) {
	return e.HoldWith(s, loops, e.Spread, 0)
}

// HoldWith applies loops plateau or spike phases. The displacement is added
// to both bounds after scaling.
func (e Engine) HoldWith(s BoundState, loops int, sp Spread, displacement int) (BoundState, error) {
	if s.Phase+loops > Phases {
		return s, ErrPhaseOverflow
	}
	for i := 0; i < loops; i++ {
		ref := e.reference(s)
		next := Bound{
			Lower: sp.Lower.Apply(ref.Lower) + displacement,
			Upper: sp.Upper.Apply(ref.Upper) + displacement,
		}

		var err error
		if s, err = e.advance(s, next); err != nil {
			return s, err
		}
	}
	return s, nil
}

// reference is the bound the next phase is scaled from.
func (e Engine) reference(s BoundState) Bound {
	if e.Mode == ModeTable {
		return Bound{Lower: s.Buy, Upper: s.Buy}
	}
	return s.Bound
}

// advance records b as the current phase and moves to the next one.
func (e Engine) advance(s BoundState, b Bound) (BoundState, error) {
	phase := s.Phase
	s.Bound = b
	s.Trajectory[phase] = b
	s.Guarantee = s.Guarantee.Widen(b)
	s.Phase++

	if e.Mode == ModePredict {
		if p := e.Observed[phase]; p != 0 && !b.Contains(p) {
			return s, &RangeError{Phase: phase, Observed: p, Bound: b}
		}
	}
	return s, nil
}
