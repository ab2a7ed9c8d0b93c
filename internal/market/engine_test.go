package market_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/stalk-market/internal/market"
)

var baseDecay = market.Decay{Upper: 90, Lower: 85, Constant: 3, Random: 2}

func TestRateApply_RoundsUp(t *testing.T) {
	assert.Equal(t, 85, market.Rate(85).Apply(100))
	assert.Equal(t, 79, market.Rate(87).Apply(90))    // 78.3
	assert.Equal(t, 142, market.Rate(140).Apply(101)) // 141.4
	assert.Equal(t, 2, market.Rate(50).Apply(3))      // 1.5
	assert.Equal(t, -1, market.Rate(50).Apply(-3))    // -1.5 rounds toward +inf
	assert.Equal(t, 0, market.Rate(0).Apply(100))
}

func TestReset(t *testing.T) {
	s := market.Engine{}.Reset(97)

	assert.Equal(t, 97, s.Buy)
	assert.Equal(t, market.Bound{Lower: 97, Upper: 97}, s.Bound)
	assert.Equal(t, market.Guarantee{Min: 97, Max: 97}, s.Guarantee)
	assert.Equal(t, 0, s.Phase)
}

func TestShrink_PredictCompounds(t *testing.T) {
	e := market.Engine{Mode: market.ModePredict, Decay: baseDecay}

	s, err := e.Shrink(e.Reset(100), 1)
	require.NoError(t, err)
	assert.Equal(t, market.Bound{Lower: 85, Upper: 90}, s.Bound)
	assert.Equal(t, market.Guarantee{Min: 85, Max: 100}, s.Guarantee)

	s, err = e.Shrink(e.Reset(100), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Phase)
	// Second loop: ceil(0.80 × 85), ceil(0.87 × 90).
	assert.Equal(t, market.Bound{Lower: 68, Upper: 79}, s.Trajectory[1])
	assert.Equal(t, market.Guarantee{Min: 68, Max: 100}, s.Guarantee)
}

func TestShrink_TableRestartsFromBuy(t *testing.T) {
	e := market.Engine{Mode: market.ModeTable, Decay: baseDecay}

	s, err := e.Shrink(e.Reset(100), 3)
	require.NoError(t, err)
	assert.Equal(t, market.Bound{Lower: 85, Upper: 90}, s.Trajectory[0])
	assert.Equal(t, market.Bound{Lower: 80, Upper: 87}, s.Trajectory[1])
	assert.Equal(t, market.Bound{Lower: 80, Upper: 87}, s.Trajectory[2])
	assert.Equal(t, market.Guarantee{Min: 80, Max: 100}, s.Guarantee)
}

func TestShrink_LoopIndexRestartsPerCall(t *testing.T) {
	e := market.Engine{Mode: market.ModeTable, Decay: baseDecay}

	s, err := e.Shrink(e.Reset(100), 1)
	require.NoError(t, err)
	s, err = e.Shrink(s, 1)
	require.NoError(t, err)

	// A new stretch starts again at the first-phase coefficients.
	assert.Equal(t, market.Bound{Lower: 85, Upper: 90}, s.Trajectory[1])
}

func TestHoldWith_PredictCompounds(t *testing.T) {
	e := market.Engine{Mode: market.ModePredict}

	s, err := e.HoldWith(e.Reset(100), 2, market.Spread{Lower: 90, Upper: 140}, 0)
	require.NoError(t, err)
	assert.Equal(t, market.Bound{Lower: 90, Upper: 140}, s.Trajectory[0])
	assert.Equal(t, market.Bound{Lower: 81, Upper: 196}, s.Trajectory[1])
	assert.Equal(t, market.Guarantee{Min: 81, Max: 196}, s.Guarantee)
}

func TestHoldWith_Displacement(t *testing.T) {
	e := market.Engine{Mode: market.ModeTable}

	s, err := e.HoldWith(e.Reset(100), 3, market.Spread{Lower: 140, Upper: 200}, -1)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, market.Bound{Lower: 139, Upper: 199}, s.Trajectory[i])
	}
	assert.Equal(t, 3, s.Phase)
}

func TestHold_UsesDefaultSpread(t *testing.T) {
	e := market.Engine{Mode: market.ModeTable, Spread: market.Spread{Lower: 90, Upper: 140}}

	s, err := e.Hold(e.Reset(100), 1)
	require.NoError(t, err)
	assert.Equal(t, market.Bound{Lower: 90, Upper: 140}, s.Bound)
}

func TestShrink_RejectsObservedPrice(t *testing.T) {
	var obs market.Observed
	obs[1] = 100
	e := market.Engine{Mode: market.ModePredict, Decay: baseDecay, Observed: obs}

	_, err := e.Shrink(e.Reset(100), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, market.ErrOutOfRange))

	var rerr *market.RangeError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 1, rerr.Phase)
	assert.Equal(t, 100, rerr.Observed)
	assert.Equal(t, market.Bound{Lower: 68, Upper: 79}, rerr.Bound)
}

func TestShrink_ObservedInsideBound(t *testing.T) {
	var obs market.Observed
	obs[0] = 85
	obs[1] = 79
	e := market.Engine{Mode: market.ModePredict, Decay: baseDecay, Observed: obs}

	_, err := e.Shrink(e.Reset(100), 2)
	assert.NoError(t, err)
}

func TestTableMode_IgnoresObservations(t *testing.T) {
	var obs market.Observed
	obs[0] = 1
	e := market.Engine{Mode: market.ModeTable, Decay: baseDecay, Observed: obs}

	_, err := e.Shrink(e.Reset(100), 1)
	assert.NoError(t, err)
}

func TestPhaseOverflow(t *testing.T) {
	e := market.Engine{Mode: market.ModePredict, Decay: baseDecay}
	s := e.Reset(100)
	s.Phase = 10

	_, err := e.Shrink(s, 3)
	assert.ErrorIs(t, err, market.ErrPhaseOverflow)

	_, err = e.Hold(s, 3)
	assert.ErrorIs(t, err, market.ErrPhaseOverflow)
}
