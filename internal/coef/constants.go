// Package coef holds every multiplier used by the turnip pattern engine.
// Values are hundredths of the reference price, so 85 means ×0.85.
// They mirror the in-game price generator; nothing here is tuned.
package coef

// Decay stretches shared by the large spike and decreasing patterns.
const (
	// DecUpper is the first-phase ceiling of a decay stretch (×0.90).
	DecUpper = 90

	// DecLower is the first-phase floor of a decay stretch (×0.85).
	DecLower = 85

	// ConstantDecrease is the fixed drop applied after the first decay phase.
	ConstantDecrease = 3

	// RandomDecrease is the largest random drop on top of ConstantDecrease.
	// Only the floor takes it.
	RandomDecrease = 2
)

// Fluctuating pattern (0): high, decreasing, high, decreasing, high.
const (
	FluctHoldLower = 90
	FluctHoldUpper = 140

	FluctDecUpper = 80
	FluctDecLower = 60

	FluctConstantDecrease = 4
	FluctRandomDecrease   = 6
)

// Spike multipliers shared by the large spike (1) and small spike (3) patterns.
const (
	SpikeA = 90  // shoulder floor
	SpikeB = 140 // shoulder ceiling, peak floor
	SpikeC = 200 // peak ceiling
	SpikeD = 600 // large spike ceiling
	SpikeE = 40  // post-spike floor
)

// Small spike pattern (3) decays from a much lower floor.
const (
	SmallDecUpper = 90
	SmallDecLower = 40
)

// SmallSpikeDisplacement shifts the small spike's three peak phases by one bell
// after scaling.
const SmallSpikeDisplacement = -1
