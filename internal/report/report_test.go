package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/stalk-market/internal/market"
)

func TestPhaseName(t *testing.T) {
	assert.Equal(t, "Mon AM", PhaseName(0))
	assert.Equal(t, "Mon PM", PhaseName(1))
	assert.Equal(t, "Wed AM", PhaseName(4))
	assert.Equal(t, "Sat PM", PhaseName(11))
	assert.Equal(t, "phase(12)", PhaseName(12))
}

func TestLabels(t *testing.T) {
	all := Labels()
	require.Len(t, all, market.PatternCount+1)

	assert.Equal(t, "0⃣", all[0].Key)
	assert.Equal(t, "fluctuating", all[0].Name)
	assert.Equal(t, 3, all[3].Pattern)
	assert.Equal(t, Unknown, all[4])
	assert.Equal(t, Unknown, LabelFor(market.Pattern(8)))
}

func TestRender_AllPatterns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, market.Predict(100, market.Observed{})))

	out := buf.String()
	assert.Contains(t, out, "Buy price 100")
	assert.Contains(t, out, "56 of 56 combinations")
	assert.Contains(t, out, "Sat PM")
	assert.Contains(t, out, "decreasing")
	assert.NotContains(t, out, "ruled out")
}

func TestRender_RuledOut(t *testing.T) {
	var obs market.Observed
	obs[0] = 85

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, market.Predict(100, obs)))

	out := buf.String()
	assert.Contains(t, out, "Mon AM 85")
	assert.Contains(t, out, "ruled out")
	assert.Contains(t, out, "6 of 6 combinations")
}

func TestRender_NothingMatches(t *testing.T) {
	var obs market.Observed
	obs[0] = 1000

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, market.Predict(100, obs)))
	assert.Contains(t, buf.String(), "No pattern matches")
}
