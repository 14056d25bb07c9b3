package statarb

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/arb-engine/internal/types"
)

// spikeSeries is flat except for the very last point, which makes the
// spread's final z-score large and positive.
func spikeSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100
	}
	out[n-1] = 110
	return out
}

func TestZScoreZeroOnFlatSpread(t *testing.T) {
	e := newTestEstimator()
	feedSeries(e, "AUSDT", constantSeries(100, 150))
	feedSeries(e, "BUSDT", constantSeries(100, 150))
	assert.Zero(t, e.ZScore("AUSDT", "BUSDT"))
}

func TestZScoreZeroWithoutHistory(t *testing.T) {
	e := newTestEstimator()
	assert.Zero(t, e.ZScore("AUSDT", "BUSDT"))
}

func TestZScoreSpike(t *testing.T) {
	e := newTestEstimator()
	feedSeries(e, "AUSDT", spikeSeries(101))
	feedSeries(e, "BUSDT", constantSeries(50, 101))

	z := e.ZScore("AUSDT", "BUSDT")
	assert.Greater(t, z, 5.0)
}

func TestSignalEntryShortSpread(t *testing.T) {
	e := newTestEstimator()
	feedSeries(e, "AUSDT", spikeSeries(101))
	feedSeries(e, "BUSDT", constantSeries(50, 101))

	sig := e.Signal("AUSDT", "BUSDT", 2.0, 0.5, NoPosition)
	require.NotNil(t, sig)
	assert.Equal(t, types.ShortSpread, sig.Direction)
	assert.Greater(t, sig.ZScore, 2.0)
	assert.Equal(t, 1.0, sig.Confidence) // z far beyond 2*entry saturates
	assert.False(t, sig.Ts.IsZero())

	p1, p2 := sig.LegActions()
	assert.Equal(t, types.SideSell, p1)
	assert.Equal(t, types.SideBuy, p2)
}

func TestSignalNoEntryBelowThreshold(t *testing.T) {
	e := newTestEstimator()
	feedSeries(e, "AUSDT", constantSeries(100, 150))
	feedSeries(e, "BUSDT", constantSeries(100, 150))

	assert.Nil(t, e.Signal("AUSDT", "BUSDT", 2.0, 0.5, NoPosition))
}

func TestSignalExit(t *testing.T) {
	e := newTestEstimator()
	feedSeries(e, "AUSDT", constantSeries(100, 150))
	feedSeries(e, "BUSDT", constantSeries(100, 150))

	sig := e.Signal("AUSDT", "BUSDT", 2.0, 0.5, types.ShortSpread)
	require.NotNil(t, sig)
	assert.Equal(t, types.ExitSpread, sig.Direction)
	assert.Zero(t, sig.ZScore)
	assert.Equal(t, 1.0, sig.Confidence)

	p1, p2 := sig.LegActions()
	assert.Equal(t, types.SideUnknown, p1)
	assert.Equal(t, types.SideUnknown, p2)
}

func TestSignalZeroThresholds(t *testing.T) {
	e := newTestEstimator()
	feedSeries(e, "AUSDT", constantSeries(100, 150))
	feedSeries(e, "BUSDT", constantSeries(100, 150))

	// a zero entry bar must not turn the exit confidence into 0/0
	sig := e.Signal("AUSDT", "BUSDT", 0, 0, types.ShortSpread)
	require.NotNil(t, sig)
	assert.Equal(t, types.ExitSpread, sig.Direction)
	assert.False(t, math.IsNaN(sig.Confidence))
	assert.Equal(t, 1.0, sig.Confidence)

	entry := e.Signal("AUSDT", "BUSDT", 0, 0, NoPosition)
	require.NotNil(t, entry)
	assert.False(t, math.IsNaN(entry.Confidence))
	assert.Equal(t, 1.0, entry.Confidence)
}

func TestSignalHoldsOpenPosition(t *testing.T) {
	e := newTestEstimator()
	feedSeries(e, "AUSDT", spikeSeries(101))
	feedSeries(e, "BUSDT", constantSeries(50, 101))

	// |z| is way above the exit threshold: keep holding, no signal at all
	assert.Nil(t, e.Signal("AUSDT", "BUSDT", 2.0, 0.5, types.ShortSpread))
}

func TestSignalNeverEntersWhilePositioned(t *testing.T) {
	e := newTestEstimator()
	feedSeries(e, "AUSDT", spikeSeries(101))
	feedSeries(e, "BUSDT", constantSeries(50, 101))

	// even with |z| over the entry bar, an open position only ever exits
	sig := e.Signal("AUSDT", "BUSDT", 2.0, 100.0, types.LongSpread)
	require.NotNil(t, sig)
	assert.Equal(t, types.ExitSpread, sig.Direction)
}
