package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/statarb"
	"github.com/you/arb-engine/internal/types"
)

func newTestEngine() *Engine {
	cfg := &config.Config{}
	cfg.StatArb.EntryZ = 2.0
	cfg.StatArb.ExitZ = 0.5
	cfg.StatArb.MinCorrelation = 0.7
	return New(cfg, zap.NewNop())
}

func feedBoth(est *statarb.Estimator, pair1, pair2 string, v1, v2 func(i int) float64, n int) {
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		est.UpdatePrice(pair1, v1(i), ts)
		est.UpdatePrice(pair2, v2(i), ts)
	}
}

func TestCollectStatArbSignalsExitsUnscreenedPosition(t *testing.T) {
	e := newTestEngine()
	est := statarb.NewEstimator(30, 10_000, time.Minute, zap.NewNop())

	// flat identical series: correlation 1 but never cointegrated, so the
	// pair fails the screen while its spread z-score sits at 0
	flat := func(int) float64 { return 100 }
	feedBoth(est, "AUSDT", "BUSDT", flat, flat, 150)
	require.Empty(t, est.SuitablePairs(e.cfg.StatArb.MinCorrelation))

	e.positions["AUSDT|BUSDT"] = types.ShortSpread

	sigs := e.collectStatArbSignals(est)
	require.Len(t, sigs, 1)
	assert.Equal(t, types.ExitSpread, sigs[0].Direction)
	assert.Equal(t, "AUSDT", sigs[0].Pair1)
	assert.Equal(t, "BUSDT", sigs[0].Pair2)
	assert.Empty(t, e.positions)
}

func TestCollectStatArbSignalsEntersSuitablePair(t *testing.T) {
	e := newTestEngine()
	e.cfg.StatArb.EntryZ = 0.5
	est := statarb.NewEstimator(30, 10_000, time.Minute, zap.NewNop())

	// trending pair with an anti-phase wobble: passes the screen and the
	// final residual sits below the mean past the entry bar
	feedBoth(est, "AUSDT", "BUSDT",
		func(i int) float64 {
			w := 0.2
			if i%2 == 1 {
				w = -0.2
			}
			return 100 + float64(i) + w
		},
		func(i int) float64 {
			w := 0.2
			if i%2 == 1 {
				w = -0.2
			}
			return 200 + 2*float64(i) - w
		},
		200)

	sigs := e.collectStatArbSignals(est)
	require.Len(t, sigs, 1)
	assert.Equal(t, types.LongSpread, sigs[0].Direction)
	assert.Equal(t, types.LongSpread, e.positions["AUSDT|BUSDT"])

	// positioned pair only ever exits; |z| above exit means no signal
	assert.Empty(t, e.collectStatArbSignals(est))
	assert.Len(t, e.positions, 1)
}
