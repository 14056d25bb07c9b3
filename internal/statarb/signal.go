package statarb

import (
	"math"

	"github.com/you/arb-engine/internal/types"
)

// NoPosition is the flat state for the signal state machine.
const NoPosition types.SpreadDirection = ""

// ZScore returns how many standard deviations the latest spread sits from
// its mean over the aligned window. Zero variance yields 0, never a division
// by zero.
func (e *Estimator) ZScore(pair1, pair2 string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zScoreLocked(pair1, pair2)
}

func (e *Estimator) zScoreLocked(pair1, pair2 string) float64 {
	pc, err := e.correlationLocked(pair1, pair2, true)
	if err != nil {
		return 0
	}
	x1, x2, err := e.alignedLocked(pair1, pair2)
	if err != nil {
		return 0
	}
	spread := make([]float64, len(x1))
	for i := range x1 {
		spread[i] = x1[i] - pc.HedgeRatio*x2[i]
	}
	m := mean(spread)
	var v float64
	for _, s := range spread {
		d := s - m
		v += d * d
	}
	sd := math.Sqrt(v / float64(len(spread)))
	if sd == 0 {
		return 0
	}
	return (spread[len(spread)-1] - m) / sd
}

// Signal runs one step of the pairs-trade state machine. It is a pure
// function of the stored history, the thresholds and the caller's current
// position: the estimator never tracks positions itself, and a single call
// can produce an entry or an exit but never both.
func (e *Estimator) Signal(pair1, pair2 string, entryThreshold, exitThreshold float64, current types.SpreadDirection) *types.ZScoreSignal {
	e.mu.Lock()
	z := e.zScoreLocked(pair1, pair2)
	now := e.now()
	e.mu.Unlock()

	abs := math.Abs(z)
	if current == NoPosition {
		if abs < entryThreshold {
			return nil
		}
		dir := types.LongSpread
		if z > 0 {
			dir = types.ShortSpread
		}
		return &types.ZScoreSignal{
			Pair1:      pair1,
			Pair2:      pair2,
			ZScore:     z,
			Direction:  dir,
			Confidence: entryConfidence(abs, entryThreshold),
			Ts:         now,
		}
	}

	if abs > exitThreshold {
		return nil
	}
	conf := 1.0
	if entryThreshold > 0 {
		conf = 1 - abs/entryThreshold
	}
	return &types.ZScoreSignal{
		Pair1:      pair1,
		Pair2:      pair2,
		ZScore:     z,
		Direction:  types.ExitSpread,
		Confidence: conf,
		Ts:         now,
	}
}

// entryConfidence saturates at 1 once |z| doubles the entry bar. A
// non-positive bar admits everything, so everything is fully confident;
// dividing by it would yield NaN at z == 0.
func entryConfidence(abs, entry float64) float64 {
	if entry <= 0 {
		return 1
	}
	return math.Min(1, abs/(2*entry))
}
