package statarb

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/you/arb-engine/internal/types"
	"go.uber.org/zap"
)

// minSamples is the smallest history both legs must have before any
// correlation or signal is produced.
const minSamples = 100

type PricePoint struct {
	Ts    time.Time
	Price float64
}

type corrKey struct{ p1, p2 string }

type cachedCorr struct {
	val     types.PairCorrelation
	expires time.Time
}

// Estimator keeps bounded per-pair price history and computes correlation,
// OLS hedge ratio and the mean-crossing pseudo-cointegration score, with a
// TTL cache keyed by the ordered pair tuple. All state lives behind the
// mutex; there are no package-level caches.
type Estimator struct {
	mu    sync.Mutex
	hist  map[string][]PricePoint
	cache map[corrKey]cachedCorr

	lookbackDays int
	maxPoints    int
	cacheTTL     time.Duration
	now          func() time.Time
	log          *zap.Logger
}

func NewEstimator(lookbackDays, maxPoints int, cacheTTL time.Duration, log *zap.Logger) *Estimator {
	return &Estimator{
		hist:         make(map[string][]PricePoint, 16),
		cache:        make(map[corrKey]cachedCorr, 16),
		lookbackDays: lookbackDays,
		maxPoints:    maxPoints,
		cacheTTL:     cacheTTL,
		now:          time.Now,
		log:          log,
	}
}

// Clear drops all history and cached correlations.
func (e *Estimator) Clear() {
	e.mu.Lock()
	e.hist = make(map[string][]PricePoint, 16)
	e.cache = make(map[corrKey]cachedCorr, 16)
	e.mu.Unlock()
}

// UpdatePrice appends a tick and trims the front of the history: capacity
// first, then everything older than lookbackDays+1 relative to the new tick.
// Timestamps are expected to arrive roughly in order; a zero ts means now.
func (e *Estimator) UpdatePrice(pair string, price float64, ts time.Time) {
	if ts.IsZero() {
		ts = e.now()
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	pts := append(e.hist[pair], PricePoint{Ts: ts, Price: price})
	if len(pts) > e.maxPoints {
		pts = pts[len(pts)-e.maxPoints:]
	}
	cutoff := ts.Add(-time.Duration(e.lookbackDays+1) * 24 * time.Hour)
	drop := 0
	for drop < len(pts) && pts[drop].Ts.Before(cutoff) {
		drop++
	}
	e.hist[pair] = pts[drop:]
}

// HistoryLen returns the number of stored points for a pair.
func (e *Estimator) HistoryLen(pair string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.hist[pair])
}

// TrackedPairs returns the symbols with any history, sorted.
func (e *Estimator) TrackedPairs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.hist))
	for p := range e.hist {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Correlation computes (or serves from cache) the correlation, hedge ratio
// and pseudo-cointegration p-value for the ordered pair. The cache only
// short-circuits recomputation; it never changes the numbers.
func (e *Estimator) Correlation(pair1, pair2 string, useCache bool) (types.PairCorrelation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.correlationLocked(pair1, pair2, useCache)
}

func (e *Estimator) correlationLocked(pair1, pair2 string, useCache bool) (types.PairCorrelation, error) {
	key := corrKey{p1: pair1, p2: pair2}
	if useCache {
		if c, ok := e.cache[key]; ok && e.now().Before(c.expires) {
			return c.val, nil
		}
	}

	x1, x2, err := e.alignedLocked(pair1, pair2)
	if err != nil {
		return types.PairCorrelation{}, err
	}

	corr := pearson(x1, x2)
	hedge := olsSlope(x2, x1)
	spread := make([]float64, len(x1))
	for i := range x1 {
		spread[i] = x1[i] - hedge*x2[i]
	}
	pval := crossingPValue(spread)

	pc := types.PairCorrelation{
		Pair1:        pair1,
		Pair2:        pair2,
		Correlation:  corr,
		PValue:       pval,
		HedgeRatio:   hedge,
		LookbackDays: e.lookbackDays,
		SampleSize:   len(x1),
		Cointegrated: pval < 0.05,
	}
	e.cache[key] = cachedCorr{val: pc, expires: e.now().Add(e.cacheTTL)}
	return pc, nil
}

// alignedLocked returns the most recent min(len1, len2) prices of each pair.
func (e *Estimator) alignedLocked(pair1, pair2 string) ([]float64, []float64, error) {
	h1 := e.hist[pair1]
	h2 := e.hist[pair2]
	if len(h1) < minSamples {
		e.log.Debug("statarb: insufficient history",
			zap.String("pair", pair1), zap.Int("have", len(h1)), zap.Int("need", minSamples))
		return nil, nil, fmt.Errorf("insufficient history for %s: %d < %d", pair1, len(h1), minSamples)
	}
	if len(h2) < minSamples {
		e.log.Debug("statarb: insufficient history",
			zap.String("pair", pair2), zap.Int("have", len(h2)), zap.Int("need", minSamples))
		return nil, nil, fmt.Errorf("insufficient history for %s: %d < %d", pair2, len(h2), minSamples)
	}
	n := len(h1)
	if len(h2) < n {
		n = len(h2)
	}
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	for i := 0; i < n; i++ {
		x1[i] = h1[len(h1)-n+i].Price
		x2[i] = h2[len(h2)-n+i].Price
	}
	return x1, x2, nil
}

// SuitablePairs screens every unordered pair of tracked symbols and returns
// the ones fit for pairs trading, sorted by |correlation| descending.
func (e *Estimator) SuitablePairs(minCorrelation float64) []types.PairCorrelation {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbols := make([]string, 0, len(e.hist))
	for p := range e.hist {
		symbols = append(symbols, p)
	}
	sort.Strings(symbols)

	var out []types.PairCorrelation
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			pc, err := e.correlationLocked(symbols[i], symbols[j], true)
			if err != nil {
				continue
			}
			if math.Abs(pc.Correlation) >= minCorrelation && pc.Cointegrated && pc.SampleSize >= minSamples {
				out = append(out, pc)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].Correlation) > math.Abs(out[j].Correlation)
	})
	return out
}

func pearson(x1, x2 []float64) float64 {
	m1 := mean(x1)
	m2 := mean(x2)
	var cov, v1, v2 float64
	for i := range x1 {
		d1 := x1[i] - m1
		d2 := x2[i] - m2
		cov += d1 * d2
		v1 += d1 * d1
		v2 += d2 * d2
	}
	if v1 == 0 || v2 == 0 {
		// Two identical constant series move together perfectly; anything
		// else with zero variance carries no signal.
		if v1 == 0 && v2 == 0 && x1[0] == x2[0] {
			return 1.0
		}
		return 0
	}
	return cov / math.Sqrt(v1*v2)
}

// olsSlope regresses y on x and returns the slope. A constant x makes the
// regression degenerate; the level ratio is the only sensible estimate left.
func olsSlope(x, y []float64) float64 {
	mx := mean(x)
	my := mean(y)
	var cov, vx float64
	for i := range x {
		dx := x[i] - mx
		cov += dx * (y[i] - my)
		vx += dx * dx
	}
	if vx == 0 {
		if mx != 0 {
			return my / mx
		}
		return 0
	}
	return cov / vx
}

// crossingPValue maps how often the spread crosses its mean to a tiered
// pseudo p-value. This is a heuristic stand-in for a unit-root test, kept
// deliberately: frequent mean crossings suggest a stationary spread.
func crossingPValue(spread []float64) float64 {
	m := mean(spread)
	crossings := 0
	for i := 1; i < len(spread); i++ {
		if (spread[i-1]-m)*(spread[i]-m) < 0 {
			crossings++
		}
	}
	ratio := float64(crossings) / (float64(len(spread)) / 2)
	switch {
	case ratio > 0.8:
		return 0.01
	case ratio > 0.6:
		return 0.05
	case ratio > 0.4:
		return 0.10
	default:
		return 0.50
	}
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
