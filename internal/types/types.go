package types

import (
	"math"
	"time"
)

type ExchangeType string

const (
	ExchangeCEX ExchangeType = "cex"
	ExchangeDEX ExchangeType = "dex"
)

type TradeSide string

const (
	SideBuy     TradeSide = "buy"
	SideSell    TradeSide = "sell"
	SideUnknown TradeSide = "unknown"
)

// PairMeta identifies one tradable pair discovered on the CEX.
// Addr is the base token contract (optional, needed for DEX quoting).
type PairMeta struct {
	Symbol string // ETHUSDT
	Base   string // ETH
	Quote  string // USDT
	Addr   string
	Rank   int
}

// PriceQuote is one venue's view of a pair at a point in time.
type PriceQuote struct {
	Exchange     string
	ExchangeType ExchangeType
	Bid          float64
	Ask          float64
	TakerFeePct  float64
	MakerFeePct  float64
	GasUSD       float64 // DEX only: estimated swap gas in USD
	Ts           time.Time
}

// AggregatedPrice is the cross-venue view of a pair: the cheapest place to
// buy (min ask) and the richest place to sell (max bid) plus all raw quotes.
type AggregatedPrice struct {
	Base     string
	Quote    string
	BestBuy  *PriceQuote // min ask
	BestSell *PriceQuote // max bid
	Quotes   []PriceQuote
	Ts       time.Time
}

func (a *AggregatedPrice) Spread() float64 {
	if a.BestBuy == nil || a.BestSell == nil {
		return 0
	}
	return a.BestSell.Bid - a.BestBuy.Ask
}

func (a *AggregatedPrice) SpreadPct() float64 {
	if a.BestBuy == nil || a.BestSell == nil || a.BestBuy.Ask == 0 {
		return 0
	}
	return a.Spread() / a.BestBuy.Ask * 100
}

// ArbitrageOpportunity is a spatial (two-venue) opportunity. ExpiresAt is set
// to the detection time on purpose: quotes are already stale by the time the
// record reaches a consumer, so it must re-validate before acting.
type ArbitrageOpportunity struct {
	ID           string
	Pair         string
	BuyExchange  string
	SellExchange string
	BuyPrice     float64
	SellPrice    float64
	Spread       float64
	SpreadPct    float64
	EstProfitUSD float64
	EstProfitPct float64
	MinQty       float64
	MaxQty       float64
	Confidence   float64
	Ts           time.Time
	ExpiresAt    time.Time
}

// TriangularPath is a 3-hop cycle: Currencies[0] == Currencies[3].
type TriangularPath struct {
	Currencies [4]string
	Pairs      [3]string
	Sides      [3]TradeSide
}

// PathProfit is the simulated result of walking a triangular path.
// EndAmount == 0 with Profitable == false is the sentinel for "a leg could
// not be priced"; no partial result is ever reported.
type PathProfit struct {
	Path        TriangularPath
	StartAmount float64
	EndAmount   float64
	Profit      float64
	ProfitPct   float64
	Rates       [3]float64
	Fees        [3]float64 // absolute fee amounts, in the leg's output unit
	Profitable  bool
}

// PairCorrelation is the estimator's output for one ordered pair of symbols.
// PValue comes from the mean-crossing heuristic, not a real unit-root test.
type PairCorrelation struct {
	Pair1        string
	Pair2        string
	Correlation  float64
	PValue       float64
	HedgeRatio   float64
	LookbackDays int
	SampleSize   int
	Cointegrated bool // PValue < 0.05
}

// SuitableForStatArb reports whether the pair qualifies for pairs trading.
func (pc PairCorrelation) SuitableForStatArb() bool {
	return math.Abs(pc.Correlation) > 0.7 && pc.Cointegrated && pc.SampleSize >= 100
}

type SpreadDirection string

const (
	LongSpread  SpreadDirection = "long_spread"  // buy pair1, sell pair2
	ShortSpread SpreadDirection = "short_spread" // sell pair1, buy pair2
	ExitSpread  SpreadDirection = "exit"
)

// ZScoreSignal is an enter/exit signal for one pairs-trade position.
type ZScoreSignal struct {
	Pair1      string
	Pair2      string
	ZScore     float64
	Direction  SpreadDirection
	Confidence float64
	Ts         time.Time
}

// LegActions returns the per-pair trade sides implied by the direction.
// For exit signals the caller already knows which legs it holds, so both
// sides come back unknown.
func (s ZScoreSignal) LegActions() (pair1, pair2 TradeSide) {
	switch s.Direction {
	case LongSpread:
		return SideBuy, SideSell
	case ShortSpread:
		return SideSell, SideBuy
	default:
		return SideUnknown, SideUnknown
	}
}
