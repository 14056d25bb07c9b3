package aggregator

import (
	"context"
	"sync"
	"time"

	imetrics "github.com/you/arb-engine/internal/metrics"
	"github.com/you/arb-engine/internal/types"
	"go.uber.org/zap"
)

// PriceFeed is one venue's quote source. The aggregator treats every feed
// identically and never special-cases a venue.
type PriceFeed interface {
	Quote(ctx context.Context, base, quote string) (*types.PriceQuote, error)
	Name() string
	ExchangeType() types.ExchangeType
	Available() bool
}

// Aggregator fans one pair out to every registered feed and keeps whatever
// comes back in time.
type Aggregator struct {
	feeds []PriceFeed
	log   *zap.Logger
}

func New(log *zap.Logger, feeds ...PriceFeed) *Aggregator {
	return &Aggregator{feeds: feeds, log: log}
}

func (a *Aggregator) Register(f PriceFeed) { a.feeds = append(a.feeds, f) }

// BestPrices queries every available feed concurrently, each call bounded by
// timeout. A feed that errors or times out is dropped for this round only;
// with no valid quote at all the result still carries an empty quote list.
func (a *Aggregator) BestPrices(ctx context.Context, base, quote string, timeout time.Duration) types.AggregatedPrice {
	res := types.AggregatedPrice{Base: base, Quote: quote, Ts: time.Now()}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, f := range a.feeds {
		if !f.Available() {
			a.log.Debug("aggregator: feed unavailable, skipping", zap.String("feed", f.Name()))
			continue
		}
		f := f
		wg.Add(1)
		go func() {
			defer wg.Done()
			qctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			started := time.Now()
			q, err := f.Quote(qctx, base, quote)
			imetrics.FeedQuoteLatency.Observe(time.Since(started).Seconds())
			if err != nil || q == nil {
				imetrics.FeedErrors.WithLabelValues(f.Name()).Inc()
				a.log.Warn("aggregator: feed quote failed",
					zap.String("feed", f.Name()),
					zap.String("base", base), zap.String("quote", quote),
					zap.Error(err),
				)
				return
			}

			mu.Lock()
			res.Quotes = append(res.Quotes, *q)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for i := range res.Quotes {
		q := &res.Quotes[i]
		if q.Ask > 0 && (res.BestBuy == nil || q.Ask < res.BestBuy.Ask) {
			res.BestBuy = q
		}
		if q.Bid > 0 && (res.BestSell == nil || q.Bid > res.BestSell.Bid) {
			res.BestSell = q
		}
	}
	return res
}

// ProfitEstimate is the two-venue round-trip result at a fixed quantity.
type ProfitEstimate struct {
	Quantity    float64
	BuyCost     float64
	SellRevenue float64
	NetProfit   float64
	ProfitPct   float64
	Profitable  bool
}

// Profit prices buying quantity at the best ask and selling it at the best
// bid, with taker fees folded into the prices and DEX gas added flat.
func Profit(ap types.AggregatedPrice, quantity float64, includeFees, includeGas bool) ProfitEstimate {
	est := ProfitEstimate{Quantity: quantity}
	if ap.BestBuy == nil || ap.BestSell == nil || quantity <= 0 {
		return est
	}

	buyPrice := ap.BestBuy.Ask
	if includeFees {
		buyPrice *= 1 + ap.BestBuy.TakerFeePct/100
	}
	est.BuyCost = quantity * buyPrice
	if includeGas && ap.BestBuy.ExchangeType == types.ExchangeDEX {
		est.BuyCost += ap.BestBuy.GasUSD
	}

	sellPrice := ap.BestSell.Bid
	if includeFees {
		sellPrice *= 1 - ap.BestSell.TakerFeePct/100
	}
	est.SellRevenue = quantity * sellPrice
	if includeGas && ap.BestSell.ExchangeType == types.ExchangeDEX {
		est.SellRevenue -= ap.BestSell.GasUSD
	}

	est.NetProfit = est.SellRevenue - est.BuyCost
	if est.BuyCost > 0 {
		est.ProfitPct = est.NetProfit / est.BuyCost * 100
	}
	est.Profitable = est.NetProfit > 0
	return est
}

// MonitorSpread polls the pair on every tick and hands the result to cb.
// The loop only stops when ctx is cancelled; a bad round is logged inside
// BestPrices and the next tick proceeds as usual.
func (a *Aggregator) MonitorSpread(ctx context.Context, base, quote string, interval, timeout time.Duration, cb func(types.AggregatedPrice)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cb(a.BestPrices(ctx, base, quote, timeout))
		}
	}
}
