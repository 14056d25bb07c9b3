package aggregator

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	imetrics "github.com/you/arb-engine/internal/metrics"
	"github.com/you/arb-engine/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ScanParams bounds one opportunity sweep.
type ScanParams struct {
	MinProfitPct float64
	MinQuantity  float64
	QuoteTimeout time.Duration
	IncludeGas   bool
}

// FindOpportunities evaluates every pair concurrently and returns the ones
// whose two-venue round trip clears the threshold, sorted by estimated
// profit pct descending. A pair that fails to quote is skipped, never fatal.
// ExpiresAt is the detection time: consumers must re-validate before acting.
func (a *Aggregator) FindOpportunities(ctx context.Context, pairs []types.PairMeta, p ScanParams) []types.ArbitrageOpportunity {
	var (
		mu  sync.Mutex
		out []types.ArbitrageOpportunity
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, pm := range pairs {
		pm := pm
		g.Go(func() error {
			ap := a.BestPrices(gctx, pm.Base, pm.Quote, p.QuoteTimeout)
			if ap.BestBuy == nil || ap.BestSell == nil {
				return nil
			}
			est := Profit(ap, p.MinQuantity, true, p.IncludeGas)
			if !est.Profitable || est.ProfitPct < p.MinProfitPct {
				return nil
			}

			now := time.Now()
			opp := types.ArbitrageOpportunity{
				ID:           uuid.NewString(),
				Pair:         pm.Base + "-" + pm.Quote,
				BuyExchange:  ap.BestBuy.Exchange,
				SellExchange: ap.BestSell.Exchange,
				BuyPrice:     ap.BestBuy.Ask,
				SellPrice:    ap.BestSell.Bid,
				Spread:       ap.Spread(),
				SpreadPct:    ap.SpreadPct(),
				EstProfitUSD: est.NetProfit,
				EstProfitPct: est.ProfitPct,
				MinQty:       p.MinQuantity,
				MaxQty:       p.MinQuantity,
				Confidence:   confidence(est.ProfitPct, p.MinProfitPct),
				Ts:           now,
				ExpiresAt:    now,
			}
			mu.Lock()
			out = append(out, opp)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors, partial failure is per-pair

	sort.Slice(out, func(i, j int) bool { return out[i].EstProfitPct > out[j].EstProfitPct })
	return out
}

// confidence grows with the margin over the threshold and saturates at 1
// when the estimate doubles it.
func confidence(profitPct, minProfitPct float64) float64 {
	if minProfitPct <= 0 {
		return 1
	}
	return math.Min(1, profitPct/(2*minProfitPct))
}

// RunScanner sweeps the pair set on every tick, pushing ranked opportunities
// downstream and refreshing the spatial gauges.
func (a *Aggregator) RunScanner(ctx context.Context, pairs []types.PairMeta, p ScanParams, interval time.Duration, out chan<- types.ArbitrageOpportunity) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			opps := a.FindOpportunities(ctx, pairs, p)
			imetrics.SpatialOpportunities.Set(float64(len(opps)))
			if len(opps) > 0 {
				imetrics.SpatialBestProfitPct.Set(opps[0].EstProfitPct)
			}
			for _, opp := range opps {
				select {
				case out <- opp:
				default:
					a.log.Warn("scanner: output channel full; dropping",
						zap.String("pair", opp.Pair),
						zap.Float64("est_profit_pct", opp.EstProfitPct),
					)
				}
			}
		}
	}
}
