package feeds

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/you/arb-engine/internal/types"
	"go.uber.org/zap"
)

// maxConsecutiveFails is how many failed quotes in a row mark a feed
// unavailable. One good quote clears the counter.
const maxConsecutiveFails = 3

type tickerSource interface {
	BestBidAsk(ctx context.Context, pair string) (bid, ask float64, err error)
}

// CEXFeed serves aggregator quotes from a centralized exchange's top of
// book. Availability is purely failure-driven: the feed reports itself
// unavailable after maxConsecutiveFails bad rounds and recovers on the
// first good one.
type CEXFeed struct {
	name        string
	src         tickerSource
	takerFeePct float64
	makerFeePct float64
	fails       atomic.Int32
	log         *zap.Logger
}

func NewCEXFeed(name string, src tickerSource, takerFeePct, makerFeePct float64, log *zap.Logger) *CEXFeed {
	return &CEXFeed{
		name:        name,
		src:         src,
		takerFeePct: takerFeePct,
		makerFeePct: makerFeePct,
		log:         log,
	}
}

func (f *CEXFeed) Name() string                     { return f.name }
func (f *CEXFeed) ExchangeType() types.ExchangeType { return types.ExchangeCEX }

func (f *CEXFeed) Available() bool { return f.fails.Load() < maxConsecutiveFails }

func (f *CEXFeed) Quote(ctx context.Context, base, quote string) (*types.PriceQuote, error) {
	bid, ask, err := f.src.BestBidAsk(ctx, base+"-"+quote)
	if err != nil {
		n := f.fails.Add(1)
		if n == maxConsecutiveFails {
			f.log.Warn("cex feed marked unavailable",
				zap.String("feed", f.name), zap.Int32("consecutive_fails", n))
		}
		return nil, err
	}
	f.fails.Store(0)

	return &types.PriceQuote{
		Exchange:     f.name,
		ExchangeType: types.ExchangeCEX,
		Bid:          bid,
		Ask:          ask,
		TakerFeePct:  f.takerFeePct,
		MakerFeePct:  f.makerFeePct,
		Ts:           time.Now(),
	}, nil
}
