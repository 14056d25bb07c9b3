package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/types"
)

// spotQuoter is what the feed needs from the on-chain side.
type spotQuoter interface {
	SpotPrice(ctx context.Context, baseToken, quoteToken common.Address) (price float64, feeTier uint32, err error)
	EstimateGasUSD(ctx context.Context, ethUSD float64) (float64, error)
}

type lastPriceSource interface {
	Price(ctx context.Context, pair string) (float64, error)
}

// DEXFeed quotes pairs off Uniswap V3 pool spot prices. The pool mid is
// widened by the pool's own fee tier on each side, the tier doubles as the
// taker fee, and gas is priced via the CEX ETH-USDT last price.
type DEXFeed struct {
	name   string
	cfg    *config.Config
	quoter spotQuoter
	ethSrc lastPriceSource
	log    *zap.Logger
}

func NewDEXFeed(cfg *config.Config, q spotQuoter, ethSrc lastPriceSource, log *zap.Logger) *DEXFeed {
	return &DEXFeed{
		name:   cfg.DEX.Name,
		cfg:    cfg,
		quoter: q,
		ethSrc: ethSrc,
		log:    log,
	}
}

func (f *DEXFeed) Name() string                     { return f.name }
func (f *DEXFeed) ExchangeType() types.ExchangeType { return types.ExchangeDEX }

// Available is static: the feed can serve any pair whose base token has a
// configured contract. Per-pair gaps surface as Quote errors instead.
func (f *DEXFeed) Available() bool { return len(f.cfg.DEX.Tokens) > 0 }

func (f *DEXFeed) Quote(ctx context.Context, base, quote string) (*types.PriceQuote, error) {
	baseAddr, err := f.tokenAddr(base)
	if err != nil {
		return nil, err
	}
	quoteAddr, err := f.tokenAddr(quote)
	if err != nil {
		return nil, err
	}

	mid, tier, err := f.quoter.SpotPrice(ctx, baseAddr, quoteAddr)
	if err != nil {
		return nil, fmt.Errorf("spot %s-%s: %w", base, quote, err)
	}

	// fee tier is in hundredths of a bip: 3000 -> 0.3%
	halfSpread := float64(tier) / 1e6
	q := &types.PriceQuote{
		Exchange:     f.name,
		ExchangeType: types.ExchangeDEX,
		Bid:          mid * (1 - halfSpread),
		Ask:          mid * (1 + halfSpread),
		TakerFeePct:  float64(tier) / 1e4,
		Ts:           time.Now(),
	}

	// Оценка газа не фатальна: без неё котировка просто без GasUSD.
	ethUSD, err := f.ethSrc.Price(ctx, "ETH-USDT")
	if err != nil {
		f.log.Warn("dex feed: eth price lookup failed, skipping gas", zap.Error(err))
		return q, nil
	}
	gasUSD, err := f.quoter.EstimateGasUSD(ctx, ethUSD)
	if err != nil {
		f.log.Warn("dex feed: gas estimate failed, skipping gas", zap.Error(err))
		return q, nil
	}
	q.GasUSD = gasUSD
	return q, nil
}

func (f *DEXFeed) tokenAddr(symbol string) (common.Address, error) {
	if symbol == "USDT" && f.cfg.DEX.USDT != "" {
		return common.HexToAddress(f.cfg.DEX.USDT), nil
	}
	hex, ok := f.cfg.DEX.Tokens[symbol]
	if !ok || hex == "" {
		return common.Address{}, fmt.Errorf("no contract configured for %s", symbol)
	}
	return common.HexToAddress(hex), nil
}
