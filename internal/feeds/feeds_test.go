package feeds

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/types"
)

type fakeTicker struct {
	bid, ask float64
	err      error
	gotPair  string
}

func (f *fakeTicker) BestBidAsk(_ context.Context, pair string) (float64, float64, error) {
	f.gotPair = pair
	return f.bid, f.ask, f.err
}

func TestCEXFeedQuote(t *testing.T) {
	src := &fakeTicker{bid: 3000.5, ask: 3001.0}
	f := NewCEXFeed("mexc", src, 0.1, 0.0, zap.NewNop())

	q, err := f.Quote(context.Background(), "ETH", "USDT")
	require.NoError(t, err)
	assert.Equal(t, "ETH-USDT", src.gotPair)
	assert.Equal(t, "mexc", q.Exchange)
	assert.Equal(t, types.ExchangeCEX, q.ExchangeType)
	assert.Equal(t, 3000.5, q.Bid)
	assert.Equal(t, 3001.0, q.Ask)
	assert.Equal(t, 0.1, q.TakerFeePct)
	assert.Zero(t, q.GasUSD)
}

func TestCEXFeedAvailability(t *testing.T) {
	src := &fakeTicker{err: errors.New("boom")}
	f := NewCEXFeed("mexc", src, 0.1, 0.0, zap.NewNop())

	assert.True(t, f.Available())
	for i := 0; i < maxConsecutiveFails; i++ {
		_, err := f.Quote(context.Background(), "ETH", "USDT")
		require.Error(t, err)
	}
	assert.False(t, f.Available())

	// one good round brings it back
	src.err = nil
	src.bid, src.ask = 1, 2
	_, err := f.Quote(context.Background(), "ETH", "USDT")
	require.NoError(t, err)
	assert.True(t, f.Available())
}

type fakeQuoter struct {
	price  float64
	tier   uint32
	err    error
	gasUSD float64
	gasErr error
}

func (f *fakeQuoter) SpotPrice(context.Context, common.Address, common.Address) (float64, uint32, error) {
	return f.price, f.tier, f.err
}

func (f *fakeQuoter) EstimateGasUSD(context.Context, float64) (float64, error) {
	return f.gasUSD, f.gasErr
}

type fakePriceSource struct {
	price float64
	err   error
}

func (f *fakePriceSource) Price(context.Context, string) (float64, error) { return f.price, f.err }

func dexConfig() *config.Config {
	cfg := &config.Config{}
	cfg.DEX.Name = "uniswap_v3"
	cfg.DEX.USDT = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	cfg.DEX.Tokens = map[string]string{
		"ETH": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
	}
	return cfg
}

func TestDEXFeedQuote(t *testing.T) {
	q := &fakeQuoter{price: 3000, tier: 3000, gasUSD: 4.2}
	f := NewDEXFeed(dexConfig(), q, &fakePriceSource{price: 3000}, zap.NewNop())

	assert.True(t, f.Available())

	got, err := f.Quote(context.Background(), "ETH", "USDT")
	require.NoError(t, err)
	assert.Equal(t, types.ExchangeDEX, got.ExchangeType)
	// tier 3000 = 0.3%: mid widened by 0.003 on each side
	assert.InDelta(t, 3000*(1-0.003), got.Bid, 1e-9)
	assert.InDelta(t, 3000*(1+0.003), got.Ask, 1e-9)
	assert.InDelta(t, 0.3, got.TakerFeePct, 1e-9)
	assert.Equal(t, 4.2, got.GasUSD)
}

func TestDEXFeedGasFailureNotFatal(t *testing.T) {
	q := &fakeQuoter{price: 3000, tier: 500, gasErr: errors.New("rpc down")}
	f := NewDEXFeed(dexConfig(), q, &fakePriceSource{price: 3000}, zap.NewNop())

	got, err := f.Quote(context.Background(), "ETH", "USDT")
	require.NoError(t, err)
	assert.Zero(t, got.GasUSD)
	assert.InDelta(t, 0.05, got.TakerFeePct, 1e-9)
}

func TestDEXFeedUnknownToken(t *testing.T) {
	f := NewDEXFeed(dexConfig(), &fakeQuoter{price: 1, tier: 500}, &fakePriceSource{}, zap.NewNop())

	_, err := f.Quote(context.Background(), "DOGE", "USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOGE")
}
