package triangular

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/you/arb-engine/internal/graph"
	"github.com/you/arb-engine/internal/marketdata"
	"github.com/you/arb-engine/internal/types"
)

type quote struct{ bid, ask float64 }

type fakeBook map[string]quote

func (f fakeBook) BestBidAsk(_ context.Context, pair string) (float64, float64, error) {
	q, ok := f[pair]
	if !ok {
		return 0, 0, fmt.Errorf("no book for %s", pair)
	}
	return q.bid, q.ask, nil
}

func usdtEthBtcPath() types.TriangularPath {
	return types.TriangularPath{
		Currencies: [4]string{"USDT", "ETH", "BTC", "USDT"},
		Pairs:      [3]string{"ETH-USDT", "ETH-BTC", "BTC-USDT"},
		Sides:      [3]types.TradeSide{types.SideBuy, types.SideSell, types.SideSell},
	}
}

func TestPathProfitProfitable(t *testing.T) {
	book := fakeBook{
		"ETH-USDT": {bid: 2999, ask: 3000},
		"ETH-BTC":  {bid: 0.05, ask: 0.0501},
		"BTC-USDT": {bid: 62000, ask: 62050},
	}
	sim := NewSimulator(book, 0.1, rate.Inf, zap.NewNop())

	pp := sim.PathProfit(context.Background(), usdtEthBtcPath(), 100, true)
	require.True(t, pp.Profitable)

	// buy at ask, sell at bid, 0.1% off every leg's output
	want := 100.0 / 3000 * 0.999 * 0.05 * 0.999 * 62000 * 0.999
	assert.InDelta(t, want, pp.EndAmount, 1e-9)
	assert.InDelta(t, want-100, pp.Profit, 1e-9)
	assert.InDelta(t, (want-100)/100*100, pp.ProfitPct, 1e-9)
	assert.Equal(t, [3]float64{3000, 0.05, 62000}, pp.Rates)
	for i, fee := range pp.Fees {
		assert.Greater(t, fee, 0.0, "leg %d fee", i)
	}
}

func TestPathProfitEthBtcUsdtCycle(t *testing.T) {
	// ETH -> BTC -> USDT -> ETH: 0.05 * 30000 / 1450 gives a raw multiplier
	// of ~1.0345; three 0.1% fees bring the net to roughly +3.1%.
	book := fakeBook{
		"ETH-BTC":  {bid: 0.05, ask: 0.0501},
		"BTC-USDT": {bid: 30000, ask: 30010},
		"ETH-USDT": {bid: 1449, ask: 1450},
	}
	path := types.TriangularPath{
		Currencies: [4]string{"ETH", "BTC", "USDT", "ETH"},
		Pairs:      [3]string{"ETH-BTC", "BTC-USDT", "ETH-USDT"},
		Sides:      [3]types.TradeSide{types.SideSell, types.SideSell, types.SideBuy},
	}
	sim := NewSimulator(book, 0.1, rate.Inf, zap.NewNop())

	pp := sim.PathProfit(context.Background(), path, 1, true)
	require.True(t, pp.Profitable)
	assert.InDelta(t, 3.1, pp.ProfitPct, 0.1)

	// replay law: walking Rates and Fees from StartAmount lands exactly on
	// EndAmount
	amount := pp.StartAmount
	for i, side := range path.Sides {
		if side == types.SideSell {
			amount *= pp.Rates[i]
		} else {
			amount /= pp.Rates[i]
		}
		amount -= pp.Fees[i]
	}
	assert.InDelta(t, pp.EndAmount, amount, 1e-12)
}

func TestPathProfitRoundTripLaw(t *testing.T) {
	// Zero spread, consistent cross rates, no fees: the cycle must return
	// exactly the start amount.
	book := fakeBook{
		"ETH-USDT": {bid: 3000, ask: 3000},
		"ETH-BTC":  {bid: 0.05, ask: 0.05},
		"BTC-USDT": {bid: 60000, ask: 60000},
	}
	sim := NewSimulator(book, 0, rate.Inf, zap.NewNop())

	pp := sim.PathProfit(context.Background(), usdtEthBtcPath(), 100, false)
	assert.InDelta(t, 100, pp.EndAmount, 1e-9)
	assert.False(t, pp.Profitable)
}

func TestPathProfitMissingLegSentinel(t *testing.T) {
	book := fakeBook{
		"ETH-USDT": {bid: 2999, ask: 3000},
		// ETH-BTC missing
		"BTC-USDT": {bid: 62000, ask: 62050},
	}
	sim := NewSimulator(book, 0.1, rate.Inf, zap.NewNop())

	pp := sim.PathProfit(context.Background(), usdtEthBtcPath(), 100, true)
	assert.False(t, pp.Profitable)
	assert.Zero(t, pp.EndAmount)
	assert.Zero(t, pp.Profit)
	assert.Equal(t, 100.0, pp.StartAmount)
}

func TestPathProfitZeroPriceSentinel(t *testing.T) {
	book := fakeBook{
		"ETH-USDT": {bid: 2999, ask: 3000},
		"ETH-BTC":  {bid: 0, ask: 0.0501}, // empty bid on the sell leg
		"BTC-USDT": {bid: 62000, ask: 62050},
	}
	sim := NewSimulator(book, 0.1, rate.Inf, zap.NewNop())

	pp := sim.PathProfit(context.Background(), usdtEthBtcPath(), 100, true)
	assert.False(t, pp.Profitable)
	assert.Zero(t, pp.EndAmount)
}

func TestFindProfitablePathsSortedAndFiltered(t *testing.T) {
	products := []marketdata.Product{
		{PairID: "ETH-USDT", Base: "ETH", Quote: "USDT", Enabled: true},
		{PairID: "BTC-USDT", Base: "BTC", Quote: "USDT", Enabled: true},
		{PairID: "ETH-BTC", Base: "ETH", Quote: "BTC", Enabled: true},
	}
	g := graph.New(zap.NewNop())
	require.Equal(t, 3, g.Build(products))

	// Cross rates set so USDT->ETH->BTC->USDT gains and the reverse loses.
	book := fakeBook{
		"ETH-USDT": {bid: 2999, ask: 3000},
		"ETH-BTC":  {bid: 0.052, ask: 0.0521},
		"BTC-USDT": {bid: 60000, ask: 60050},
	}
	sim := NewSimulator(book, 0, rate.Inf, zap.NewNop())

	pps := sim.FindProfitablePaths(context.Background(), g, []string{"USDT"}, 0.5, 100, 50)
	require.Len(t, pps, 1)
	assert.Equal(t, "ETH", pps[0].Path.Currencies[1])
	assert.Greater(t, pps[0].ProfitPct, 0.5)

	// raising the bar filters it out
	assert.Empty(t, sim.FindProfitablePaths(context.Background(), g, []string{"USDT"}, 50, 100, 50))
}

func TestFindProfitablePathsMultiStartSorted(t *testing.T) {
	products := []marketdata.Product{
		{PairID: "ETH-USDT", Base: "ETH", Quote: "USDT", Enabled: true},
		{PairID: "BTC-USDT", Base: "BTC", Quote: "USDT", Enabled: true},
		{PairID: "ETH-BTC", Base: "ETH", Quote: "BTC", Enabled: true},
	}
	g := graph.New(zap.NewNop())
	require.Equal(t, 3, g.Build(products))

	book := fakeBook{
		"ETH-USDT": {bid: 2999, ask: 3000},
		"ETH-BTC":  {bid: 0.052, ask: 0.0521},
		"BTC-USDT": {bid: 60000, ask: 60050},
	}
	sim := NewSimulator(book, 0, rate.Inf, zap.NewNop())

	pps := sim.FindProfitablePaths(context.Background(), g, g.Currencies(), 0, 100, 50)
	require.NotEmpty(t, pps)
	for i := 1; i < len(pps); i++ {
		assert.GreaterOrEqual(t, pps[i-1].ProfitPct, pps[i].ProfitPct)
	}
	for _, pp := range pps {
		assert.True(t, pp.Profitable)
	}
}
