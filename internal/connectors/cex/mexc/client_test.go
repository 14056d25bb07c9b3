package mexc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/arb-engine/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.MEXC.RestURL = srv.URL
	c, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	return c, srv
}

func TestBestBidAsk(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/bookTicker", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		_ = json.NewEncoder(w).Encode(bookTickerResp{
			Symbol: "ETHUSDT", BidPrice: "2999.5", AskPrice: "3000.1",
		})
	})

	bid, ask, err := c.BestBidAsk(context.Background(), "ETH-USDT")
	require.NoError(t, err)
	assert.Equal(t, 2999.5, bid)
	assert.Equal(t, 3000.1, ask)
}

func TestBestBidAskHTTPError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	})

	_, _, err := c.BestBidAsk(context.Background(), "NOPE-USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestPrice(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"60123.45"}`))
	})

	p, err := c.Price(context.Background(), "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, 60123.45, p)
}

func TestProducts(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		_, _ = w.Write([]byte(`{"symbols":[
			{"symbol":"ETHUSDT","baseAsset":"ETH","quoteAsset":"USDT","status":"1"},
			{"symbol":"OLDUSDT","baseAsset":"OLD","quoteAsset":"USDT","status":"3"},
			{"symbol":"BAD","baseAsset":"","quoteAsset":"USDT","status":"1"}
		]}`))
	})

	products, err := c.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "ETH-USDT", products[0].PairID)
	assert.True(t, products[0].Enabled)
	assert.Equal(t, "OLD-USDT", products[1].PairID)
	assert.False(t, products[1].Enabled)
}

func TestSymbolFor(t *testing.T) {
	assert.Equal(t, "ETHUSDT", symbolFor("ETH-USDT"))
	assert.Equal(t, "BTCUSDT", symbolFor("btc-usdt"))
	assert.Equal(t, "SOLUSDT", symbolFor("SOLUSDT"))
}
