package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/marketdata"
	"go.uber.org/zap"
)

// Client is the MEXC REST connector. It implements marketdata.Provider:
// pair arguments arrive in BASE-QUOTE form and are collapsed to the
// exchange's concatenated symbols.
type Client struct {
	cfg  *config.Config
	log  *zap.Logger
	http *http.Client
}

func NewClient(cfg *config.Config, log *zap.Logger) (*Client, error) {
	return &Client{cfg: cfg, log: log, http: &http.Client{Timeout: 6 * time.Second}}, nil
}

func symbolFor(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "-", ""))
}

type bookTickerResp struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

func (c *Client) BestBidAsk(ctx context.Context, pair string) (bid, ask float64, err error) {
	endpoint := c.cfg.MEXC.RestURL + "/api/v3/ticker/bookTicker?symbol=" + url.QueryEscape(symbolFor(pair))
	req, _ := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return 0, 0, fmt.Errorf("bookTicker %d: %s", resp.StatusCode, string(b))
	}
	var br bookTickerResp
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return 0, 0, err
	}
	var bpf, apf float64
	fmt.Sscan(br.BidPrice, &bpf)
	fmt.Sscan(br.AskPrice, &apf)
	return bpf, apf, nil
}

func (c *Client) Price(ctx context.Context, pair string) (float64, error) {
	endpoint := c.cfg.MEXC.RestURL + "/api/v3/ticker/price?symbol=" + url.QueryEscape(symbolFor(pair))
	req, _ := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("ticker/price %d: %s", resp.StatusCode, string(b))
	}
	var pr struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return 0, err
	}
	var p float64
	fmt.Sscan(pr.Price, &p)
	return p, nil
}

type exchangeInfoResp struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Status     string `json:"status"`
	} `json:"symbols"`
}

// Products lists every spot pair; status "1" means trading is enabled.
func (c *Client) Products(ctx context.Context) ([]marketdata.Product, error) {
	endpoint := c.cfg.MEXC.RestURL + "/api/v3/exchangeInfo"
	req, _ := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("exchangeInfo %d: %s", resp.StatusCode, string(b))
	}
	var ei exchangeInfoResp
	if err := json.NewDecoder(resp.Body).Decode(&ei); err != nil {
		return nil, err
	}
	out := make([]marketdata.Product, 0, len(ei.Symbols))
	for _, s := range ei.Symbols {
		base := strings.ToUpper(strings.TrimSpace(s.BaseAsset))
		quote := strings.ToUpper(strings.TrimSpace(s.QuoteAsset))
		if base == "" || quote == "" {
			continue
		}
		out = append(out, marketdata.Product{
			PairID:  base + "-" + quote,
			Base:    base,
			Quote:   quote,
			Enabled: s.Status == "1" || strings.EqualFold(s.Status, "ENABLED"),
		})
	}
	return out, nil
}
