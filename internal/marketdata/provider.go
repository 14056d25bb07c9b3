package marketdata

import "context"

// Product is one tradable pair as reported by the venue.
// PairID uses a BASE-QUOTE separator, e.g. "ETH-USDT".
type Product struct {
	PairID  string
	Base    string
	Quote   string
	Enabled bool
}

// Provider is the market data collaborator: live top-of-book, last price and
// the tradable product list. Pair arguments use the BASE-QUOTE form.
type Provider interface {
	BestBidAsk(ctx context.Context, pair string) (bid, ask float64, err error)
	Price(ctx context.Context, pair string) (float64, error)
	Products(ctx context.Context) ([]Product, error)
}
