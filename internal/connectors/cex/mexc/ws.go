package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Ticker struct {
	Symbol string
	Bid    float64
	Ask    float64
	TS     time.Time
}

type WS struct {
	URL    string
	Dialer *websocket.Dialer
	conn   *websocket.Conn
	mu     sync.Mutex
}

func NewWS(url string) *WS {
	return &WS{
		URL: strings.TrimRight(url, "/"),
		Dialer: &websocket.Dialer{
			HandshakeTimeout:  15 * time.Second,
			EnableCompression: true,
		},
	}
}

func (w *WS) connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		return nil
	}
	h := http.Header{"Origin": []string{"https://www.mexc.com"}}
	c, _, err := w.Dialer.DialContext(ctx, w.URL, h)
	if err != nil {
		return err
	}
	w.conn = c

	// двигаем дедлайн на каждый PONG
	_ = w.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	})

	return nil
}

func (w *WS) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// SubscribeBookTicker subscribes to the JSON book-ticker channel for the
// given concatenated symbols and streams top-of-book updates until ctx is
// cancelled or the connection drops.
func (w *WS) SubscribeBookTicker(ctx context.Context, symbols []string) (<-chan Ticker, error) {
	if err := w.connect(ctx); err != nil {
		return nil, err
	}

	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		params = append(params, "spot@public.bookTicker.v3.api@"+strings.ToUpper(s))
	}
	sub := struct {
		ID     int      `json:"id"`
		Method string   `json:"method"`
		Params []string `json:"params"`
	}{ID: 1, Method: "SUBSCRIPTION", Params: params}

	if err := w.conn.WriteJSON(sub); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Ticker, 1024)

	go func() {
		defer close(out)
		defer w.Close()

		pingStop := make(chan struct{})
		go func() {
			t := time.NewTicker(20 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-pingStop:
					return
				case <-t.C:
					_ = w.conn.WriteMessage(websocket.TextMessage, []byte(`{"method":"PING"}`))
				}
			}
		}()
		defer close(pingStop)

		type bookMsg struct {
			Channel string `json:"c"`
			Symbol  string `json:"s"`
			Data    struct {
				BidPrice string `json:"b"`
				AskPrice string `json:"a"`
			} `json:"d"`
			TS int64 `json:"t"`
		}

		for {
			if ctx.Err() != nil {
				return
			}
			_, raw, err := w.conn.ReadMessage()
			if err != nil {
				return
			}
			var m bookMsg
			if err := json.Unmarshal(raw, &m); err != nil {
				continue // PONG и ack-и сюда тоже прилетают
			}
			if m.Symbol == "" || !strings.Contains(m.Channel, "bookTicker") {
				continue
			}
			bid, err1 := strconv.ParseFloat(m.Data.BidPrice, 64)
			ask, err2 := strconv.ParseFloat(m.Data.AskPrice, 64)
			if err1 != nil || err2 != nil || bid <= 0 || ask <= 0 {
				continue
			}
			ts := time.Now()
			if m.TS > 0 {
				ts = time.UnixMilli(m.TS)
			}
			select {
			case out <- Ticker{Symbol: m.Symbol, Bid: bid, Ask: ask, TS: ts}:
			default:
				// канал полон — старый тик никому не нужен
			}
		}
	}()

	return out, nil
}
