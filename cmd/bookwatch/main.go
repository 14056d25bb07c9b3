package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/you/arb-engine/internal/connectors/cex/mexc"
)

// Raw WS book-ticker dump for a handful of symbols. Debug tool only.
func main() {
	wsURL := flag.String("ws", "wss://wbs-api.mexc.com/ws", "MEXC WS endpoint")
	symbolsStr := flag.String("symbols", "ETHUSDT,BTCUSDT", "comma-separated symbols")
	duration := flag.Duration("for", 60*time.Second, "how long to watch")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	symbols := strings.Split(strings.ToUpper(*symbolsStr), ",")
	ws := mexc.NewWS(*wsURL)
	stream, err := ws.SubscribeBookTicker(ctx, symbols)
	if err != nil {
		panic(err)
	}
	defer ws.Close()

	timeout := time.NewTimer(*duration)
	for {
		select {
		case t, ok := <-stream:
			if !ok {
				fmt.Println("stream closed.")
				return
			}
			fmt.Printf("[book] %-12s bid=%.8f ask=%.8f spread=%.8f ts=%s\n",
				t.Symbol, t.Bid, t.Ask, t.Ask-t.Bid, t.TS.Format(time.RFC3339Nano))
		case <-timeout.C:
			fmt.Println("done.")
			return
		case <-ctx.Done():
			return
		}
	}
}
