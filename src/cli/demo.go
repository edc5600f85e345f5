package cli

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"order-matching-engine/src/engine"
)

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted trading session and print the books",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd.OutOrStdout())
		},
	}
}

type demoIDs struct{ n int }

func (g *demoIDs) next() string {
	g.n++
	return fmt.Sprintf("ORD%06d", g.n)
}

func runDemo(w io.Writer) error {
	fmt.Fprintln(w, "=== Trading Engine Demo ===")

	eng := engine.NewMatchingEngine()
	eng.RegisterTradeCallback(func(ev engine.TradeEvent) {
		fmt.Fprintf(w, "TRADE: %s bought %d @ $%s from %s\n",
			ev.Trade.BuyerOrderID, ev.Trade.Size, ev.Trade.Price.StringFixed(2), ev.Trade.SellerOrderID)
	})

	for _, s := range []string{"AAPL", "MSFT", "GOOGL"} {
		if err := eng.AddOrderBook(s); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, "Created order books for AAPL, MSFT, and GOOGL")

	ids := &demoIDs{}
	limit := func(symbol string, side engine.Side, size uint64, price string) ([]engine.Trade, error) {
		return eng.PlaceLimitOrder(symbol, ids.next(), side, size, decimal.RequireFromString(price))
	}

	fmt.Fprintln(w, "\nPlacing initial orders...")
	initial := []struct {
		symbol string
		side   engine.Side
		size   uint64
		price  string
	}{
		{"AAPL", engine.Buy, 100, "150.0"},
		{"AAPL", engine.Buy, 200, "149.5"},
		{"AAPL", engine.Buy, 300, "149.0"},
		{"AAPL", engine.Sell, 150, "150.5"},
		{"AAPL", engine.Sell, 250, "151.0"},
		{"AAPL", engine.Sell, 350, "151.5"},
		{"MSFT", engine.Buy, 100, "250.0"},
		{"MSFT", engine.Sell, 100, "251.0"},
	}
	for _, o := range initial {
		if _, err := limit(o.symbol, o.side, o.size, o.price); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "\nInitial order book state:")
	eng.Print(w)

	fmt.Fprintln(w, "\nPlacing a matching order (buy AAPL @ 151.0)...")
	buyTrades, err := limit("AAPL", engine.Buy, 200, "151.0")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nOrder book state after buy order:")
	eng.Print(w)

	fmt.Fprintln(w, "\nPlacing a market sell order for AAPL...")
	sellTrades, err := eng.PlaceMarketOrder("AAPL", ids.next(), engine.Sell, 300)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nOrder book state after market sell order:")
	eng.Print(w)

	cancelID := ids.next()
	fmt.Fprintf(w, "\nPlacing an order to cancel: %s\n", cancelID)
	if _, err := eng.PlaceLimitOrder("MSFT", cancelID, engine.Buy, 50, decimal.RequireFromString("249.5")); err != nil {
		return err
	}
	msft, _ := eng.OrderBook("MSFT")
	fmt.Fprintln(w, "Order book state before cancellation:")
	msft.Print(w)

	result := "failed"
	if eng.CancelOrder(cancelID) {
		result = "successful"
	}
	fmt.Fprintf(w, "Cancel result: %s\n", result)
	fmt.Fprintln(w, "Order book state after cancellation:")
	msft.Print(w)

	fmt.Fprintln(w, "\n=== Trading Summary ===")
	fmt.Fprintf(w, "Total buy trades executed: %d\n", len(buyTrades))
	fmt.Fprintf(w, "Total sell trades executed: %d\n", len(sellTrades))
	return nil
}
