package engine

import (
	"fmt"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

type restingOrder struct {
	id    string
	price int64
	size  uint64
	ts    int64
}

// expectedFill is what a naive price-time walk of the opposite side predicts.
type expectedFill struct {
	id    string
	size  uint64
	price int64
}

func drawSide(t *rapid.T, label string) Side {
	return rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, label)
}

// naiveMatch sorts the resting orders by priority and walks them.
func naiveMatch(resting []restingOrder, restingSide Side, incomingMarket bool, incomingPrice int64, size uint64) []expectedFill {
	sorted := append([]restingOrder(nil), resting...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].price != sorted[j].price {
			if restingSide == Buy {
				return sorted[i].price > sorted[j].price
			}
			return sorted[i].price < sorted[j].price
		}
		return sorted[i].ts < sorted[j].ts
	})

	var fills []expectedFill
	for _, r := range sorted {
		if size == 0 {
			break
		}
		if !incomingMarket {
			if restingSide == Sell && incomingPrice < r.price {
				break
			}
			if restingSide == Buy && incomingPrice > r.price {
				break
			}
		}
		n := min(size, r.size)
		fills = append(fills, expectedFill{id: r.id, size: n, price: r.price})
		size -= n
	}
	return fills
}

func TestProperty_MatchFollowsPriceTimePriority(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		restingSide := drawSide(t, "restingSide")
		n := rapid.IntRange(0, 30).Draw(t, "resting")

		book := NewOrderBook("TEST")
		var placed []restingOrder
		for i := 0; i < n; i++ {
			r := restingOrder{
				id:    fmt.Sprintf("R%d", i),
				price: rapid.Int64Range(1, 20).Draw(t, "price"),
				size:  rapid.Uint64Range(1, 50).Draw(t, "size"),
				// Timestamps are drawn, not insertion ordered.
				ts: rapid.Int64Range(1, 1000).Draw(t, "ts")*100 + int64(i),
			}
			placed = append(placed, r)
			o := NewLimitOrder(r.id, "TEST", restingSide, r.size, decimal.NewFromInt(r.price), r.ts)
			if err := book.AddOrder(o); err != nil {
				t.Fatalf("add %s: %v", r.id, err)
			}
		}

		market := rapid.Bool().Draw(t, "market")
		incomingPrice := rapid.Int64Range(1, 20).Draw(t, "incomingPrice")
		size := rapid.Uint64Range(1, 400).Draw(t, "incomingSize")

		var incoming *Order
		if market {
			incoming = NewMarketOrder("IN", "TEST", restingSide.Opposite(), size, 1_000_000)
		} else {
			incoming = NewLimitOrder("IN", "TEST", restingSide.Opposite(), size, decimal.NewFromInt(incomingPrice), 1_000_000)
		}

		trades, err := book.MatchOrder(incoming)
		if err != nil {
			t.Fatalf("match: %v", err)
		}

		want := naiveMatch(placed, restingSide, market, incomingPrice, size)
		if len(trades) != len(want) {
			t.Fatalf("got %d trades, want %d", len(trades), len(want))
		}

		var traded uint64
		for i, tr := range trades {
			if tr.RestingOrderID != want[i].id || tr.Size != want[i].size {
				t.Fatalf("trade %d: got %s x %d, want %s x %d", i, tr.RestingOrderID, tr.Size, want[i].id, want[i].size)
			}
			if tr.Size == 0 {
				t.Fatalf("trade %d has zero size", i)
			}
			if !tr.Price.Equal(decimal.NewFromInt(want[i].price)) {
				t.Fatalf("trade %d priced %s, resting price is %d", i, tr.Price, want[i].price)
			}
			traded += tr.Size
		}

		// Fill conservation.
		if incoming.FilledSize != traded {
			t.Fatalf("incoming filled %d, trades sum to %d", incoming.FilledSize, traded)
		}
		fills := map[string]uint64{}
		for _, tr := range trades {
			fills[tr.RestingOrderID] += tr.Size
		}

		// A limit remainder rests; a market remainder never does.
		_, rests := book.Order("IN")
		if rests != (!market && incoming.Remaining() > 0) {
			t.Fatalf("incoming rests=%v market=%v remaining=%d", rests, market, incoming.Remaining())
		}

		// Filled orders are gone from every structure; the rest carry their fills.
		for _, r := range placed {
			if fills[r.id] > r.size {
				t.Fatalf("order %s over-filled: %d > %d", r.id, fills[r.id], r.size)
			}
			got, live := book.Order(r.id)
			if live == (fills[r.id] == r.size) {
				t.Fatalf("order %s live=%v filled %d of %d", r.id, live, fills[r.id], r.size)
			}
			if live && got.FilledSize != fills[r.id] {
				t.Fatalf("order %s shows %d filled, trades say %d", r.id, got.FilledSize, fills[r.id])
			}
		}
	})
}

func TestProperty_BookNeverCrossed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		book := NewOrderBook("TEST")
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			side := drawSide(t, "side")
			price := decimal.NewFromInt(rapid.Int64Range(90, 110).Draw(t, "price"))
			size := rapid.Uint64Range(1, 100).Draw(t, "size")
			o := NewLimitOrder(fmt.Sprintf("O%d", i), "TEST", side, size, price, int64(i+1))
			if _, err := book.MatchOrder(o); err != nil {
				t.Fatalf("match: %v", err)
			}

			bid, ask := book.BestBid(), book.BestAsk()
			if !bid.Equal(NoBid) && !ask.Equal(NoAsk) && bid.GreaterThanOrEqual(ask) {
				t.Fatalf("crossed book after %s: bid %s ask %s", o.ID, bid, ask)
			}

			bids, asks := book.AllOrders()
			if len(bids)+len(asks) != book.Len() {
				t.Fatalf("sides hold %d orders, index %d", len(bids)+len(asks), book.Len())
			}
		}
	})
}

func TestProperty_CancelRemovesExactlyOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		book := NewOrderBook("TEST")
		n := rapid.IntRange(1, 40).Draw(t, "orders")
		for i := 0; i < n; i++ {
			side := drawSide(t, "side")
			// Bids below asks so nothing trades.
			price := int64(rapid.IntRange(1, 10).Draw(t, "offset"))
			if side == Sell {
				price += 10
			}
			o := NewLimitOrder(fmt.Sprintf("O%d", i), "TEST", side, 10, decimal.NewFromInt(price), int64(i+1))
			if err := book.AddOrder(o); err != nil {
				t.Fatalf("add: %v", err)
			}
		}

		cancelled := map[string]bool{}
		for i := 0; i < n; i++ {
			if !rapid.Bool().Draw(t, "cancel") {
				continue
			}
			id := fmt.Sprintf("O%d", i)
			if !book.CancelOrder(id) {
				t.Fatalf("first cancel of %s failed", id)
			}
			if book.CancelOrder(id) {
				t.Fatalf("second cancel of %s succeeded", id)
			}
			cancelled[id] = true
		}

		bids, asks := book.AllOrders()
		for _, o := range append(bids, asks...) {
			if cancelled[o.ID] {
				t.Fatalf("cancelled order %s still in book", o.ID)
			}
		}
		if book.Len() != n-len(cancelled) {
			t.Fatalf("book holds %d orders, want %d", book.Len(), n-len(cancelled))
		}
		if book.CancelOrder("never-seen") {
			t.Fatal("cancelled an unknown id")
		}
	})
}
