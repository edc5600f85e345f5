package engine

import (
	"container/list"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// OrderBook manages the buy and sell orders for a single symbol.
// All methods are safe for concurrent use.
type OrderBook struct {
	mu     sync.RWMutex
	symbol string
	clock  Clock

	bids *btree.BTreeG[*priceLevel] // Highest price first
	asks *btree.BTreeG[*priceLevel] // Lowest price first

	arena  orderArena
	index  map[string]handle
	router router // nil for a standalone book

	lastUpdate atomic.Int64
}

// NewOrderBook creates and initializes a new OrderBook.
func NewOrderBook(symbol string) *OrderBook {
	return newOrderBook(symbol, NewMonotonicClock())
}

func newOrderBook(symbol string, clock Clock) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		clock:  clock,
		bids:   newSide(Buy),
		asks:   newSide(Sell),
		index:  make(map[string]handle),
	}
}

// router keeps an id index across books. A book claims an id before the
// order enters it and releases the id whenever the order leaves, whichever
// path it leaves by.
type router interface {
	claim(symbol, orderID string) bool
	release(symbol, orderID string)
}

// matchResult is what one incoming order did to the book.
type matchResult struct {
	trades []Trade
	rested bool
}

// Symbol returns the instrument this book trades.
func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

// AddOrder rests a copy of a live limit order on its side of the book.
// Later fills and cancels apply to the book's copy, never to order; use
// Order to read its current state.
func (ob *OrderBook) AddOrder(order *Order) error {
	if err := ob.validate(order); err != nil {
		return err
	}
	if order.Type != Limit {
		return errors.Wrapf(ErrInvalidOrder, "order %s: market orders never rest", order.ID)
	}
	if order.Remaining() == 0 {
		return errors.Wrapf(ErrInvalidOrder, "order %s has nothing left to rest", order.ID)
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	if _, exists := ob.index[order.ID]; exists || !ob.claim(order.ID) {
		return errors.Wrapf(ErrDuplicateOrderID, "order %s", order.ID)
	}
	ob.insert(*order)
	ob.touch()
	return nil
}

// CancelOrder removes a live order from the book by its ID.
func (ob *OrderBook) CancelOrder(orderID string) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	h, exists := ob.index[orderID]
	if !exists {
		return false
	}
	if err := ob.arena.get(h).order.Cancel(); err != nil {
		// A terminal order is never left indexed.
		panic(err)
	}
	ob.remove(h)
	ob.touch()
	return true
}

// MatchOrder matches an incoming order against the opposite side. Any
// unfilled remainder of a limit order rests in the book; the remainder of a
// market order is discarded. Trades are returned in match order.
//
// The book works on a copy of order and writes the copy's state back to
// order before returning. A resting remainder is owned by the book.
func (ob *OrderBook) MatchOrder(order *Order) ([]Trade, error) {
	res, err := ob.process(order)
	if err != nil {
		return nil, err
	}
	return res.trades, nil
}

func (ob *OrderBook) process(order *Order) (matchResult, error) {
	if err := ob.validate(order); err != nil {
		return matchResult{}, err
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	if _, exists := ob.index[order.ID]; exists || !ob.claim(order.ID) {
		return matchResult{}, errors.Wrapf(ErrDuplicateOrderID, "order %s", order.ID)
	}

	incoming := *order
	res := ob.match(&incoming)
	if incoming.Type == Limit && incoming.Remaining() > 0 {
		ob.insert(incoming)
		res.rested = true
	} else {
		ob.release(incoming.ID)
	}
	ob.touch()
	*order = incoming
	return res, nil
}

func (ob *OrderBook) match(order *Order) matchResult {
	var res matchResult
	opposite := ob.side(order.Side.Opposite())

	for order.Remaining() > 0 {
		level, ok := opposite.Min()
		if !ok || !order.crosses(level.price) {
			break
		}

		h := level.orders.Front().Value.(handle)
		resting := &ob.arena.get(h).order

		size := min(order.Remaining(), resting.Remaining())
		mustFill(order, size)
		mustFill(resting, size)
		level.volume -= size

		res.trades = append(res.trades, ob.newTrade(order, resting, size))

		if resting.IsFilled() {
			ob.remove(h)
		}
	}
	return res
}

// mustFill applies a fill the matching loop has already sized. Failure means
// the book's own bookkeeping is broken, so it aborts the operation.
func mustFill(o *Order, size uint64) {
	if err := o.Fill(size); err != nil {
		panic(err)
	}
}

func (ob *OrderBook) newTrade(incoming, resting *Order, size uint64) Trade {
	t := Trade{
		TradeID:        uuid.New().String(),
		Symbol:         ob.symbol,
		RestingOrderID: resting.ID,
		AggressorSide:  incoming.Side,
		Size:           size,
		Price:          resting.Price,
		Timestamp:      ob.clock.Now(),
	}
	if incoming.Side == Buy {
		t.BuyerOrderID, t.SellerOrderID = incoming.ID, resting.ID
	} else {
		t.BuyerOrderID, t.SellerOrderID = resting.ID, incoming.ID
	}
	return t
}

func (ob *OrderBook) validate(order *Order) error {
	switch {
	case order == nil:
		return errors.Wrap(ErrInvalidOrder, "nil order")
	case order.ID == "":
		return errors.Wrap(ErrInvalidOrder, "order id is required")
	case order.Symbol != "" && order.Symbol != ob.symbol:
		return errors.Wrapf(ErrInvalidOrder, "order %s is for %s, book is %s", order.ID, order.Symbol, ob.symbol)
	case !order.Side.Valid():
		return errors.Wrapf(ErrInvalidOrder, "order %s: side %q", order.ID, order.Side)
	case order.Type != Limit && order.Type != Market:
		return errors.Wrapf(ErrInvalidOrder, "order %s: type %q", order.ID, order.Type)
	case order.Size == 0 || order.FilledSize > order.Size:
		return errors.Wrapf(ErrInvalidOrder, "order %s: size %d filled %d", order.ID, order.Size, order.FilledSize)
	case order.Type == Limit && !order.Price.IsPositive():
		return errors.Wrapf(ErrInvalidOrder, "order %s: price %s", order.ID, order.Price)
	case order.Status.Terminal():
		return errors.Wrapf(ErrOrderClosed, "order %s", order.ID)
	}
	return nil
}

func (ob *OrderBook) side(s Side) *btree.BTreeG[*priceLevel] {
	if s == Buy {
		return ob.bids
	}
	return ob.asks
}

// insert queues the order at its price level, keeping the level in timestamp
// order. Orders normally arrive in time order, so the scan stops at the back.
func (ob *OrderBook) insert(order Order) {
	tree := ob.side(order.Side)
	level, ok := tree.Get(&priceLevel{price: order.Price})
	if !ok {
		level = newPriceLevel(order.Price)
		tree.ReplaceOrInsert(level)
	}

	h := ob.arena.alloc(order)
	var elem *list.Element
	for e := level.orders.Back(); e != nil; e = e.Prev() {
		if ob.arena.get(e.Value.(handle)).order.Timestamp <= order.Timestamp {
			elem = level.orders.InsertAfter(h, e)
			break
		}
	}
	if elem == nil {
		elem = level.orders.PushFront(h)
	}

	s := ob.arena.get(h)
	s.level, s.elem = level, elem
	level.volume += order.Remaining()
	ob.index[order.ID] = h
}

// remove drops the order behind h from its level, the index and the arena.
func (ob *OrderBook) remove(h handle) {
	s := ob.arena.get(h)
	order, level := &s.order, s.level

	level.orders.Remove(s.elem)
	level.volume -= order.Remaining()
	if level.orders.Len() == 0 {
		ob.side(order.Side).Delete(level)
	}
	delete(ob.index, order.ID)
	ob.release(order.ID)
	ob.arena.release(h)
}

func (ob *OrderBook) claim(orderID string) bool {
	if ob.router == nil {
		return true
	}
	return ob.router.claim(ob.symbol, orderID)
}

func (ob *OrderBook) release(orderID string) {
	if ob.router != nil {
		ob.router.release(ob.symbol, orderID)
	}
}

func (ob *OrderBook) touch() {
	ob.lastUpdate.Store(ob.clock.Now())
}

// LastUpdate returns when the book was last mutated.
func (ob *OrderBook) LastUpdate() time.Time {
	ns := ob.lastUpdate.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// BestBid returns the highest bid price, or NoBid when there are no bids.
func (ob *OrderBook) BestBid() decimal.Decimal {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	if level, ok := ob.bids.Min(); ok {
		return level.price
	}
	return NoBid
}

// BestAsk returns the lowest ask price, or NoAsk when there are no asks.
func (ob *OrderBook) BestAsk() decimal.Decimal {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	if level, ok := ob.asks.Min(); ok {
		return level.price
	}
	return NoAsk
}

// VolumeAtPrice sums the remaining size of live orders on side at price.
func (ob *OrderBook) VolumeAtPrice(side Side, price decimal.Decimal) uint64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	if level, ok := ob.side(side).Get(&priceLevel{price: price}); ok {
		return level.volume
	}
	return 0
}

// Len returns the number of live orders in the book.
func (ob *OrderBook) Len() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.arena.live()
}

// Order returns a copy of the live order with the given id.
func (ob *OrderBook) Order(orderID string) (Order, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	h, ok := ob.index[orderID]
	if !ok {
		return Order{}, false
	}
	return ob.arena.get(h).order, true
}

// AllOrders returns copies of the live bids and asks in priority order.
func (ob *OrderBook) AllOrders() (bids, asks []Order) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.collect(ob.bids), ob.collect(ob.asks)
}

func (ob *OrderBook) collect(tree *btree.BTreeG[*priceLevel]) []Order {
	orders := make([]Order, 0, tree.Len())
	tree.Ascend(func(l *priceLevel) bool {
		for e := l.orders.Front(); e != nil; e = e.Next() {
			orders = append(orders, ob.arena.get(e.Value.(handle)).order)
		}
		return true
	})
	return orders
}

// Depth aggregates up to levels price levels per side, best first.
// A non-positive levels returns every level.
func (ob *OrderBook) Depth(levels int) (bids, asks []AggregatedPriceLevel) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return aggregate(ob.bids, levels), aggregate(ob.asks, levels)
}

func aggregate(tree *btree.BTreeG[*priceLevel], levels int) []AggregatedPriceLevel {
	out := []AggregatedPriceLevel{}
	tree.Ascend(func(l *priceLevel) bool {
		if levels > 0 && len(out) >= levels {
			return false
		}
		out = append(out, l.aggregate())
		return true
	})
	return out
}

// Print writes the book, asks from the highest price down, then bids.
func (ob *OrderBook) Print(w io.Writer) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	fmt.Fprintf(w, "Order Book: %s\n", ob.symbol)
	fmt.Fprintln(w, "SELLS:")
	if ob.asks.Len() == 0 {
		fmt.Fprintln(w, "  [Empty]")
	}
	ob.asks.Descend(func(l *priceLevel) bool {
		ob.printLevel(w, l)
		return true
	})
	fmt.Fprintln(w, "BUYS:")
	if ob.bids.Len() == 0 {
		fmt.Fprintln(w, "  [Empty]")
	}
	ob.bids.Ascend(func(l *priceLevel) bool {
		ob.printLevel(w, l)
		return true
	})
}

func (ob *OrderBook) printLevel(w io.Writer, l *priceLevel) {
	for e := l.orders.Front(); e != nil; e = e.Next() {
		o := &ob.arena.get(e.Value.(handle)).order
		fmt.Fprintf(w, "  %s x %d (%s)\n", l.price.StringFixed(2), o.Remaining(), o.ID)
	}
}
