package engine

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"order-matching-engine/src/logger"
)

// MatchingEngine is the top-level, thread-safe component for all symbols.
//
// Each symbol is its own serialization domain: operations on one symbol are
// linearized while different symbols proceed in parallel. The order id
// routing index is shared across symbols and has its own lock.
type MatchingEngine struct {
	booksMu sync.RWMutex
	books   map[string]*bookEntry

	routesMu sync.Mutex
	routes   map[string]string // order id -> symbol, live orders only

	observersMu sync.RWMutex
	observers   []TradeObserver

	clock Clock
	log   *logger.Logger
	seq   atomic.Uint64
}

type bookEntry struct {
	mu   sync.Mutex // Held for a whole place or cancel, notification included
	book *OrderBook
}

// Option configures a MatchingEngine.
type Option func(*MatchingEngine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l *logger.Logger) Option {
	return func(me *MatchingEngine) {
		me.log = l
	}
}

// WithClock sets the admission clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(me *MatchingEngine) {
		me.clock = c
	}
}

// NewMatchingEngine creates a new, thread-safe engine.
func NewMatchingEngine(opts ...Option) *MatchingEngine {
	me := &MatchingEngine{
		books:  make(map[string]*bookEntry),
		routes: make(map[string]string),
		clock:  NewMonotonicClock(),
		log:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(me)
	}
	return me
}

// AddOrderBook creates an empty book for symbol. It is a no-op when the book
// already exists.
func (me *MatchingEngine) AddOrderBook(symbol string) error {
	if strings.TrimSpace(symbol) == "" {
		return errors.Wrap(ErrInvalidOrder, "symbol is required")
	}

	me.booksMu.Lock()
	defer me.booksMu.Unlock()

	if _, ok := me.books[symbol]; ok {
		return nil
	}
	book := newOrderBook(symbol, me.clock)
	book.router = me
	me.books[symbol] = &bookEntry{book: book}
	me.log.Info("order book created", logger.NewField("symbol", symbol))
	return nil
}

func (me *MatchingEngine) entry(symbol string) (*bookEntry, bool) {
	me.booksMu.RLock()
	defer me.booksMu.RUnlock()
	e, ok := me.books[symbol]
	return e, ok
}

// OrderBook returns the book for symbol. Orders added, matched or cancelled
// directly on it stay routable through the engine, but its trades are not
// reported to observers.
func (me *MatchingEngine) OrderBook(symbol string) (*OrderBook, bool) {
	e, ok := me.entry(symbol)
	if !ok {
		return nil, false
	}
	return e.book, true
}

// OrderBooks returns every book, sorted by symbol.
func (me *MatchingEngine) OrderBooks() []*OrderBook {
	symbols := me.Symbols()
	books := make([]*OrderBook, 0, len(symbols))
	for _, s := range symbols {
		if b, ok := me.OrderBook(s); ok {
			books = append(books, b)
		}
	}
	return books
}

// Symbols returns the symbols with a book, sorted.
func (me *MatchingEngine) Symbols() []string {
	me.booksMu.RLock()
	symbols := make([]string, 0, len(me.books))
	for s := range me.books {
		symbols = append(symbols, s)
	}
	me.booksMu.RUnlock()

	slices.Sort(symbols)
	return symbols
}

// PlaceLimitOrder matches a limit order and rests any remainder. On error no
// order is created and no state changes.
func (me *MatchingEngine) PlaceLimitOrder(symbol, orderID string, side Side, size uint64, price decimal.Decimal) ([]Trade, error) {
	return me.place(symbol, func(ts int64) *Order {
		return NewLimitOrder(orderID, symbol, side, size, price, ts)
	})
}

// PlaceMarketOrder matches a market order. Whatever is left unfilled is
// discarded.
func (me *MatchingEngine) PlaceMarketOrder(symbol, orderID string, side Side, size uint64) ([]Trade, error) {
	return me.place(symbol, func(ts int64) *Order {
		return NewMarketOrder(orderID, symbol, side, size, ts)
	})
}

func (me *MatchingEngine) place(symbol string, build func(ts int64) *Order) ([]Trade, error) {
	e, ok := me.entry(symbol)
	if !ok {
		err := errors.Wrapf(ErrUnknownSymbol, "symbol %s", symbol)
		me.log.Debug("order rejected", logger.NewField("symbol", symbol), logger.NewField("reason", err.Error()))
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	order := build(me.clock.Now())
	res, err := e.book.process(order)
	if err != nil {
		return nil, me.reject(order, err)
	}

	me.notify(symbol, res.trades)
	return res.trades, nil
}

func (me *MatchingEngine) reject(order *Order, err error) error {
	me.log.Debug("order rejected",
		logger.NewField("symbol", order.Symbol),
		logger.NewField("order_id", order.ID),
		logger.NewField("type", order.Type),
		logger.NewField("reason", err.Error()),
	)
	return err
}

// claim routes orderID to symbol unless the id is live in another book.
// Books call it before an order enters them.
func (me *MatchingEngine) claim(symbol, orderID string) bool {
	me.routesMu.Lock()
	defer me.routesMu.Unlock()

	if s, taken := me.routes[orderID]; taken && s != symbol {
		return false
	}
	me.routes[orderID] = symbol
	return true
}

// release drops the route once the order has left symbol's book, by fill,
// cancel or discard, whether through the engine or the book itself.
func (me *MatchingEngine) release(symbol, orderID string) {
	me.routesMu.Lock()
	defer me.routesMu.Unlock()

	if me.routes[orderID] == symbol {
		delete(me.routes, orderID)
	}
}

// CancelOrder cancels a live order wherever it rests. It returns false when
// the id is unknown, already filled or already cancelled.
func (me *MatchingEngine) CancelOrder(orderID string) bool {
	symbol, ok := me.route(orderID)
	if !ok {
		return false
	}
	e, ok := me.entry(symbol)
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.book.CancelOrder(orderID) {
		return false
	}
	me.log.Debug("order cancelled", logger.NewField("symbol", symbol), logger.NewField("order_id", orderID))
	return true
}

func (me *MatchingEngine) route(orderID string) (string, bool) {
	me.routesMu.Lock()
	defer me.routesMu.Unlock()
	s, ok := me.routes[orderID]
	return s, ok
}

// Lookup returns a copy of a live order by id.
func (me *MatchingEngine) Lookup(orderID string) (Order, bool) {
	symbol, ok := me.route(orderID)
	if !ok {
		return Order{}, false
	}
	b, ok := me.OrderBook(symbol)
	if !ok {
		return Order{}, false
	}
	return b.Order(orderID)
}

// Subscribe registers an observer. Observers are called in registration order.
func (me *MatchingEngine) Subscribe(o TradeObserver) {
	me.observersMu.Lock()
	defer me.observersMu.Unlock()
	me.observers = append(me.observers, o)
}

// RegisterTradeCallback registers fn as an observer.
func (me *MatchingEngine) RegisterTradeCallback(fn func(TradeEvent)) {
	me.Subscribe(ObserverFunc(fn))
}

func (me *MatchingEngine) notify(symbol string, trades []Trade) {
	if len(trades) == 0 {
		return
	}
	me.observersMu.RLock()
	observers := slices.Clone(me.observers)
	me.observersMu.RUnlock()

	for _, t := range trades {
		ev := TradeEvent{Seq: me.seq.Add(1), Symbol: symbol, Trade: t}
		for _, o := range observers {
			me.deliver(o, ev)
		}
	}
}

// deliver shields the engine from a failing observer: the trade it reports
// is already applied and cannot be rolled back.
func (me *MatchingEngine) deliver(o TradeObserver, ev TradeEvent) {
	defer func() {
		if r := recover(); r != nil {
			me.log.Error(errors.Errorf("trade observer panicked: %v", r),
				logger.NewField("symbol", ev.Symbol),
				logger.NewField("trade_id", ev.Trade.TradeID),
			)
		}
	}()
	o.OnTrade(ev)
}

// Print writes every book, sorted by symbol.
func (me *MatchingEngine) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Matching Engine State ===")
	for _, b := range me.OrderBooks() {
		b.Print(w)
		fmt.Fprintln(w, "--------------------------")
	}
}
