package engine

import (
	"math"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Side defines the side of an order (BUY or SELL).
type Side string
type OrderType string
type OrderStatus string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

var (
	// MaxPrice is the price a market buy carries for eligibility. It is never
	// reported as an execution price.
	MaxPrice = decimal.NewFromFloat(math.MaxFloat64)

	// NoBid is returned by BestBid when the bid side is empty.
	NoBid = decimal.Zero
	// NoAsk is returned by BestAsk when the ask side is empty.
	NoAsk = MaxPrice
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Terminal reports whether no further fills or cancels can apply.
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled
}

// Order represents a single order in the matching engine.
type Order struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Type       OrderType       `json:"type"`
	Price      decimal.Decimal `json:"price"`
	Size       uint64          `json:"size"` // Original size, constant after creation
	FilledSize uint64          `json:"filled_size"`
	Status     OrderStatus     `json:"status"`
	Timestamp  int64           `json:"timestamp"` // Unix nanoseconds, assigned at admission
}

// NewLimitOrder creates a resting-capable order with a caller supplied price.
func NewLimitOrder(id, symbol string, side Side, size uint64, price decimal.Decimal, ts int64) *Order {
	return &Order{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		Type:      Limit,
		Price:     price,
		Size:      size,
		Status:    StatusNew,
		Timestamp: ts,
	}
}

// NewMarketOrder creates an order that matches at any price and never rests.
func NewMarketOrder(id, symbol string, side Side, size uint64, ts int64) *Order {
	price := decimal.Zero
	if side == Buy {
		price = MaxPrice
	}
	return &Order{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		Type:      Market,
		Price:     price,
		Size:      size,
		Status:    StatusNew,
		Timestamp: ts,
	}
}

// Remaining calculates the unfilled size.
func (o *Order) Remaining() uint64 {
	return o.Size - o.FilledSize
}

// IsFilled reports whether the whole size has executed.
func (o *Order) IsFilled() bool {
	return o.FilledSize >= o.Size
}

// Fill records an execution of n units against the order.
func (o *Order) Fill(n uint64) error {
	if o.Status.Terminal() {
		return errors.Wrapf(ErrOrderClosed, "fill %d on order %s", n, o.ID)
	}
	if n == 0 || n > o.Remaining() {
		return errors.Wrapf(ErrOverfill, "fill %d on order %s with %d remaining", n, o.ID, o.Remaining())
	}
	o.FilledSize += n
	if o.IsFilled() {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
	return nil
}

// Cancel moves a live order to CANCELLED.
func (o *Order) Cancel() error {
	if o.Status.Terminal() {
		return errors.Wrapf(ErrOrderClosed, "cancel order %s in status %s", o.ID, o.Status)
	}
	o.Status = StatusCancelled
	return nil
}

// crosses reports whether o may trade against a resting order at price.
func (o *Order) crosses(price decimal.Decimal) bool {
	if o.Type == Market {
		return true
	}
	if o.Side == Buy {
		return o.Price.GreaterThanOrEqual(price)
	}
	return o.Price.LessThanOrEqual(price)
}

// Trade represents a single trade that has been executed.
type Trade struct {
	TradeID        string          `json:"trade_id"`
	Symbol         string          `json:"symbol"`
	BuyerOrderID   string          `json:"buyer_order_id"`
	SellerOrderID  string          `json:"seller_order_id"`
	RestingOrderID string          `json:"resting_order_id"`
	AggressorSide  Side            `json:"aggressor_side"`
	Size           uint64          `json:"size"`
	Price          decimal.Decimal `json:"price"` // Always the resting order's price
	Timestamp      int64           `json:"timestamp"`
}
