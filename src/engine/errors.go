package engine

import "github.com/pkg/errors"

var (
	// ErrUnknownSymbol is returned when no book exists for the requested symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrDuplicateOrderID is returned when the order id is already live.
	ErrDuplicateOrderID = errors.New("duplicate order id")
	// ErrInvalidOrder is returned for a zero size, a bad side or a non-positive limit price.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrOverfill signals an attempt to fill more than the remaining size.
	ErrOverfill = errors.New("fill exceeds remaining size")
	// ErrOrderClosed signals a fill or cancel on a FILLED or CANCELLED order.
	ErrOrderClosed = errors.New("order already filled or cancelled")
)
