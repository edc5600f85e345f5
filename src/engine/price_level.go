package engine

import (
	"container/list"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

const btreeDegree = 16

// --- B-Tree Comparators ---

// asksLess sorts price levels from lowest price to highest price.
func asksLess(a, b *priceLevel) bool {
	return a.price.LessThan(b.price)
}

// bidsLess sorts price levels from highest price to lowest price.
func bidsLess(a, b *priceLevel) bool {
	return a.price.GreaterThan(b.price)
}

func newSide(side Side) *btree.BTreeG[*priceLevel] {
	if side == Buy {
		return btree.NewG(btreeDegree, bidsLess)
	}
	return btree.NewG(btreeDegree, asksLess)
}

// --- priceLevel ---

// priceLevel is a time-ordered queue of order handles at one price.
type priceLevel struct {
	price  decimal.Decimal
	orders *list.List // Queue of handle
	volume uint64     // Sum of remaining size over the queue
}

func newPriceLevel(price decimal.Decimal) *priceLevel {
	return &priceLevel{
		price:  price,
		orders: list.New(),
	}
}

// AggregatedPriceLevel is the depth view of one price level.
type AggregatedPriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Size   uint64          `json:"size"`
	Orders int             `json:"orders"`
}

func (pl *priceLevel) aggregate() AggregatedPriceLevel {
	return AggregatedPriceLevel{Price: pl.price, Size: pl.volume, Orders: pl.orders.Len()}
}
