package engine

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func px(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestOrderFillTransitions(t *testing.T) {
	assert := assert.New(t)

	o := NewLimitOrder("o1", "AAPL", Buy, 100, px("10"), 1)
	assert.Equal(StatusNew, o.Status)
	assert.Equal(uint64(100), o.Remaining())

	require.NoError(t, o.Fill(40))
	assert.Equal(StatusPartiallyFilled, o.Status)
	assert.Equal(uint64(60), o.Remaining())

	require.NoError(t, o.Fill(60))
	assert.Equal(StatusFilled, o.Status)
	assert.True(o.IsFilled())
	assert.Equal(uint64(100), o.Size, "original size never changes")
}

func TestOrderOverfillIsRejected(t *testing.T) {
	o := NewLimitOrder("o1", "AAPL", Sell, 10, px("10"), 1)
	require.NoError(t, o.Fill(4))

	err := o.Fill(7)
	assert.True(t, errors.Is(err, ErrOverfill))
	assert.Equal(t, uint64(4), o.FilledSize, "a rejected fill leaves the order untouched")

	assert.True(t, errors.Is(o.Fill(0), ErrOverfill))
}

func TestOrderTerminalStates(t *testing.T) {
	o := NewLimitOrder("o1", "AAPL", Sell, 10, px("10"), 1)
	require.NoError(t, o.Cancel())
	assert.Equal(t, StatusCancelled, o.Status)

	assert.True(t, errors.Is(o.Cancel(), ErrOrderClosed))
	assert.True(t, errors.Is(o.Fill(1), ErrOrderClosed))

	filled := NewLimitOrder("o2", "AAPL", Buy, 5, px("10"), 2)
	require.NoError(t, filled.Fill(5))
	assert.True(t, errors.Is(filled.Cancel(), ErrOrderClosed))
}

func TestMarketOrderPriceSentinels(t *testing.T) {
	buy := NewMarketOrder("m1", "AAPL", Buy, 10, 1)
	sell := NewMarketOrder("m2", "AAPL", Sell, 10, 1)

	assert.Equal(t, Market, buy.Type)
	assert.True(t, buy.Price.Equal(MaxPrice))
	assert.True(t, sell.Price.IsZero())

	assert.True(t, buy.crosses(px("1000000")))
	assert.True(t, sell.crosses(px("0.01")))
}

func TestLimitCrossing(t *testing.T) {
	buy := NewLimitOrder("b", "AAPL", Buy, 10, px("10.0"), 1)
	assert.True(t, buy.crosses(px("10")))
	assert.True(t, buy.crosses(px("9.99")))
	assert.False(t, buy.crosses(px("10.01")))

	sell := NewLimitOrder("s", "AAPL", Sell, 10, px("10.0"), 1)
	assert.True(t, sell.crosses(px("10")))
	assert.True(t, sell.crosses(px("10.01")))
	assert.False(t, sell.crosses(px("9.99")))
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
	assert.False(t, Side("HOLD").Valid())
}
