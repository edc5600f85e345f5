package engine

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) OnTrade(ev TradeEvent) {
	m.Called(ev)
}

func TestObserverReceivesEveryTrade(t *testing.T) {
	eng := setupEngine(t, "AAPL", "MSFT")

	obs := &mockObserver{}
	obs.On("OnTrade", mock.MatchedBy(func(ev TradeEvent) bool {
		return ev.Symbol == "AAPL" && ev.Trade.BuyerOrderID == "A2" && ev.Trade.SellerOrderID == "A1"
	})).Once()
	obs.On("OnTrade", mock.MatchedBy(func(ev TradeEvent) bool {
		return ev.Symbol == "MSFT" && ev.Trade.Size == 5 && ev.Trade.Price.Equal(px("250"))
	})).Once()
	eng.Subscribe(obs)

	_, err := eng.PlaceLimitOrder("AAPL", "A1", Sell, 10, px("150"))
	require.NoError(t, err)
	_, err = eng.PlaceLimitOrder("AAPL", "A2", Buy, 10, px("151"))
	require.NoError(t, err)

	_, err = eng.PlaceLimitOrder("MSFT", "M1", Buy, 5, px("250"))
	require.NoError(t, err)
	_, err = eng.PlaceMarketOrder("MSFT", "M2", Sell, 20)
	require.NoError(t, err)

	obs.AssertExpectations(t)
	obs.AssertNumberOfCalls(t, "OnTrade", 2)
}

func TestObserverNotCalledWithoutTrades(t *testing.T) {
	eng := setupEngine(t, "AAPL")

	obs := &mockObserver{}
	eng.Subscribe(obs)

	_, _ = eng.PlaceLimitOrder("AAPL", "A1", Sell, 10, px("150"))
	_, _ = eng.PlaceLimitOrder("AAPL", "A2", Buy, 10, px("149"))
	eng.CancelOrder("A1")
	_, _ = eng.PlaceMarketOrder("AAPL", "A3", Buy, 10)

	obs.AssertNotCalled(t, "OnTrade", mock.Anything)
}
