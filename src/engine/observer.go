package engine

// TradeEvent is delivered to observers once the fills it reports have been
// applied to both orders. It is a value: observers get no handle on the book.
type TradeEvent struct {
	Seq    uint64 `json:"seq"` // Engine wide, increases by one per trade
	Symbol string `json:"symbol"`
	Trade  Trade  `json:"trade"`
}

// TradeObserver receives every trade produced by any book of the engine,
// synchronously and in match order.
//
// OnTrade runs while the engine still serializes the trade's symbol, so it
// must not place or cancel orders on that symbol.
type TradeObserver interface {
	OnTrade(TradeEvent)
}

// ObserverFunc adapts a plain function to a TradeObserver.
type ObserverFunc func(TradeEvent)

func (f ObserverFunc) OnTrade(e TradeEvent) {
	f(e)
}
