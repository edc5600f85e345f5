package feed

import (
	"order-matching-engine/src/engine"
	"order-matching-engine/src/logger"
)

// LogObserver writes every trade to the log at info level.
type LogObserver struct {
	log *logger.Logger
}

func NewLogObserver(l *logger.Logger) *LogObserver {
	return &LogObserver{log: l}
}

func (o *LogObserver) OnTrade(ev engine.TradeEvent) {
	o.log.Info("trade",
		logger.NewField("seq", ev.Seq),
		logger.NewField("symbol", ev.Symbol),
		logger.NewField("trade_id", ev.Trade.TradeID),
		logger.NewField("buyer_order_id", ev.Trade.BuyerOrderID),
		logger.NewField("seller_order_id", ev.Trade.SellerOrderID),
		logger.NewField("size", ev.Trade.Size),
		logger.NewField("price", ev.Trade.Price.String()),
	)
}
