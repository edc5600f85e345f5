package feed

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"order-matching-engine/src/engine"
)

const namespace = "matching_engine"

// Metrics records trade and order flow on its own registry.
type Metrics struct {
	registry  *prometheus.Registry
	trades    *prometheus.CounterVec
	volume    *prometheus.CounterVec
	lastPrice *prometheus.GaugeVec
	orders    *prometheus.CounterVec
	cancels   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Number of trades executed.",
		}, []string{"symbol"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_volume_total",
			Help:      "Units traded.",
		}, []string{"symbol"}),
		lastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_trade_price",
			Help:      "Price of the most recent trade.",
		}, []string{"symbol"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order submissions by type and outcome.",
		}, []string{"symbol", "type", "result"}),
		cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancels_total",
			Help:      "Cancel requests by outcome.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.trades, m.volume, m.lastPrice, m.orders, m.cancels,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) OnTrade(ev engine.TradeEvent) {
	m.trades.WithLabelValues(ev.Symbol).Inc()
	m.volume.WithLabelValues(ev.Symbol).Add(float64(ev.Trade.Size))
	m.lastPrice.WithLabelValues(ev.Symbol).Set(ev.Trade.Price.InexactFloat64())
}

// ObserveOrder counts one submission. result is "accepted" or a rejection reason.
func (m *Metrics) ObserveOrder(symbol string, typ engine.OrderType, result string) {
	m.orders.WithLabelValues(symbol, string(typ), result).Inc()
}

func (m *Metrics) ObserveCancel(ok bool) {
	result := "cancelled"
	if !ok {
		result = "not_found"
	}
	m.cancels.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
