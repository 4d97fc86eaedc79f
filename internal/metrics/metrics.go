// Package metrics holds the Prometheus collectors updated by the trade loop,
// the alert dispatcher and the exchange client. They are registered in init
// and served at /metrics by the HTTP server.
//
//   - tradepilot_orders_total{venue,side,result}     orders confirmed or failed
//   - tradepilot_exchange_retries_total{venue,op}   transient venue failures retried
//   - tradepilot_signals_total{symbol,signal}       buy/sell/hold decisions
//   - tradepilot_position{symbol}                   1 while LONG, 0 while FLAT
//   - tradepilot_cycle_failures_total{loop}          cycles aborted by an error
//   - tradepilot_alerts_total{taxonomy,result}       alerts sent, skipped or failed
//   - tradepilot_store_reconnects_total              reconnects after a lost connection
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepilot_orders_total",
			Help: "Orders sent to the venue by outcome",
		},
		[]string{"venue", "side", "result"},
	)

	ExchangeRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepilot_exchange_retries_total",
			Help: "Venue calls retried after a transient failure",
		},
		[]string{"venue", "op"},
	)

	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepilot_signals_total",
			Help: "Signals produced by the engine",
		},
		[]string{"symbol", "signal"},
	)

	Position = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradepilot_position",
			Help: "Position state per symbol (1=LONG, 0=FLAT)",
		},
		[]string{"symbol"},
	)

	CycleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepilot_cycle_failures_total",
			Help: "Loop cycles aborted by an unexpected error",
		},
		[]string{"loop"},
	)

	Alerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepilot_alerts_total",
			Help: "Prediction alerts by taxonomy and result",
		},
		[]string{"taxonomy", "result"},
	)

	StoreReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradepilot_store_reconnects_total",
			Help: "Store reconnects after a lost connection",
		},
	)
)

func init() {
	prometheus.MustRegister(Orders, ExchangeRetries, Signals, Position, CycleFailures, Alerts, StoreReconnects)
}

// SetPosition records the position state of symbol.
func SetPosition(symbol string, long bool) {
	v := 0.0
	if long {
		v = 1
	}
	Position.WithLabelValues(symbol).Set(v)
}
