// Package metrics exposes the Prometheus instruments the bot updates
// during operation, served at /metrics by the web server:
//   - straddle_trades_opened_total{type}  – entries by leg (CALL|PUT)
//   - straddle_trades_closed_total{reason} – closures by terminal status
//   - straddle_square_off_failures_total  – closing orders the exchange rejected
//   - straddle_active_trades              – currently open legs (gauge)
//   - straddle_open_pnl                   – unrealized P&L across open legs (gauge)
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TradesOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "straddle_trades_opened_total",
			Help: "Trades opened, split by leg type",
		},
		[]string{"type"},
	)

	TradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "straddle_trades_closed_total",
			Help: "Trades closed, split by close reason",
		},
		[]string{"reason"},
	)

	SquareOffFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "straddle_square_off_failures_total",
			Help: "Square-off attempts whose closing order failed",
		},
	)

	ActiveTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "straddle_active_trades",
			Help: "Currently active trades",
		},
	)

	OpenPnl = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "straddle_open_pnl",
			Help: "Unrealized P&L across active trades",
		},
	)
)

func init() {
	prometheus.MustRegister(TradesOpened, TradesClosed, SquareOffFailures, ActiveTrades, OpenPnl)
}
