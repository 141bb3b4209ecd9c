// Package obs exposes Prometheus metrics for the scan loop:
//   - engine_cycles_total{result}      – completed/failed cycles
//   - engine_proposals_total{decision} – oracle proposals by decision
//   - engine_orders_total{side}        – orders placed
//   - engine_rejections_total{code}    – admissions rejected by reason code
//   - engine_equity_usd                – last observed equity (gauge)
//   - engine_drawdown_pct              – drawdown from running peak (gauge)
//   - engine_open_positions            – open position count (gauge)
//
// Registered in init() and served at /metrics by the run command.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_cycles_total",
			Help: "Scan cycles by result",
		},
		[]string{"result"},
	)

	proposals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_proposals_total",
			Help: "Oracle proposals by decision",
		},
		[]string{"decision"},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_orders_total",
			Help: "Orders placed",
		},
		[]string{"side"},
	)

	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rejections_total",
			Help: "Trade admissions rejected by reason code",
		},
		[]string{"code"},
	)

	equity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_equity_usd",
		Help: "Last observed account equity",
	})

	drawdown = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_drawdown_pct",
		Help: "Drawdown from the running peak balance, percent",
	})

	openPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_open_positions",
		Help: "Currently open positions",
	})
)

func init() {
	prometheus.MustRegister(cycles, proposals, orders, rejections, equity, drawdown, openPositions)
}

func CycleCompleted()         { cycles.WithLabelValues("completed").Inc() }
func CycleFailed()            { cycles.WithLabelValues("failed").Inc() }
func Proposal(decision string) { proposals.WithLabelValues(decision).Inc() }
func OrderPlaced(side string) { orders.WithLabelValues(side).Inc() }
func Rejection(code string)   { rejections.WithLabelValues(code).Inc() }

func SetEquity(v float64)      { equity.Set(v) }
func SetDrawdown(pct float64)  { drawdown.Set(pct) }
func SetOpenPositions(n int)   { openPositions.Set(float64(n)) }

// Serve exposes /metrics on addr; it blocks, so callers run it in a
// goroutine. An empty addr disables the endpoint.
func Serve(addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
