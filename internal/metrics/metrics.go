package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of market ticks ingested"},
		[]string{"symbol"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders filled or simulated"},
		[]string{"symbol", "side"},
	)
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "executions_total", Help: "Execution attempts by outcome"},
		[]string{"symbol", "status"},
	)
	RiskRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "risk_rejections_total", Help: "Decisions refused by the risk gate"},
		[]string{"symbol", "reason"},
	)
	FeedReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_reconnects_total", Help: "Trade stream reconnect attempts"},
		[]string{"provider"},
	)
	Equity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "equity", Help: "Paper account equity after the last tick"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, OrdersTotal, ExecutionsTotal, RiskRejectionsTotal, FeedReconnectsTotal, Equity)
}

// Handler exposes the default registry for embedding in another router.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a standalone /metrics listener in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
