package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CandlesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "candles_total", Help: "Candles generated by the price process"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted to the paper ledger"},
		[]string{"side", "outcome"},
	)
	QuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticker_quotes_total", Help: "External ticker quotes received"},
		[]string{"symbol"},
	)
	LastPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "sim_price", Help: "Close of the latest simulated candle"},
	)
	Cash = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "paper_cash", Help: "Virtual cash balance"},
	)
	OpenQuantity = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "paper_open_quantity", Help: "Size of the open position"},
	)
	RealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "paper_realized_pnl", Help: "Cumulative realized profit and loss"},
	)
)

func init() {
	prometheus.MustRegister(CandlesTotal, OrdersTotal, QuotesTotal, LastPrice, Cash, OpenQuantity, RealizedPnL)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
