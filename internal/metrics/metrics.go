package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	OrdersPlaced  prometheus.Counter
	OrderRevenue  prometheus.Counter
	StockMoves    *prometheus.CounterVec
	CheckoutFails *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_orders_placed_total",
			Help: "Number of successfully placed orders.",
		}),
		OrderRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_order_revenue_total",
			Help: "Sum of total amounts of placed orders.",
		}),
		StockMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_stock_movements_total",
			Help: "Stock ledger appends by change type.",
		}, []string{"change_type"}),
		CheckoutFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_checkout_failures_total",
			Help: "Failed checkouts by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.OrdersPlaced, m.OrderRevenue, m.StockMoves, m.CheckoutFails)
	return m
}
