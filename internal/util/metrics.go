package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Total number of rejected purchases",
	}, []string{"reason"})

	OrdersReplayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_replayed_total",
		Help: "Total number of order requests answered from an idempotency key",
	})

	FundsSpentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_funds_spent_total",
		Help: "Sum of funds debited by purchases",
	})

	FundsRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_funds_refunded_total",
		Help: "Sum of funds credited back by approved refunds",
	})

	RefundsRequestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_refunds_requested_total",
		Help: "Total number of refund requests accepted",
	})

	RefundsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_refunds_rejected_total",
		Help: "Total number of refund requests rejected",
	}, []string{"reason"})

	RefundsDecidedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_refunds_decided_total",
		Help: "Total number of refund decisions by action",
	}, []string{"action"})

	PurchaseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_purchase_latency_seconds",
		Help:    "Latency of the purchase transaction",
		Buckets: prometheus.DefBuckets,
	})

	StockEventsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_stock_events_processed_total",
		Help: "Events applied to the stock projection",
	}, []string{"type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
