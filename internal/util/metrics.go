package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders accepted and published into the saga",
	})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders that reached COMPLETED",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of orders that reached FAILED",
	}, []string{"reason"})

	InventoryReservedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_total",
		Help: "Total number of successful stock reservations",
	})

	InventoryReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_failed_total",
		Help: "Total number of failed stock reservations",
	}, []string{"reason"})

	InventoryReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_releases_total",
		Help: "Total number of compensating stock releases",
	})

	CompensationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saga_compensation_failures_total",
		Help: "Total number of compensations that could not be applied",
	})

	BalanceDebitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "balance_debits_total",
		Help: "Total number of successful balance debits",
	})

	BalanceDebitsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "balance_debits_failed_total",
		Help: "Total number of failed balance debits",
	}, []string{"reason"})

	DuplicateDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_duplicate_deliveries_total",
		Help: "Total number of redelivered events absorbed by the idempotency gate",
	}, []string{"context"})

	HandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saga_handler_latency_seconds",
		Help:    "Latency of saga event handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"handler"})

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
