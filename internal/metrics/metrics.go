package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCreated   prometheus.Counter
	OrdersProcessed prometheus.Counter
	// Failures is labelled by error kind (see fulfillment.Kind).
	Failures            *prometheus.CounterVec
	Compensations       prometheus.Counter
	InventoryRejections prometheus.Counter
	LoyaltyPoints       prometheus.Counter
	LockWaitSec         prometheus.Histogram
	FulfillmentSec      prometheus.Histogram

	// Notifications is labelled by sink and result (ok|error).
	Notifications *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfillment_orders_created_total"})
	processed := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfillment_orders_processed_total"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fulfillment_failures_total"}, []string{"kind"})
	compensations := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfillment_compensations_total"})
	rejections := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfillment_inventory_rejections_total"})
	points := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfillment_loyalty_points_awarded_total"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfillment_order_lock_wait_seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfillment_process_seconds",
		Buckets: prometheus.DefBuckets,
	})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fulfillment_notifications_total"}, []string{"sink", "result"})

	r.MustRegister(created, processed, failures, compensations, rejections, points, lockWait, latency, notifications)
	return &Registry{
		reg:                 r,
		OrdersCreated:       created,
		OrdersProcessed:     processed,
		Failures:            failures,
		Compensations:       compensations,
		InventoryRejections: rejections,
		LoyaltyPoints:       points,
		LockWaitSec:         lockWait,
		FulfillmentSec:      latency,
		Notifications:       notifications,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
