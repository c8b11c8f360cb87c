// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPLatency       *prometheus.HistogramVec
	OrdersCreated     prometheus.Counter
	StatusTransitions *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordering",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ordering",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordering",
			Name:      "orders_created_total",
			Help:      "Total number of orders created.",
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordering",
			Name:      "order_status_transitions_total",
			Help:      "Total number of order status transitions, by target status.",
		}, []string{"status"}),
	}

	prometheus.MustRegister(m.HTTPRequests, m.HTTPLatency, m.OrdersCreated, m.StatusTransitions)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
