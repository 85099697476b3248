// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PermitsIssued counts successfully issued permits.
	PermitsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "permits_issued_total",
		Help: "Permits issued with a PENDING record and a scheduled deadline.",
	})

	// PermitsValidated counts deadline cancellations by kind (proof|admin).
	PermitsValidated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permits_validated_total",
		Help: "Permits whose deadline was cancelled by a terminal event.",
	}, []string{"kind"})

	// PermitsExpired counts records deleted by deadline expiry.
	PermitsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "permits_expired_total",
		Help: "Permits deleted after the pending deadline elapsed.",
	})

	// TimersActive reports the number of pending deadlines in the registry.
	TimersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "permit_timers_active",
		Help: "Pending permit deadlines currently registered.",
	})

	// HTTPRequestDuration observes status-page request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Status endpoint request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "code"})
)
