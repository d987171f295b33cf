// Package metrics holds the Prometheus instruments shared across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	AuthDecisionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_decision_total",
			Help: "Authorization gate outcomes, labelled by gate and result.",
		},
		[]string{"gate", "result"})

	EventPublishTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_total",
			Help: "Envelopes handed to the message bus.",
		})

	EventPublishDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_dropped_total",
			Help: "Envelopes lost because the bus rejected the publish.",
		})

	EventConsumeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "event_consume_total",
			Help: "Envelopes received by the consumer.",
		})

	DualWriteFailureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dual_write_failure_total",
			Help: "Sink write failures inside the consumer, labelled by sink.",
		},
		[]string{"sink"})

	AuditSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_swept_total",
			Help: "Audit rows removed by the retention sweeper.",
		})

	ActiveTenants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_tenants",
			Help: "Number of organizations currently held in the directory cache.",
		})

	TenantLoadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_load_total",
			Help: "Cumulative number of organizations loaded into the cache.",
		})

	TenantLoadErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_load_errors_total",
			Help: "Cumulative number of organization cache-load errors.",
		})

	TenantEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_evict_total",
			Help: "Cumulative number of organizations evicted from the cache.",
		})
)

func init() {
	prometheus.MustRegister(
		AuthDecisionTotal,
		EventPublishTotal,
		EventPublishDroppedTotal,
		EventConsumeTotal,
		DualWriteFailureTotal,
		AuditSweptTotal,
		ActiveTenants,
		TenantLoadTotal,
		TenantLoadErrorsTotal,
		TenantEvictTotal,
	)
}
