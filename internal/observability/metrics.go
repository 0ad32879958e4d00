package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	syncCyclesTotal        *prometheus.CounterVec
	syncedWorkTotal        *prometheus.CounterVec
	integrityFailuresTotal *prometheus.CounterVec
	requestsTotal          *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the agent.
func RegisterMetrics() {
	registerOnce.Do(func() {
		syncCyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pocketsync_sync_cycles_total",
			Help: "Total reconciliation cycles, labelled by outcome.",
		}, []string{"outcome"})

		syncedWorkTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pocketsync_synced_work_total",
			Help: "Locally-queued work items accepted by the server.",
		}, []string{"kind"})

		integrityFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pocketsync_integrity_failures_total",
			Help: "Clock integrity check failures, labelled by reason.",
		}, []string{"reason"})

		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pocketsync_requests_total",
			Help: "Loopback API requests served.",
		}, []string{"method", "route", "status"})

		prometheus.MustRegister(syncCyclesTotal, syncedWorkTotal, integrityFailuresTotal, requestsTotal)
	})
}

// SyncCycles exposes the reconciliation cycle counter.
func SyncCycles() *prometheus.CounterVec {
	RegisterMetrics()
	return syncCyclesTotal
}

// SyncedWork exposes the drained work-item counter.
func SyncedWork() *prometheus.CounterVec {
	RegisterMetrics()
	return syncedWorkTotal
}

// IntegrityFailures exposes the clock tampering counter.
func IntegrityFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return integrityFailuresTotal
}

// Requests exposes the loopback API request counter.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}
