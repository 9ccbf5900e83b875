// Package metrics exposes Prometheus counters for relationship writes and
// reconciliation runs. All collectors live on Registry, which is served by
// the /metrics route.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coachshare"

// Registry holds every collector defined in this package plus the Go runtime
// and process collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// RelationshipWrites counts relationship operations by operation and outcome
	// (changed, noop, partial, failed).
	RelationshipWrites = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relationship",
		Name:      "writes_total",
		Help:      "Relationship model operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// PartialWrites counts two-document writes where exactly one side failed.
	PartialWrites = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relationship",
		Name:      "partial_writes_total",
		Help:      "Two-sided writes that left the relationship asymmetric.",
	}, []string{"operation"})

	// Repairs counts fixes applied by the reconciliation engine by repair kind.
	Repairs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "repairs_total",
		Help:      "Relationship repairs applied by reconciliation runs.",
	}, []string{"kind"})

	// OrphansPurged counts workout logs deleted because their regimen no longer exists.
	OrphansPurged = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "orphan_logs_purged_total",
		Help:      "Workout logs deleted for referencing a missing regimen.",
	})

	// HTTPRequests counts served requests by method, route template and status.
	HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	// PushFailures counts best-effort real-time pushes that failed.
	PushFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "push_failures_total",
		Help:      "Real-time notification pushes that failed.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
