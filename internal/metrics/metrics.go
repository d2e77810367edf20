// Package metrics holds the prometheus collectors of the resolver and its providers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector of this package.
var Registry = prometheus.NewRegistry()

var (
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elmdeps_resolutions_total",
			Help: "Number of dependency resolutions by connectivity and outcome.",
		},
		[]string{"connectivity", "outcome"},
	)

	ResolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "elmdeps_resolution_duration_seconds",
			Help:    "Time taken to resolve dependencies.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"connectivity"},
	)

	SolverDecisionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "elmdeps_solver_decisions_total",
			Help: "Total number of version decisions made by the solver.",
		},
	)

	SolverConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "elmdeps_solver_conflicts_total",
			Help: "Total number of conflicts resolved by the solver.",
		},
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elmdeps_provider_requests_total",
			Help: "Number of provider queries by provider, operation and source.",
		},
		[]string{"provider", "operation", "source"},
	)

	RegistryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elmdeps_registry_requests_total",
			Help: "Number of HTTP requests sent to the package registry by status.",
		},
		[]string{"status"},
	)

	FallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "elmdeps_progressive_fallbacks_total",
			Help: "Number of progressive resolutions that fell back to the online registry.",
		},
	)
)

func init() {
	Registry.MustRegister(
		ResolutionsTotal,
		ResolutionDuration,
		SolverDecisionsTotal,
		SolverConflictsTotal,
		ProviderRequestsTotal,
		RegistryRequestsTotal,
		FallbacksTotal,
	)
}

// WriteFile writes the current value of every collector to path in the text exposition format.
func WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
