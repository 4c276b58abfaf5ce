// Package metrics exposes run-level counters for the harvest pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "harvester"

// Registry is the Prometheus registry for all harvester metrics.
var Registry = prometheus.NewRegistry()

// EventsFound counts raw candidates extracted, per source.
var EventsFound = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_found_total",
		Help:      "Raw event candidates extracted from documents",
	},
	[]string{"source"},
)

// EventsRejected counts candidates dropped during normalization, by reason.
var EventsRejected = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_rejected_total",
		Help:      "Candidates rejected during normalization, by reason",
	},
	[]string{"source", "reason"},
)

// EventsPersisted counts canonical events handed to the store, by outcome
// (inserted or updated).
var EventsPersisted = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_persisted_total",
		Help:      "Canonical events upserted into the store, by outcome",
	},
	[]string{"source", "outcome"},
)

// FetchFailures counts fetch errors by kind (timeout, not_found, forbidden,
// dns, network).
var FetchFailures = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_failures_total",
		Help:      "Document fetch failures, by error kind",
	},
	[]string{"source", "kind"},
)

// RunDuration observes wall time per source run.
var RunDuration = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a single source run",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	},
	[]string{"source"},
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}
