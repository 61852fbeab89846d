// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orggraph"

var latencyBuckets = []float64{
	0.001, 0.002, 0.005,
	0.01, 0.02, 0.05,
	0.1, 0.2, 0.5,
	1, 2, 5, 10,
}

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status class.",
	}, []string{"route", "code"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "latency_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   latencyBuckets,
	}, []string{"route"})

	WorkspaceLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "workspace",
		Name:      "loads_total",
		Help:      "Profile loads by the source the graph came from.",
	}, []string{"source"})

	WorkspaceSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "workspace",
		Name:      "saves_total",
		Help:      "Structure saves by result.",
	}, []string{"result"})

	Autosaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "workspace",
		Name:      "autosaves_total",
		Help:      "Local draft autosaves by result.",
	}, []string{"result"})

	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "recipients_total",
		Help:      "Resolved notification recipients by priority.",
	}, []string{"priority"})

	ExportRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Profile export runs by result.",
	}, []string{"result"})
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultSkip  = "skipped"
)

// Result returns the result label for err.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
