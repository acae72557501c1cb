package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registry = prometheus.NewRegistry()

	OpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "NamespaceDB",
			Subsystem: "fs",
			Name:      "operations_total",
			Help:      "namespace operations by name",
		},
		[]string{"op"},
	)

	OpErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "NamespaceDB",
			Subsystem: "fs",
			Name:      "operation_errors_total",
			Help:      "failed namespace operations by name",
		},
		[]string{"op"},
	)

	OpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "NamespaceDB",
			Subsystem: "fs",
			Name:      "operation_duration_seconds",
			Help:      "namespace operation latency by name",
		},
		[]string{"op"},
	)
)

func init() {
	Registry.MustRegister(
		OpTotal,
		OpErrors,
		OpDuration,
	)
}
