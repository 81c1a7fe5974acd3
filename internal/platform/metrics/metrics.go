package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "generations_total",
		Help:      "Document generations by kind and outcome.",
	}, []string{"kind", "outcome"})

	GenerationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dashboard",
		Name:      "generation_duration_seconds",
		Help:      "Time from trigger to finished document.",
		Buckets:   []float64{0.5, 1, 1.5, 2, 2.5, 3, 5, 10, 30},
	}, []string{"kind"})

	Messages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "messages_total",
		Help:      "Transcript messages appended, by kind.",
	}, []string{"kind"})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "validation_failures_total",
		Help:      "Rejected user actions, by operation.",
	}, []string{"operation"})

	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dashboard",
		Name:      "sessions_active",
		Help:      "Open dashboard sessions.",
	})
)
