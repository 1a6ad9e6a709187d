package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	UnitsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classgen_units_generated_total",
		Help: "Total number of compilation units generated, by outcome.",
	}, []string{"outcome"})

	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "classgen_unit_generation_seconds",
		Help:    "Time spent generating a single compilation unit.",
		Buckets: prometheus.DefBuckets,
	})

	PassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classgen_passes_total",
		Help: "Total number of driver passes over the unit set.",
	})

	ClassesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classgen_classes_emitted_total",
		Help: "Total number of classes written by the emitter.",
	})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classgen_diagnostics_total",
		Help: "Total number of diagnostics reported, by severity.",
	}, []string{"severity"})

	ClassInits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classgen_class_inits",
		Help: "Current number of classes that require a static initializer call.",
	})
)
