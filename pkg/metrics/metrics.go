// Package metrics defines the Prometheus collectors for the command pipeline
// and an HTTP exporter for them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voicecmd"

// Translation results.
const (
	ResultOK       = "ok"
	ResultSentinel = "sentinel"
)

var (
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Transcripts translated, by result (ok or sentinel).",
		},
		[]string{"result"},
	)

	translationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_seconds",
			Help:      "Time spent translating a transcript, oracle call included.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery attempts to the robot controller, by outcome.",
		},
		[]string{"outcome"},
	)

	deliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_seconds",
			Help:      "Time from connect to ack or failure for one delivery.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	captureErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Command cycles aborted before translation, by kind.",
		},
		[]string{"kind"},
	)
)

var allMetrics = []prometheus.Collector{
	translationsTotal,
	translationDuration,
	deliveriesTotal,
	deliveryDuration,
	captureErrorsTotal,
}

// Collectors returns every collector defined by this package.
func Collectors() []prometheus.Collector {
	out := make([]prometheus.Collector, len(allMetrics))
	copy(out, allMetrics)
	return out
}

// RecordTranslation counts one translation and observes its duration.
func RecordTranslation(result string, seconds float64) {
	translationsTotal.WithLabelValues(result).Inc()
	translationDuration.Observe(seconds)
}

// RecordDelivery counts one delivery attempt and observes its duration.
func RecordDelivery(outcome string, seconds float64) {
	deliveriesTotal.WithLabelValues(outcome).Inc()
	deliveryDuration.Observe(seconds)
}

// RecordCaptureError counts an aborted capture.
func RecordCaptureError(kind string) {
	captureErrorsTotal.WithLabelValues(kind).Inc()
}
