package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/botgpt/botgpt/pkg/config"
	"github.com/botgpt/botgpt/pkg/logging"
)

// Metric definitions
// Ensure that this follows best practices for naming: https://prometheus.io/docs/practices/naming/
var (
	metricNamePrefix = "botgpt"

	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamePrefix,
			Name:      "turns_total",
			Help:      "Total number of completed conversation turns, labeled by outcome (ok or degraded).",
		},
		[]string{"outcome"},
	)

	generationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamePrefix,
			Name:      "generation_failures_total",
			Help:      "Total number of failed calls to the text-generation service.",
		},
	)
)

// AddBuildInfoMetric adds a static metric with the build information
func AddBuildInfoMetric() {
	err := prometheus.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricNamePrefix,
			Name:      "build_info",
			Help:      "A metric with a constant '1' value labeled by version, branch, commit, build date, and goversion.",
			ConstLabels: prometheus.Labels{
				"version":   config.Version,
				"branch":    config.Branch,
				"commit":    config.Commit,
				"goversion": config.GoVersion,
			},
		},
		func() float64 { return 1 },
	))
	if err != nil {
		logging.Errorf(err, "Error registering build info metric")
	}
}

// RegisterTurnMetrics registers the turn pipeline metrics
func RegisterTurnMetrics() {
	for _, collector := range []prometheus.Collector{turnsTotal, generationFailures} {
		if err := prometheus.Register(collector); err != nil {
			logging.Errorf(err, "Error registering turn metric")
		}
	}
}

// ObserveTurn counts one completed turn
func ObserveTurn(degraded bool) {
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	turnsTotal.WithLabelValues(outcome).Inc()
}

// ObserveGenerationFailure counts one failed generation call
func ObserveGenerationFailure() {
	generationFailures.Inc()
}
