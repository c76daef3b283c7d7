package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	costEstimator = "cost_estimator"

	// Estimator metrics
	notifyTotal        = "notify_total"
	estimateTotal      = "estimate_total"
	estimateErrorRatio = "estimate_error_ratio"

	// Labels
	resultLabel = "result"

	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultError   = "error"
)

var resultLabels = []string{
	resultLabel,
}

/**
* Metrics definition
**/
var notifyTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: costEstimator,
		Name:      notifyTotal,
		Help:      "number of observations recorded, by result",
	},
	resultLabels,
)

var estimateTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: costEstimator,
		Name:      estimateTotal,
		Help:      "number of estimates requested, by result",
	},
	resultLabels,
)

var estimateErrorRatioMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Subsystem: costEstimator,
		Name:      estimateErrorRatio,
		Help:      "signed error of the prior estimate relative to the observed cost",
		Buckets:   []float64{-1, -0.5, -0.25, -0.1, 0, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
)

func IncreaseNotifyTotalMetric(result string) {
	labels := prometheus.Labels{
		resultLabel: result,
	}
	notifyTotalMetric.With(labels).Inc()
}

func IncreaseEstimateTotalMetric(result string) {
	labels := prometheus.Labels{
		resultLabel: result,
	}
	estimateTotalMetric.With(labels).Inc()
}

func ObserveEstimateErrorMetric(ratio float64) {
	estimateErrorRatioMetric.Observe(ratio)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(notifyTotalMetric)
	prometheus.MustRegister(estimateTotalMetric)
	prometheus.MustRegister(estimateErrorRatioMetric)
}
