package metrics

import (
	"context"
	"fmt"

	"github.com/kubev2v/cost-estimator/internal/store"
	"github.com/kubev2v/cost-estimator/pkg/cost"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type estimateStatsCollector struct {
	store          store.Store
	totalEstimates *prometheus.Desc
	totalByDim     *prometheus.Desc
}

func newEstimateStatsCollector(s store.Store) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_estimates_%s", costEstimator, name)
	}

	return &estimateStatsCollector{
		store: s,
		totalEstimates: prometheus.NewDesc(
			fqName("total"),
			"Total number of stored estimates.",
			nil,
			prometheus.Labels{},
		),
		totalByDim: prometheus.NewDesc(
			fqName("by_dimension_total"),
			"Total number of stored estimates by cost dimension. Equals the number of estimation classes seen.",
			[]string{"dimension"},
			prometheus.Labels{},
		),
	}
}

// RegisterEstimateCollector registers a collector reporting the row counts
// of s with reg.
func RegisterEstimateCollector(reg prometheus.Registerer, s store.Store) error {
	return reg.Register(newEstimateStatsCollector(s))
}

func (c *estimateStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalEstimates
	ch <- c.totalByDim
}

// Collect implements Collector.
func (c *estimateStatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()

	total, err := c.store.Estimate().Count(ctx, nil)
	if err != nil {
		zap.S().Named("estimate_collector").Errorf("failed to collect estimate statistics: %s", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.totalEstimates, prometheus.GaugeValue, float64(total))

	for _, dim := range cost.Dimensions() {
		count, err := c.store.Estimate().Count(ctx, store.NewEstimateQueryFilter().ByDimension(dim.String()))
		if err != nil {
			zap.S().Named("estimate_collector").Errorf("failed to count estimates of %s: %s", dim, err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.totalByDim, prometheus.GaugeValue, float64(count), dim.String())
	}
}
