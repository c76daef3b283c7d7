package service

import (
	"fmt"
	"strings"

	"github.com/kubev2v/cost-estimator/pkg/cost"
)

// EstimateKey identifies the statistic of one (class, dimension) pair. The
// dimension name is always the last ':' separated segment, so two distinct
// pairs never share a key.
func EstimateKey(descriptor string, dim cost.Dimension) string {
	return descriptor + ":" + dim.String()
}

// SplitEstimateKey is the inverse of EstimateKey.
func SplitEstimateKey(key string) (string, cost.Dimension, error) {
	i := strings.LastIndex(key, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("estimate key %q has no dimension", key)
	}
	dim, err := cost.ParseDimension(key[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("estimate key %q: %w", key, err)
	}
	return key[:i], dim, nil
}
