package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"github.com/kubev2v/cost-estimator/internal/config"
	"github.com/kubev2v/cost-estimator/internal/store"
	"github.com/kubev2v/cost-estimator/internal/store/model"
	"github.com/kubev2v/cost-estimator/pkg/cost"
	"github.com/kubev2v/cost-estimator/pkg/metrics"
	"github.com/kubev2v/cost-estimator/pkg/migrations"
	"github.com/kubev2v/cost-estimator/pkg/operation"
	"go.uber.org/zap"
)

// CostEstimator pessimistically estimates the cost of operations.
//
// For each pair of estimation class and cost dimension it keeps the highest
// costs observed so far, and estimates the mean of them. It is safe for
// concurrent use: observations serialize on the store's write transaction
// and estimates read the last committed state.
type CostEstimator struct {
	store    store.Store
	classify operation.Classifier

	logEstimateError bool
	limit            cost.Vector
	resolution       uint64
}

type Option func(*CostEstimator)

// WithClassifier replaces operation.Classify as the source of estimation
// classes.
func WithClassifier(c operation.Classifier) Option {
	return func(e *CostEstimator) {
		e.classify = c
	}
}

// WithEstimateErrorLogging makes NotifyEvent log how far the prior estimate
// was from the observed cost. Both are folded into a scalar against limit.
func WithEstimateErrorLogging(limit cost.Vector, resolution uint64) Option {
	return func(e *CostEstimator) {
		e.logEstimateError = true
		e.limit = limit
		e.resolution = resolution
	}
}

// Open connects to the storage described by cfg, creating it and its schema
// when absent.
func Open(cfg *config.Config, opts ...Option) (*CostEstimator, error) {
	db, err := store.InitDB(cfg)
	if err != nil {
		return nil, NewErrStorageUnavailable(cfg.Database.Name, err)
	}

	s := store.NewStore(db)
	if err := migrations.MigrateStore(db, cfg.Database.Type); err != nil {
		_ = s.Close()
		return nil, NewErrStorageUnavailable(cfg.Database.Name, err)
	}

	if cfg.Service.LogEstimateError {
		opts = append([]Option{WithEstimateErrorLogging(cost.BlockLimit, cost.ProportionResolution)}, opts...)
	}

	return NewCostEstimator(s, opts...), nil
}

func NewCostEstimator(s store.Store, opts ...Option) *CostEstimator {
	e := &CostEstimator{
		store:    s,
		classify: operation.Classify,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NotifyEvent records the actual cost of op. All dimensions are updated in a
// single transaction: either every one of them is recorded or none is. When
// ctx already carries a transaction the writes join it and are committed or
// rolled back by its owner.
func (e *CostEstimator) NotifyEvent(ctx context.Context, op operation.Operation, actual cost.Vector) error {
	descriptor := e.classify(op)

	if e.logEstimateError {
		e.reportEstimateError(ctx, descriptor, actual)
	}

	if err := e.record(ctx, descriptor, actual); err != nil {
		metrics.IncreaseNotifyTotalMetric(metrics.ResultFailure)
		return err
	}

	metrics.IncreaseNotifyTotalMetric(metrics.ResultSuccess)
	return nil
}

// record joins the transaction already carried by ctx, leaving its commit
// to the caller. Otherwise it opens and finalizes its own.
func (e *CostEstimator) record(ctx context.Context, descriptor string, actual cost.Vector) error {
	owned := store.FromContext(ctx) == nil

	txCtx, err := e.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}
	if owned {
		// no-op once committed
		defer func() { _, _ = store.Rollback(txCtx) }()
	}

	for _, dim := range cost.Dimensions() {
		key := EstimateKey(descriptor, dim)

		window, err := e.store.Estimate().ReadWindow(txCtx, key)
		if err != nil {
			return err
		}

		window.Update(actual.Get(dim))

		if err := e.store.Estimate().WriteWindow(txCtx, key, window); err != nil {
			return err
		}
	}

	if !owned {
		return nil
	}
	if _, err := store.Commit(txCtx); err != nil {
		return err
	}
	return nil
}

// EstimateCost returns the current estimate of op. It fails with
// ErrNoEstimateAvailable if any dimension of its class was never observed.
func (e *CostEstimator) EstimateCost(ctx context.Context, op operation.Operation) (cost.Vector, error) {
	estimate, err := e.estimate(ctx, e.classify(op))
	if err != nil {
		var noEstimate *ErrNoEstimateAvailable
		if errors.As(err, &noEstimate) {
			metrics.IncreaseEstimateTotalMetric(metrics.ResultMiss)
		} else {
			metrics.IncreaseEstimateTotalMetric(metrics.ResultError)
		}
		return cost.Vector{}, err
	}

	metrics.IncreaseEstimateTotalMetric(metrics.ResultHit)
	return estimate, nil
}

func (e *CostEstimator) estimate(ctx context.Context, descriptor string) (cost.Vector, error) {
	var estimate cost.Vector
	for _, dim := range cost.Dimensions() {
		key := EstimateKey(descriptor, dim)

		value, found, err := e.store.Estimate().ReadCurrentValue(ctx, key)
		if err != nil {
			return cost.Vector{}, err
		}
		if !found {
			return cost.Vector{}, NewErrNoEstimateAvailable(descriptor, key)
		}

		estimate.Set(dim, value)
	}
	return estimate, nil
}

// reportEstimateError is informational only and never fails the caller.
func (e *CostEstimator) reportEstimateError(ctx context.Context, descriptor string, actual cost.Vector) {
	estimated, err := e.estimate(ctx, descriptor)
	if err != nil {
		return
	}

	estimatedScalar := estimated.ProportionDotProduct(e.limit, e.resolution)
	actualScalar := actual.ProportionDotProduct(e.limit, e.resolution)
	diff := float64(estimatedScalar) - float64(actualScalar)
	ratio := diff / math.Max(1, float64(actualScalar))

	log := zap.S().Named("estimator")
	log.Infow("estimator received event",
		"key", EstimateKey(descriptor, cost.Runtime),
		"estimate", estimatedScalar,
		"actual", actualScalar,
		"estimate_err", diff,
		"estimate_err_pct", ratio,
	)
	for _, dim := range cost.Dimensions() {
		log.Debugw("new data event received", "key", EstimateKey(descriptor, dim), "value", actual.Get(dim))
	}

	metrics.ObserveEstimateErrorMetric(ratio)
}

// EstimateRecord is the decoded content of one stored estimate.
type EstimateRecord struct {
	Class     string   `json:"class"`
	Dimension string   `json:"dimension"`
	Value     uint64   `json:"value"`
	Samples   []uint64 `json:"samples"`
}

// ListEstimates returns the stored estimates, optionally restricted to one
// class, highest first. limit <= 0 means no limit.
func (e *CostEstimator) ListEstimates(ctx context.Context, class string, limit int) ([]EstimateRecord, error) {
	filter := store.NewEstimateQueryFilter()
	if class != "" {
		filter = filter.ByClass(class)
	}
	opts := store.NewEstimateQueryOptions().WithSortOrder(store.SortByValue)
	if limit > 0 {
		opts = opts.WithLimit(limit)
	}

	rows, err := e.store.Estimate().List(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	records := make([]EstimateRecord, 0, len(rows))
	for _, row := range rows {
		descriptor, dim, err := SplitEstimateKey(row.EstimateKey)
		if err != nil {
			zap.S().Named("estimator").Warnw("skipping unrecognized estimate key", "key", row.EstimateKey, "error", err)
			continue
		}

		window := model.NewSampleWindow()
		if err := json.Unmarshal([]byte(row.Samples), window); err != nil {
			return nil, store.NewErrDeserialization(row.EstimateKey, err)
		}
		if row.CurrentValue < 0 {
			return nil, store.NewErrDeserialization(row.EstimateKey, errors.New("negative current value"))
		}

		records = append(records, EstimateRecord{
			Class:     descriptor,
			Dimension: dim.String(),
			Value:     uint64(row.CurrentValue),
			Samples:   window.Values(),
		})
	}
	return records, nil
}

func (e *CostEstimator) Store() store.Store {
	return e.store
}

func (e *CostEstimator) Close() error {
	return e.store.Close()
}
