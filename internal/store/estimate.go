package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/kubev2v/cost-estimator/internal/store/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const estimateTable = model.EstimateTableName

type Estimate interface {
	ReadWindow(ctx context.Context, key string) (*model.SampleWindow, error)
	WriteWindow(ctx context.Context, key string, window *model.SampleWindow) error
	ReadCurrentValue(ctx context.Context, key string) (uint64, bool, error)
	List(ctx context.Context, filter *EstimateQueryFilter, opts *EstimateQueryOptions) (model.EstimateList, error)
	Count(ctx context.Context, filter *EstimateQueryFilter) (int64, error)
}

type EstimateStore struct {
	db *gorm.DB
}

func NewEstimateStore(db *gorm.DB) Estimate {
	return &EstimateStore{db: db}
}

// ReadWindow returns the sample window stored under key, or an empty window
// if the key has never been written.
func (e *EstimateStore) ReadWindow(ctx context.Context, key string) (*model.SampleWindow, error) {
	var row model.Estimate
	result := e.getDB(ctx).Select("samples").Where("estimate_key = ?", key).Limit(1).Find(&row)
	if result.Error != nil {
		return nil, NewErrStorage("read samples", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.NewSampleWindow(), nil
	}

	window := model.NewSampleWindow()
	if err := json.Unmarshal([]byte(row.Samples), window); err != nil {
		zap.S().Named("store").Errorw("failed to parse stored samples", "key", key, "samples", row.Samples, "error", err)
		return nil, NewErrDeserialization(key, err)
	}
	return window, nil
}

// WriteWindow recomputes the mean of window and upserts the row for key.
// Means that do not fit a signed 64-bit column are clamped to math.MaxInt64.
func (e *EstimateStore) WriteWindow(ctx context.Context, key string, window *model.SampleWindow) error {
	samples, err := json.Marshal(window)
	if err != nil {
		return fmt.Errorf("failed to serialize samples of %q: %w", key, err)
	}

	mean := window.Mean()
	currentValue := int64(math.MaxInt64)
	if mean <= math.MaxInt64 {
		currentValue = int64(mean)
	}

	row := model.Estimate{
		EstimateKey:  key,
		CurrentValue: currentValue,
		Samples:      string(samples),
	}
	result := e.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "estimate_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"current_value", "samples"}),
	}).Create(&row)
	if result.Error != nil {
		return NewErrStorage("write samples", result.Error)
	}
	return nil
}

// ReadCurrentValue returns the cached estimate of key. found is false when
// the key has never been written.
func (e *EstimateStore) ReadCurrentValue(ctx context.Context, key string) (uint64, bool, error) {
	var row model.Estimate
	result := e.getDB(ctx).Select("current_value").Where("estimate_key = ?", key).Limit(1).Find(&row)
	if result.Error != nil {
		return 0, false, NewErrStorage("read current value", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	if row.CurrentValue < 0 {
		err := fmt.Errorf("negative current value %d", row.CurrentValue)
		zap.S().Named("store").Errorw("invalid stored estimate", "key", key, "error", err)
		return 0, false, NewErrDeserialization(key, err)
	}
	return uint64(row.CurrentValue), true, nil
}

func (e *EstimateStore) List(ctx context.Context, filter *EstimateQueryFilter, opts *EstimateQueryOptions) (model.EstimateList, error) {
	var rows model.EstimateList
	tx := e.getDB(ctx).Model(&rows)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&rows).Error; err != nil {
		return nil, NewErrStorage("list estimates", err)
	}
	return rows, nil
}

func (e *EstimateStore) Count(ctx context.Context, filter *EstimateQueryFilter) (int64, error) {
	var count int64
	tx := e.getDB(ctx).Model(&model.Estimate{})

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Count(&count).Error; err != nil {
		return 0, NewErrStorage("count estimates", err)
	}
	return count, nil
}

func (e *EstimateStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return e.db.WithContext(ctx)
}
