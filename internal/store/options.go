package store

import (
	"strings"

	"gorm.io/gorm"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type EstimateQueryFilter BaseQuerier

func NewEstimateQueryFilter() *EstimateQueryFilter {
	return &EstimateQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

// ByClass keeps the rows of one estimation class.
func (qf *EstimateQueryFilter) ByClass(descriptor string) *EstimateQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("estimate_key LIKE ? ESCAPE '\\'", escapeLike(descriptor)+":%")
	})
	return qf
}

// ByDimension keeps the rows whose key ends with the dimension name.
func (qf *EstimateQueryFilter) ByDimension(name string) *EstimateQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("estimate_key LIKE ? ESCAPE '\\'", "%:"+escapeLike(name))
	})
	return qf
}

func (qf *EstimateQueryFilter) ByKeys(keys []string) *EstimateQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("estimate_key IN ?", keys)
	})
	return qf
}

type EstimateQueryOptions BaseQuerier

func NewEstimateQueryOptions() *EstimateQueryOptions {
	return &EstimateQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

type SortOrder int

const (
	SortByKey SortOrder = iota
	SortByValue
)

func (o *EstimateQueryOptions) WithSortOrder(sort SortOrder) *EstimateQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		switch sort {
		case SortByKey:
			return tx.Order("estimate_key")
		case SortByValue:
			return tx.Order("current_value DESC").Order("estimate_key")
		default:
			return tx
		}
	})
	return o
}

func (o *EstimateQueryOptions) WithLimit(limit int) *EstimateQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
	return o
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
