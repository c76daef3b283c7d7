package model

import "fmt"

// EstimateTableName is the on-disk table name shared with existing
// deployments.
const EstimateTableName = "pessimistic_estimator"

// Estimate is one persisted (class, dimension) statistic.
type Estimate struct {
	EstimateKey  string `gorm:"primaryKey;column:estimate_key;type:TEXT"`
	CurrentValue int64  `gorm:"column:current_value;not null"`
	Samples      string `gorm:"column:samples;type:TEXT;not null"`
}

func (Estimate) TableName() string {
	return EstimateTableName
}

type EstimateList []Estimate

func (e Estimate) String() string {
	return fmt.Sprintf("%s=%d %s", e.EstimateKey, e.CurrentValue, e.Samples)
}
