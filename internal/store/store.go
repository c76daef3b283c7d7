package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Estimate() Estimate
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	estimate Estimate
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		estimate: NewEstimateStore(db),
		db:       db,
	}
}

// NewTransactionContext begins an exclusive write transaction and returns a
// context carrying it. Every store call made with the returned context runs
// inside that transaction until Commit or Rollback.
func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Estimate() Estimate {
	return s.estimate
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
