package store

import (
	"errors"
	"fmt"
)

var ErrNoTransaction = errors.New("transaction hasn't started yet")

// ErrStorage wraps a failure of the underlying database: I/O, locking or
// commit errors. The enclosing transaction is rolled back.
type ErrStorage struct {
	error
}

func NewErrStorage(op string, err error) *ErrStorage {
	return &ErrStorage{fmt.Errorf("storage error: %s: %w", op, err)}
}

func (e *ErrStorage) Unwrap() error {
	return errors.Unwrap(e.error)
}

// ErrDeserialization reports a persisted value that is present but cannot be
// decoded.
type ErrDeserialization struct {
	error
}

func NewErrDeserialization(key string, err error) *ErrDeserialization {
	return &ErrDeserialization{fmt.Errorf("corrupted estimate %q: %w", key, err)}
}

func (e *ErrDeserialization) Unwrap() error {
	return errors.Unwrap(e.error)
}
