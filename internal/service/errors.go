package service

import (
	"errors"
	"fmt"
)

type ErrNoEstimateAvailable struct {
	error
}

func NewErrNoEstimateAvailable(descriptor string, key string) *ErrNoEstimateAvailable {
	return &ErrNoEstimateAvailable{fmt.Errorf("no estimate available for %s: %s was never observed", descriptor, key)}
}

type ErrStorageUnavailable struct {
	error
}

func NewErrStorageUnavailable(location string, err error) *ErrStorageUnavailable {
	return &ErrStorageUnavailable{fmt.Errorf("storage %q unavailable: %w", location, err)}
}

func (e *ErrStorageUnavailable) Unwrap() error {
	return errors.Unwrap(e.error)
}
