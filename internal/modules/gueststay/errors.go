package gueststay

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("guest stay not found")
	// ErrConcurrencyConflict means every attempt lost the append race.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrReadModelDisabled   = errors.New("read model is not configured")
)
