package jobs

import "errors"

// Sentinel errors for the job registry.
var (
	ErrNotFound         = errors.New("job not found")
	ErrDuplicate        = errors.New("job already registered")
	ErrTerminal         = errors.New("job already finished")
	ErrInvalidJob       = errors.New("invalid job")
	ErrNegativeProgress = errors.New("progress counts must not be negative")
)
