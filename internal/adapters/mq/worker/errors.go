package worker

import "errors"

// Sentinel errors reported through batch outcomes.
var (
	ErrBatchPanic  = errors.New("batch processing panicked")
	ErrPoolStopped = errors.New("worker pool stopped")
)
