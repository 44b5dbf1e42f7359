package worker

import (
	"time"

	"github.com/okian/churnbatch/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkerCount sets how many batches are processed concurrently.
func WithWorkerCount(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workerCount = n
		}
	}
}

// WithInferenceThreads bounds how many records are scored at once across all
// batches.
func WithInferenceThreads(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.inferenceThreads = int64(n)
		}
	}
}

// WithClock sets the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
