package dispatch

import (
	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithBatchSize sets how many records go into a batch.
func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithRequesterIP tags every batch with the uploader's address.
func WithRequesterIP(ip string) Option {
	return func(d *Dispatcher) {
		d.requesterIP = ip
	}
}

// WithOnComplete sets the callback invoked once per batch. It runs on a
// worker goroutine and must be safe for concurrent use.
func WithOnComplete(fn func(model.BatchOutcome)) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.onComplete = fn
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}
