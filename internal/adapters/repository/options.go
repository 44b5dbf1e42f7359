package repository

import "github.com/okian/churnbatch/pkg/logger"

// Default bulk writer configuration.
const (
	DefaultChunkSize = 2000
	DefaultIOWorkers = 16
)

// Option applies a configuration option to the BulkWriter.
type Option func(*BulkWriter)

// WithChunkSize sets the number of records per insert transaction.
func WithChunkSize(n int) Option {
	return func(w *BulkWriter) {
		if n > 0 {
			w.chunkSize = n
		}
	}
}

// WithIOWorkers bounds concurrent chunk inserts across all writes.
func WithIOWorkers(n int) Option {
	return func(w *BulkWriter) {
		if n > 0 {
			w.ioWorkers = n
		}
	}
}

// WithLogger sets the writer logger.
func WithLogger(l logger.Logger) Option {
	return func(w *BulkWriter) {
		if l != nil {
			w.log = l
		}
	}
}
