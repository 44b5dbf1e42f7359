package jobs

import (
	"time"

	"github.com/okian/churnbatch/pkg/logger"
)

// Default registry configuration.
const (
	DefaultRetention = 24 * time.Hour
	DefaultErrorCap  = 50
)

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithRetention sets how long finished jobs stay queryable.
func WithRetention(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// WithErrorCap bounds the per-job error list.
func WithErrorCap(n int) Option {
	return func(r *Registry) {
		if n >= 0 {
			r.errorCap = n
		}
	}
}

// WithClock sets the registry time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets a custom logger for the registry.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}
