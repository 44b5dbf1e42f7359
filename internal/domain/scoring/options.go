package scoring

import (
	"runtime"

	"github.com/okian/churnbatch/internal/domain/cache"
	"github.com/okian/churnbatch/pkg/logger"
)

// Default gateway configuration.
const (
	DefaultThreshold  = 0.5
	DefaultChurnIndex = 1
)

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithWorkers sets the number of goroutines allowed to call the engine.
func WithWorkers(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithThreshold sets the churn probability at or above which a record is
// labelled WILL_CHURN.
func WithThreshold(t float64) Option {
	return func(g *Gateway) {
		if t > 0 && t < 1 {
			g.threshold = t
		}
	}
}

// WithChurnIndex selects which engine output holds the churn probability
// when the engine returns one value per class.
func WithChurnIndex(i int) Option {
	return func(g *Gateway) {
		if i >= 0 {
			g.churnIndex = i
		}
	}
}

// WithCache enables prediction caching by user id.
func WithCache(c cache.Cache[Prediction]) Option {
	return func(g *Gateway) {
		g.cache = c
	}
}

// WithLogger sets the gateway logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

func defaultWorkers() int {
	return runtime.NumCPU()
}
