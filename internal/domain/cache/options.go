package cache

const defaultMaxEntries = 10000

type config struct {
	maxEntries int
}

// Option configures a Bounded cache.
type Option func(*config)

// WithMaxEntries sets the capacity. 0 or negative disables eviction.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		c.maxEntries = n
	}
}
