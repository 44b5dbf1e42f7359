package queue

// Option applies a configuration option to the BatchQueue.
type Option func(*BatchQueue)

// WithPermits sets how many batches may be in flight at once.
func WithPermits(n int) Option {
	return func(q *BatchQueue) {
		if n > 0 {
			q.permits = make(chan struct{}, n)
		}
	}
}
