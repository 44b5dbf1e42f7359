package model

import "context"

// Record is a decoded row.
type Record struct {
	Line    int
	Profile CustomerProfile
}

// Batch is a unit of work handed from the dispatcher to the worker pool.
type Batch struct {
	JobID       string
	Seq         int
	Records     []Record
	RequesterIP string
	// Ctx is the owning job's context; cancelling it abandons the batch.
	Ctx context.Context
	// Done is invoked exactly once when the batch finishes, success or not.
	Done func(BatchOutcome)
}

// Context returns the batch context or context.Background when unset.
func (b *Batch) Context() context.Context {
	if b.Ctx == nil {
		return context.Background()
	}
	return b.Ctx
}

// BatchOutcome reports what happened to a batch.
type BatchOutcome struct {
	Size      int
	Persisted int
	Errors    []ProcessingError // per-record scoring failures
	Err       error             // fatal: persistence failure or cancellation
}

// Failed is the number of records not persisted.
func (o BatchOutcome) Failed() int {
	return o.Size - o.Persisted
}
