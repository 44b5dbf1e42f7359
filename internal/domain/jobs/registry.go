// Package jobs tracks batch jobs from upload to completion.
//
// Progress counters are plain atomics so that many batch callbacks can report
// concurrently; they hold the entry's read lock only to observe the status.
// Status transitions take the write lock, which makes "terminal" a barrier:
// once Complete or Fail returns, no further counter update is accepted.
package jobs

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/pkg/logger"
	"github.com/okian/churnbatch/pkg/metrics"
)

// StatusView is the flat job status returned to pollers.
type StatusView struct {
	JobID        string          `json:"job_id"`
	Status       model.JobStatus `json:"status"`
	Processed    int64           `json:"processed"`
	SuccessCount int64           `json:"success_count"`
	ErrorCount   int64           `json:"error_count"`
	Message      string          `json:"message"`
}

type entry struct {
	mu  sync.RWMutex
	job model.BatchJob // counters excluded

	processed atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
}

func (e *entry) snapshot() model.BatchJob {
	e.mu.RLock()
	defer e.mu.RUnlock()

	j := e.job
	j.ProcessedRecords = e.processed.Load()
	j.SuccessCount = e.success.Load()
	j.ErrorCount = e.failed.Load()
	j.Errors = append([]model.ProcessingError(nil), e.job.Errors...)
	return j
}

// Registry is a concurrent map of jobs.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*entry

	retention time.Duration
	errorCap  int
	now       func() time.Time
	logger    logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		jobs:      make(map[string]*entry),
		retention: DefaultRetention,
		errorCap:  DefaultErrorCap,
		now:       time.Now,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers job in INITIALIZING state with an unknown total.
func (r *Registry) Create(job model.BatchJob) error {
	if job.JobID == "" {
		return ErrInvalidJob
	}

	e := &entry{job: job}
	e.job.Status = model.StatusInitializing
	e.job.TotalRecords = -1
	e.job.ProcessedRecords, e.job.SuccessCount, e.job.ErrorCount = 0, 0, 0
	e.job.EndTime = time.Time{}
	e.job.Errors = nil
	if e.job.StartTime.IsZero() {
		e.job.StartTime = r.now()
	}

	r.mu.Lock()
	if _, exists := r.jobs[job.JobID]; exists {
		r.mu.Unlock()
		return ErrDuplicate
	}
	r.jobs[job.JobID] = e
	n := len(r.jobs)
	r.mu.Unlock()

	metrics.RecordJobSubmitted()
	metrics.UpdateJobsTracked(n)
	return nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (model.BatchJob, bool) {
	e, err := r.lookup(id)
	if err != nil {
		return model.BatchJob{}, false
	}
	return e.snapshot(), true
}

// Status returns the flat status view of the job.
func (r *Registry) Status(id string) (StatusView, bool) {
	j, ok := r.Get(id)
	if !ok {
		return StatusView{}, false
	}
	return StatusView{
		JobID:        j.JobID,
		Status:       j.Status,
		Processed:    j.ProcessedRecords,
		SuccessCount: j.SuccessCount,
		ErrorCount:   j.ErrorCount,
		Message:      j.Message,
	}, true
}

// List returns snapshots of all tracked jobs, newest first.
func (r *Registry) List() []model.BatchJob {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]model.BatchJob, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out
}

// mutate runs fn under the entry's write lock unless the job is terminal.
func (r *Registry) mutate(id string, fn func(j *model.BatchJob)) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job.Status.IsTerminal() {
		return ErrTerminal
	}
	fn(&e.job)
	return nil
}

// MarkRunning moves the job to RUNNING.
func (r *Registry) MarkRunning(id string, message string) error {
	return r.mutate(id, func(j *model.BatchJob) {
		j.Status = model.StatusRunning
		j.Message = message
	})
}

// SetTotal records the number of data rows once decoding has finished.
func (r *Registry) SetTotal(id string, total int64) error {
	if total < 0 {
		return ErrNegativeProgress
	}
	return r.mutate(id, func(j *model.BatchJob) {
		j.TotalRecords = total
	})
}

// SetMessage updates the human-readable job message.
func (r *Registry) SetMessage(id string, message string) error {
	return r.mutate(id, func(j *model.BatchJob) {
		j.Message = message
	})
}

// AddProgress adds success and failed records to the job counters.
func (r *Registry) AddProgress(id string, success, failed int64) error {
	if success < 0 || failed < 0 {
		return ErrNegativeProgress
	}
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.job.Status.IsTerminal() {
		return ErrTerminal
	}
	e.success.Add(success)
	e.failed.Add(failed)
	e.processed.Add(success + failed)
	return nil
}

// AppendError records a processing error. Errors beyond the cap are dropped;
// the returned bool reports whether pe was kept.
func (r *Registry) AppendError(id string, pe model.ProcessingError) (bool, error) {
	var kept bool
	err := r.mutate(id, func(j *model.BatchJob) {
		if len(j.Errors) < r.errorCap {
			j.Errors = append(j.Errors, pe)
			kept = true
		}
	})
	return kept, err
}

// Complete moves the job to COMPLETED.
func (r *Registry) Complete(id string, message string) error {
	return r.finish(id, model.StatusCompleted, message)
}

// Fail moves the job to FAILED.
func (r *Registry) Fail(id string, message string) error {
	return r.finish(id, model.StatusFailed, message)
}

func (r *Registry) finish(id string, status model.JobStatus, message string) error {
	var elapsed time.Duration
	err := r.mutate(id, func(j *model.BatchJob) {
		j.Status = status
		j.Message = message
		j.EndTime = r.now()
		elapsed = j.Duration(j.EndTime)
	})
	if err != nil {
		return err
	}
	metrics.RecordJobFinished(string(status), elapsed)
	return nil
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Sweep evicts finished jobs whose end time is older than the retention
// period and returns how many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.retention)

	r.mu.Lock()
	removed := 0
	for id, e := range r.jobs {
		e.mu.RLock()
		expired := e.job.Status.IsTerminal() && e.job.EndTime.Before(cutoff)
		e.mu.RUnlock()
		if expired {
			delete(r.jobs, id)
			removed++
		}
	}
	n := len(r.jobs)
	r.mu.Unlock()

	metrics.RecordJobsEvicted(removed)
	metrics.UpdateJobsTracked(n)
	return removed
}

// StartSweeper runs Sweep every interval until ctx ends. The returned channel
// is closed when the sweeper exits.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					r.logger.Info(ctx, "evicted finished jobs", logger.Int("count", n))
				}
			}
		}
	}()
	return done
}
