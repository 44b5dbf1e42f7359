package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/churnbatch/internal/adapters/decoder"
	"github.com/okian/churnbatch/internal/adapters/mq/dispatch"
	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/pkg/logger"
	"github.com/okian/churnbatch/pkg/metrics"
)

// Upload is a file submitted for processing.
type Upload struct {
	Filename    string
	Size        int64 // declared size, <= 0 when unknown
	RequesterIP string
	Body        io.Reader
}

// Submit validates and spools the upload, registers a job and starts
// processing it in the background. Errors are only returned before the job
// is accepted; afterwards failures are reported through the job status.
func (s *Service) Submit(ctx context.Context, up Upload) (string, error) {
	if !s.isStarted() {
		return "", ErrNotStarted
	}

	format, err := decoder.FormatFromFilename(up.Filename)
	if err != nil {
		metrics.RecordErrorByComponent("service", "unsupported_format")
		return "", err
	}
	if up.Size > s.maxFileSize {
		metrics.RecordErrorByComponent("service", "file_too_large")
		return "", fmt.Errorf("%w: %d bytes exceeds %d", decoder.ErrFileTooLarge, up.Size, s.maxFileSize)
	}
	if up.Body == nil {
		return "", ErrEmptyUpload
	}

	path, size, err := s.spool(ctx, up.Body, format)
	if err != nil {
		return "", err
	}
	if size == 0 {
		s.removeSpool(path)
		return "", ErrEmptyUpload
	}

	id := uuid.NewString()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		s.removeSpool(path)
		return "", ErrNotStarted
	}

	job := model.BatchJob{JobID: id, Filename: filepath.Base(up.Filename), FileSize: size}
	if err := s.registry.Create(job); err != nil {
		s.removeSpool(path)
		return "", err
	}

	jobCtx, cancel := context.WithCancelCause(s.jobsCtx)
	rj := &runningJob{cancel: cancel, done: make(chan struct{})}
	s.runningMu.Lock()
	s.running[id] = rj
	s.runningMu.Unlock()

	s.runningWG.Add(1)
	go s.run(jobCtx, rj, id, path, format, up.RequesterIP)

	s.logger.Info(ctx, "job accepted",
		logger.String("job_id", id),
		logger.String("filename", job.Filename),
		logger.Int64("size", size),
		logger.String("requester_ip", up.RequesterIP),
	)
	return id, nil
}

// spool copies body to a temp file, enforcing the size ceiling.
func (s *Service) spool(ctx context.Context, body io.Reader, format decoder.Format) (string, int64, error) {
	f, err := os.CreateTemp(s.uploadDir, "churn-upload-*."+string(format))
	if err != nil {
		return "", 0, fmt.Errorf("spool upload: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(&ctxReader{ctx: ctx, r: body}, s.maxFileSize+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxFileSize {
		metrics.RecordErrorByComponent("service", "file_too_large")
		err = fmt.Errorf("%w: upload exceeds %d bytes", decoder.ErrFileTooLarge, s.maxFileSize)
	}
	if err != nil {
		s.removeSpool(f.Name())
		return "", 0, err
	}
	return f.Name(), n, nil
}

func (s *Service) removeSpool(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn(context.Background(), "failed to remove spooled upload",
			logger.String("path", path),
			logger.Error(err),
		)
	}
}

// ctxReader stops reading once ctx ends.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// run owns a job from RUNNING to its terminal state.
func (s *Service) run(ctx context.Context, rj *runningJob, id, path string, format decoder.Format, requesterIP string) {
	defer s.runningWG.Done()
	defer close(rj.done)
	defer func() {
		s.runningMu.Lock()
		delete(s.running, id)
		s.runningMu.Unlock()
	}()
	defer rj.cancel(nil)
	defer s.removeSpool(path)
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("service", "panic")
			s.fail(ctx, id, fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	if s.jobTimeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeoutCause(ctx, s.jobTimeout, ErrJobTimeout)
		defer stop()
	}

	s.process(ctx, rj.cancel, id, path, format, requesterIP)
}

func (s *Service) process(ctx context.Context, abort context.CancelCauseFunc, id, path string, format decoder.Format, requesterIP string) {
	log := s.logger.With(logger.String("job_id", id))

	if err := s.registry.MarkRunning(id, "processing"); err != nil {
		log.Error(ctx, "cannot start job", logger.Error(err))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.fail(ctx, id, fmt.Sprintf("open upload: %v", err))
		return
	}
	defer f.Close()

	var batchFailures atomic.Int64
	d := dispatch.New(id, s.queue,
		dispatch.WithBatchSize(s.batchSize),
		dispatch.WithRequesterIP(requesterIP),
		dispatch.WithLogger(s.logger.Named("dispatch")),
		dispatch.WithOnComplete(func(o model.BatchOutcome) {
			for _, pe := range o.Errors {
				s.recordError(id, pe)
			}
			if err := s.registry.AddProgress(id, int64(o.Persisted), int64(o.Failed())); err != nil {
				log.Debug(ctx, "progress not recorded", logger.Error(err))
			}
			if o.Err != nil {
				batchFailures.Add(1)
				// Stops decoding; the first cause wins.
				abort(o.Err)
			}
		}),
	)

	summary, decodeErr := s.decoder.Decode(ctx, f, format, decoder.HandlerFuncs{
		Record: d.Add,
		RowError: func(pe model.ProcessingError) {
			s.recordError(id, pe)
			_ = s.registry.AddProgress(id, 0, 1)
		},
	})
	if decodeErr == nil {
		decodeErr = d.Flush(ctx)
	}
	if decodeErr == nil {
		_ = s.registry.SetTotal(id, int64(summary.Rows))
		_ = s.registry.SetMessage(id, fmt.Sprintf("decoded %d rows in %d batches", summary.Rows, d.Batches()))
	}
	d.Wait()

	switch cause := context.Cause(ctx); {
	case cause != nil:
		s.fail(ctx, id, failureMessage(cause))
	case decodeErr != nil:
		s.fail(ctx, id, failureMessage(decodeErr))
	default:
		s.complete(ctx, id, d.Batches())
		return
	}

	log.Debug(ctx, "job aborted",
		logger.Int("batches", d.Batches()),
		logger.Int64("failed_batches", batchFailures.Load()),
		logger.Int("rows", summary.Rows),
	)
}

func (s *Service) complete(ctx context.Context, id string, batches int) {
	job, _ := s.registry.Get(id)
	msg := fmt.Sprintf("processed %d records: %d succeeded, %d failed",
		job.ProcessedRecords, job.SuccessCount, job.ErrorCount)
	if err := s.registry.Complete(id, msg); err != nil {
		s.logger.Warn(ctx, "job already finished", logger.String("job_id", id), logger.Error(err))
		return
	}

	job, _ = s.registry.Get(id)
	now := time.Now()
	s.logger.Info(ctx, "job completed",
		logger.String("job_id", id),
		logger.String("filename", job.Filename),
		logger.Int64("records", job.ProcessedRecords),
		logger.Int64("success", job.SuccessCount),
		logger.Int64("errors", job.ErrorCount),
		logger.Int("batches", batches),
		logger.Duration("duration", job.Duration(now)),
		logger.Float64("records_per_second", job.Throughput(now)),
	)
}

func (s *Service) fail(ctx context.Context, id, msg string) {
	if err := s.registry.Fail(id, msg); err != nil {
		s.logger.Debug(ctx, "job not failed", logger.String("job_id", id), logger.Error(err))
		return
	}
	metrics.RecordErrorByComponent("service", "job_failed")
	s.logger.Warn(ctx, "job failed", logger.String("job_id", id), logger.String("reason", msg))
}

func (s *Service) recordError(id string, pe model.ProcessingError) {
	_, _ = s.registry.AppendError(id, pe)
}

// failureMessage turns a fatal job error into the message shown to pollers.
func failureMessage(err error) string {
	var schemaErr *decoder.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		return "schema validation failed: " + schemaErr.Error()
	case errors.Is(err, decoder.ErrRecordLimit),
		errors.Is(err, decoder.ErrFileTooLarge),
		errors.Is(err, ErrJobCancelled),
		errors.Is(err, ErrJobTimeout),
		errors.Is(err, ErrStopping):
		return err.Error()
	default:
		return "processing failed: " + err.Error()
	}
}
