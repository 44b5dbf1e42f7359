// Package service wires the batch prediction pipeline together and exposes
// the operations the HTTP API and CLI depend on.
package service

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/okian/churnbatch/internal/adapters/decoder"
	"github.com/okian/churnbatch/internal/adapters/mq/queue"
	"github.com/okian/churnbatch/internal/adapters/mq/worker"
	"github.com/okian/churnbatch/internal/adapters/repository"
	"github.com/okian/churnbatch/internal/domain/cache"
	"github.com/okian/churnbatch/internal/domain/jobs"
	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/internal/domain/scoring"
	"github.com/okian/churnbatch/pkg/logger"
	"github.com/okian/churnbatch/pkg/metrics"
)

// Default service configuration.
const (
	defaultBatchSize     = 5000
	defaultMaxInFlight   = 8
	defaultChunkSize     = 2000
	defaultInsertThreads = 16
	defaultCacheSize     = 10000
	defaultRetention     = 24 * time.Hour
	defaultSweepInterval = time.Hour
	waitPollInterval     = 20 * time.Millisecond
)

// Service runs batch jobs.
type Service struct {
	mu sync.RWMutex

	// Core components
	decoder     *decoder.Decoder
	registry    *jobs.Registry
	queue       *queue.BatchQueue
	pool        *worker.Pool
	gateway     *scoring.Gateway
	engine      scoring.Engine
	store       repository.Store
	customStore repository.Store
	writer      *repository.BulkWriter
	meta        scoring.ModelMetadata

	// Configuration
	batchSize         int
	maxInFlight       int
	batchWorkers      int
	inferenceThreads  int
	scoringWorkers    int
	chunkSize         int
	insertThreads     int
	maxRecords        int
	maxFileSize       int64
	retention         time.Duration
	sweepInterval     time.Duration
	jobTimeout        time.Duration
	cacheEnabled      bool
	cacheSize         int
	storeDriver       string
	databasePath      string
	modelPath         string
	threshold         float64
	scoringMinLatency time.Duration
	scoringMaxLatency time.Duration
	uploadDir         string

	// State
	started   bool
	jobsCtx   context.Context
	stopJobs  context.CancelCauseFunc
	sweeper   <-chan struct{}
	runningMu sync.Mutex
	running   map[string]*runningJob
	runningWG sync.WaitGroup

	// Logging
	logger logger.Logger
}

type runningJob struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		batchSize:        defaultBatchSize,
		maxInFlight:      defaultMaxInFlight,
		batchWorkers:     runtime.NumCPU(),
		inferenceThreads: runtime.NumCPU(),
		scoringWorkers:   runtime.NumCPU(),
		chunkSize:        defaultChunkSize,
		insertThreads:    defaultInsertThreads,
		maxRecords:       decoder.DefaultMaxRecords,
		maxFileSize:      decoder.DefaultMaxFileSize,
		retention:        defaultRetention,
		sweepInterval:    defaultSweepInterval,
		cacheSize:        defaultCacheSize,
		storeDriver:      repository.DriverMemory,
		running:          make(map[string]*runningJob),
		logger:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting churn batch service...")

	meta := scoring.DefaultModelMetadata()
	if s.modelPath != "" {
		loaded, err := scoring.LoadModelMetadata(s.modelPath)
		if err != nil {
			return err
		}
		meta = loaded
	}
	if s.threshold > 0 {
		meta.Threshold = s.threshold
	}
	s.meta = meta

	store := s.customStore
	if store == nil {
		opened, err := repository.Open(ctx, s.storeDriver, s.databasePath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		store = opened
	}
	s.store = store
	s.writer = repository.NewBulkWriter(store,
		repository.WithChunkSize(s.chunkSize),
		repository.WithIOWorkers(s.insertThreads),
		repository.WithLogger(s.logger.Named("writer")),
	)

	if s.engine == nil {
		s.engine = scoring.NewLogisticEngine(meta, scoring.WithLatencyRange(s.scoringMinLatency, s.scoringMaxLatency))
	}
	gatewayOpts := []scoring.Option{
		scoring.WithWorkers(s.scoringWorkers),
		scoring.WithThreshold(meta.Threshold),
		scoring.WithChurnIndex(meta.ChurnIndex),
		scoring.WithLogger(s.logger.Named("scoring")),
	}
	if s.cacheEnabled {
		gatewayOpts = append(gatewayOpts, scoring.WithCache(cache.NewBounded[scoring.Prediction](cache.WithMaxEntries(s.cacheSize))))
	}
	s.gateway = scoring.NewGateway(s.engine, gatewayOpts...)

	s.decoder = decoder.New(
		decoder.WithMaxRecords(s.maxRecords),
		decoder.WithMaxFileSize(s.maxFileSize),
		decoder.WithLogger(s.logger.Named("decoder")),
	)
	s.registry = jobs.NewRegistry(
		jobs.WithRetention(s.retention),
		jobs.WithLogger(s.logger.Named("jobs")),
	)
	s.queue = queue.NewBatchQueue(queue.WithPermits(s.maxInFlight))

	// The pool outlives job cancellation so cancelled batches still report.
	s.pool = worker.NewPool(s.queue, s.gateway, s.writer,
		worker.WithWorkerCount(s.batchWorkers),
		worker.WithInferenceThreads(s.inferenceThreads),
		worker.WithLogger(s.logger.Named("worker")),
	)
	s.pool.Start(context.Background())

	s.jobsCtx, s.stopJobs = context.WithCancelCause(context.Background())
	s.sweeper = s.registry.StartSweeper(s.jobsCtx, s.sweepInterval)

	if s.uploadDir == "" {
		s.uploadDir = os.TempDir()
	} else if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	s.started = true
	s.logger.Info(ctx, "churn batch service started",
		logger.String("model", meta.Name),
		logger.String("model_version", meta.Version),
		logger.Float64("threshold", meta.Threshold),
		logger.Int("batch_size", s.batchSize),
		logger.Int("max_in_flight", s.maxInFlight),
		logger.Int("batch_workers", s.batchWorkers),
		logger.Int("inference_threads", s.inferenceThreads),
		logger.String("store", s.storeDriver),
	)
	return nil
}

// Stop cancels running jobs, waits for them to reach a terminal state and
// shuts the pipeline down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping churn batch service...")

	s.stopJobs(ErrStopping)
	s.runningWG.Wait()
	<-s.sweeper

	s.pool.Stop()
	_ = s.queue.Close()
	s.gateway.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "churn batch service stopped")
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Job returns a snapshot of the job.
func (s *Service) Job(id string) (model.BatchJob, bool) {
	if !s.isStarted() {
		return model.BatchJob{}, false
	}
	return s.registry.Get(id)
}

// JobStatus returns the flat status view of the job.
func (s *Service) JobStatus(id string) (jobs.StatusView, bool) {
	if !s.isStarted() {
		return jobs.StatusView{}, false
	}
	return s.registry.Status(id)
}

// Jobs returns all tracked jobs, newest first.
func (s *Service) Jobs() []model.BatchJob {
	if !s.isStarted() {
		return nil
	}
	return s.registry.List()
}

// Wait blocks until the job is terminal or ctx ends.
func (s *Service) Wait(ctx context.Context, id string) (model.BatchJob, error) {
	if !s.isStarted() {
		return model.BatchJob{}, ErrNotStarted
	}

	s.runningMu.Lock()
	rj, ok := s.running[id]
	s.runningMu.Unlock()
	if ok {
		select {
		case <-rj.done:
		case <-ctx.Done():
			return model.BatchJob{}, ctx.Err()
		}
	}

	// The job may be between submission and registration of its runner.
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	for {
		j, ok := s.registry.Get(id)
		if !ok {
			return model.BatchJob{}, ErrJobNotFound
		}
		if j.Status.IsTerminal() {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return model.BatchJob{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cancel stops a running job. The job ends FAILED once its in-flight batches
// have drained.
func (s *Service) Cancel(id string) error {
	if !s.isStarted() {
		return ErrNotStarted
	}

	s.runningMu.Lock()
	rj, ok := s.running[id]
	s.runningMu.Unlock()
	if ok {
		rj.cancel(ErrJobCancelled)
		return nil
	}
	if _, exists := s.registry.Get(id); exists {
		return ErrJobFinished
	}
	return ErrJobNotFound
}

// CountPersisted returns the number of records in the store.
func (s *Service) CountPersisted(ctx context.Context) (int64, error) {
	if !s.isStarted() {
		return 0, ErrNotStarted
	}
	return s.writer.CountTotal(ctx)
}

// ModelHealthy reports whether the scoring engine is loaded.
func (s *Service) ModelHealthy() bool {
	if !s.isStarted() {
		return false
	}
	return s.gateway.IsHealthy()
}

// ModelMetadata returns the metadata of the loaded model.
func (s *Service) ModelMetadata() scoring.ModelMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// ClearCache drops cached predictions.
func (s *Service) ClearCache() {
	if !s.isStarted() {
		return
	}
	s.gateway.ClearCache()
	s.logger.Info(context.Background(), "prediction cache cleared")
}

// MaxFileSize returns the upload byte ceiling.
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"batchSize":        s.batchSize,
		"maxInFlight":      s.maxInFlight,
		"batchWorkers":     s.batchWorkers,
		"inferenceThreads": s.inferenceThreads,
		"scoringWorkers":   s.scoringWorkers,
		"chunkSize":        s.chunkSize,
		"insertThreads":    s.insertThreads,
		"cacheEnabled":     s.cacheEnabled,
		"storeDriver":      s.storeDriver,
	}

	if s.started {
		s.runningMu.Lock()
		active := len(s.running)
		s.runningMu.Unlock()

		tracked := s.registry.Len()
		stats["activeJobs"] = active
		stats["trackedJobs"] = tracked
		stats["batchesInFlight"] = s.queue.InFlight()
		stats["cacheEntries"] = s.gateway.CacheSize()
		stats["modelHealthy"] = s.gateway.IsHealthy()
		stats["model"] = s.meta.Name
		stats["modelVersion"] = s.meta.Version
		stats["threshold"] = s.meta.Threshold

		metrics.UpdateJobsTracked(tracked)
		metrics.UpdateBatchesInFlight(s.queue.InFlight())
	}

	return stats
}
