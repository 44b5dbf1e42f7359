package service

import (
	"time"

	"github.com/okian/churnbatch/internal/adapters/repository"
	"github.com/okian/churnbatch/internal/domain/scoring"
	"github.com/okian/churnbatch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBatchSize sets the number of records per batch.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMaxInFlightBatches sets how many batches may be queued or running at
// once across all jobs.
func WithMaxInFlightBatches(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxInFlight = n
		}
	}
}

// WithBatchWorkers sets the size of the batch worker pool.
func WithBatchWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchWorkers = n
		}
	}
}

// WithInferenceThreads bounds concurrent record scoring across batches.
func WithInferenceThreads(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.inferenceThreads = n
		}
	}
}

// WithScoringWorkers sets the scoring gateway pool size.
func WithScoringWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scoringWorkers = n
		}
	}
}

// WithChunkSize sets the bulk insert chunk size.
func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithInsertThreads sets the size of the persistence I/O pool.
func WithInsertThreads(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.insertThreads = n
		}
	}
}

// WithMaxRecords sets the per-file record ceiling.
func WithMaxRecords(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRecords = n
		}
	}
}

// WithMaxFileSize sets the upload byte ceiling.
func WithMaxFileSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithJobRetention sets how long finished jobs stay queryable.
func WithJobRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSweepInterval sets how often finished jobs are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithJobTimeout bounds the wall-clock time of a single job. Zero disables
// the limit.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.jobTimeout = d
		}
	}
}

// WithCache enables the prediction cache with room for size entries.
func WithCache(enabled bool, size int) Option {
	return func(s *Service) {
		s.cacheEnabled = enabled
		if size > 0 {
			s.cacheSize = size
		}
	}
}

// WithStore selects the persistence driver and its location.
func WithStore(driver, path string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storeDriver = driver
		}
		s.databasePath = path
	}
}

// WithRepository persists into st instead of opening a store by driver. The
// service closes st on Stop.
func WithRepository(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.customStore = st
		}
	}
}

// WithModelPath loads model metadata from a YAML file.
func WithModelPath(path string) Option {
	return func(s *Service) {
		s.modelPath = path
	}
}

// WithThreshold overrides the model's churn threshold.
func WithThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 && t < 1 {
			s.threshold = t
		}
	}
}

// WithScoringLatencyRange sets the simulated scoring latency range.
func WithScoringLatencyRange(min, max time.Duration) Option {
	return func(s *Service) {
		if min > 0 && max > min {
			s.scoringMinLatency = min
			s.scoringMaxLatency = max
		}
	}
}

// WithEngine replaces the bundled logistic engine.
func WithEngine(e scoring.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithUploadDir sets where uploads are spooled before decoding.
func WithUploadDir(dir string) Option {
	return func(s *Service) {
		s.uploadDir = dir
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
