package service

import (
	"github.com/okian/churnbatch/internal/config"
	"github.com/okian/churnbatch/pkg/logger"
)

// ConfigOptions translates a loaded Config into service options.
func ConfigOptions(cfg *config.Config, l logger.Logger) []Option {
	minLatency, maxLatency := cfg.ScoringLatency()
	return []Option{
		WithLogger(l),
		WithBatchSize(cfg.BatchSize),
		WithMaxInFlightBatches(cfg.MaxInFlightBatches),
		WithBatchWorkers(cfg.BatchWorkers),
		WithInferenceThreads(cfg.InferenceThreads),
		WithScoringWorkers(cfg.ScoringWorkers),
		WithChunkSize(cfg.ChunkSize),
		WithInsertThreads(cfg.InsertThreads),
		WithMaxRecords(cfg.MaxRecords),
		WithMaxFileSize(cfg.MaxFileSize()),
		WithJobRetention(cfg.JobRetention()),
		WithSweepInterval(cfg.SweepInterval()),
		WithJobTimeout(cfg.JobTimeout()),
		WithCache(cfg.CacheEnabled, cfg.CacheSize),
		WithStore(cfg.StoreDriver, cfg.DatabasePath),
		WithModelPath(cfg.ModelPath),
		WithThreshold(cfg.ChurnThreshold),
		WithScoringLatencyRange(minLatency, maxLatency),
		WithUploadDir(cfg.UploadDir),
	}
}
