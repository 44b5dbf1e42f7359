// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config holding every default.
// - Load layers a YAML file and CHURN_ environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// BatchSize is the number of records handed to a worker at once.
	BatchSize int `koanf:"batch_size"`

	// MaxInFlightBatches bounds batches queued or running across all jobs.
	MaxInFlightBatches int `koanf:"max_in_flight_batches"`

	// BatchWorkers sets the size of the batch worker pool.
	BatchWorkers int `koanf:"batch_workers"`

	// InferenceThreads bounds concurrent record scoring.
	InferenceThreads int `koanf:"inference_threads"`

	// ScoringWorkers sets the scoring gateway pool size.
	ScoringWorkers int `koanf:"scoring_workers"`

	// ChunkSize and InsertThreads shape bulk persistence.
	ChunkSize     int `koanf:"chunk_size"`
	InsertThreads int `koanf:"insert_threads"`

	// MaxRecords and MaxFileSizeMB are the per-upload ceilings.
	MaxRecords    int `koanf:"max_records"`
	MaxFileSizeMB int `koanf:"max_file_size_mb"`

	// JobRetentionHours is how long finished jobs stay queryable.
	JobRetentionHours int `koanf:"job_retention_hours"`

	// SweepIntervalMinutes is how often finished jobs are evicted.
	SweepIntervalMinutes int `koanf:"sweep_interval_minutes"`

	// JobTimeoutSeconds bounds a single job; 0 disables the limit.
	JobTimeoutSeconds int `koanf:"job_timeout_seconds"`

	// CacheEnabled and CacheSize configure the prediction cache.
	CacheEnabled bool `koanf:"cache_enabled"`
	CacheSize    int  `koanf:"cache_size"`

	// StoreDriver is sqlite or memory; DatabasePath is the SQLite file.
	StoreDriver  string `koanf:"store_driver"`
	DatabasePath string `koanf:"database_path"`

	// ModelPath points at the model metadata YAML; empty uses the bundled model.
	ModelPath string `koanf:"model_path"`

	// ChurnThreshold overrides the model threshold when set.
	ChurnThreshold float64 `koanf:"churn_threshold"`

	// ScoringLatencyMinMS and ScoringLatencyMaxMS simulate external ML latency bounds.
	ScoringLatencyMinMS int `koanf:"scoring_latency_min_ms"`
	ScoringLatencyMaxMS int `koanf:"scoring_latency_max_ms"`

	// UploadDir is where uploads are spooled; empty uses the OS temp dir.
	UploadDir string `koanf:"upload_dir"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		BatchSize:            5000,
		MaxInFlightBatches:   8,
		BatchWorkers:         runtime.NumCPU(),
		InferenceThreads:     runtime.NumCPU(),
		ScoringWorkers:       runtime.NumCPU(),
		ChunkSize:            2000,
		InsertThreads:        16,
		MaxRecords:           100_000,
		MaxFileSizeMB:        50,
		JobRetentionHours:    24,
		SweepIntervalMinutes: 60,
		JobTimeoutSeconds:    0,
		CacheEnabled:         true,
		CacheSize:            10_000,
		StoreDriver:          StoreSQLite,
		DatabasePath:         "data/churn.db",
		ScoringLatencyMinMS:  0,
		ScoringLatencyMaxMS:  0,
	}
}

// Validate checks the values that would otherwise fail deep inside the
// pipeline.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	case c.MaxInFlightBatches < 1:
		return fmt.Errorf("%w: max_in_flight_batches must be positive", ErrInvalidConfig)
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	case c.MaxRecords < 1:
		return fmt.Errorf("%w: max_records must be positive", ErrInvalidConfig)
	case c.MaxFileSizeMB < 1:
		return fmt.Errorf("%w: max_file_size_mb must be positive", ErrInvalidConfig)
	case c.JobTimeoutSeconds < 0:
		return fmt.Errorf("%w: job_timeout_seconds must not be negative", ErrInvalidConfig)
	case c.ChurnThreshold < 0 || c.ChurnThreshold >= 1:
		return fmt.Errorf("%w: churn_threshold must be in [0,1)", ErrInvalidConfig)
	case c.ScoringLatencyMaxMS < c.ScoringLatencyMinMS:
		return fmt.Errorf("%w: scoring_latency_max_ms below scoring_latency_min_ms", ErrInvalidConfig)
	}

	switch c.StoreDriver {
	case StoreSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("%w: database_path is required for the sqlite store", ErrInvalidConfig)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	return nil
}

// MaxFileSize returns the upload ceiling in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// JobRetention returns the retention window.
func (c *Config) JobRetention() time.Duration {
	return time.Duration(c.JobRetentionHours) * time.Hour
}

// SweepInterval returns the eviction interval.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// JobTimeout returns the per-job budget, zero when unlimited.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// ScoringLatency returns the simulated latency range.
func (c *Config) ScoringLatency() (time.Duration, time.Duration) {
	return time.Duration(c.ScoringLatencyMinMS) * time.Millisecond,
		time.Duration(c.ScoringLatencyMaxMS) * time.Millisecond
}
