package sample

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/churnbatch/pkg/logger"
)

// Generate writes a sample file per cfg and returns its path and stats.
func Generate(cfg *Config) (string, *Stats, error) {
	if cfg.Records <= 0 {
		cfg.Records = DefaultRecords
	}
	if cfg.Format == "" {
		cfg.Format = FormatCSV
	}

	path := cfg.OutputFile
	if path == "" {
		path = filepath.Join(os.TempDir(),
			fmt.Sprintf("churn_sample_%s.%s", time.Now().Format("20060102_150405"), cfg.Format))
	}

	rows, badIdx := NewGenerator(cfg.Seed, cfg.Prefix).Rows(cfg.Records, cfg.BadRows)
	size, err := WriteFile(path, cfg.Format, rows)
	if err != nil {
		return "", nil, err
	}
	return path, &Stats{RowsGenerated: len(rows), BadRows: len(badIdx), FileSize: size}, nil
}

// Run generates a file, uploads it, waits for the job and verifies the
// outcome.
func Run(ctx context.Context, cfg *Config, lg logger.Logger) (*Stats, error) {
	if lg == nil {
		lg = logger.Nop()
	}
	start := time.Now()

	lg.Info(ctx, "starting sample run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("records", cfg.Records),
		logger.Int("badRows", cfg.BadRows),
		logger.String("format", cfg.Format))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	path, stats, err := Generate(cfg)
	if err != nil {
		return nil, fmt.Errorf("generate sample: %w", err)
	}
	if cfg.OutputFile == "" {
		defer func() { _ = os.Remove(path) }()
	}
	stats.StartTime = start
	lg.Info(ctx, "sample written", logger.String("path", path), logger.Int64("bytes", stats.FileSize))

	id, err := client.Upload(ctx, path)
	if err != nil {
		return stats, fmt.Errorf("upload: %w", err)
	}
	stats.JobID = id
	lg.Info(ctx, "job accepted", logger.String("jobID", id))

	rep, polls, err := client.Await(ctx, id, cfg.PollInterval, func(r JobReport) {
		if cfg.Verbose {
			lg.Info(ctx, "progress",
				logger.String("status", r.Status),
				logger.Int64("processed", r.ProcessedRecords),
				logger.Int64("errors", r.ErrorCount))
		}
	})
	stats.Polls = polls
	stats.Report = rep
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	if err != nil {
		return stats, fmt.Errorf("await job %s: %w", id, err)
	}

	lg.Info(ctx, "job finished",
		logger.String("jobID", id),
		logger.String("status", rep.Status),
		logger.Int64("success", rep.SuccessCount),
		logger.Int64("errors", rep.ErrorCount),
		logger.Float64("recordsPerSecond", rep.Throughput),
		logger.Duration("elapsed", stats.Duration))

	return stats, Verify(rep, stats.RowsGenerated, stats.BadRows, false)
}
