package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	app "github.com/okian/churnbatch/internal/app"
	"github.com/okian/churnbatch/internal/config"
	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/pkg/logger"
)

// processResult is printed when a local job finishes.
type processResult struct {
	JobID      string  `json:"job_id"`
	Status     string  `json:"status"`
	Total      int64   `json:"total_records"`
	Success    int64   `json:"success_count"`
	Errors     int64   `json:"error_count"`
	DurationMs int64   `json:"duration_ms"`
	Throughput float64 `json:"records_per_second"`
	Message    string  `json:"message"`
}

func processCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "process [file]",
		Short: "Score a file in-process without starting the HTTP server",
		Long: `Run one file through the full pipeline in this process using the
service configuration (CHURN_CONFIG and CHURN_* variables). The command exits
non-zero when the job fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}

			log := logger.Nop()
			if !quiet {
				if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
					return err
				}
				_ = logger.SetLevelString(cfg.LogLevel)
				log = logger.Get()
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return err
			}

			svc := app.New(app.ConfigOptions(cfg, log)...)
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			defer svc.Stop()

			id, err := svc.Submit(ctx, app.Upload{
				Filename:    filepath.Base(args[0]),
				Size:        info.Size(),
				RequesterIP: "local",
				Body:        f,
			})
			if err != nil {
				return err
			}

			job, err := svc.Wait(ctx, id)
			if err != nil {
				return err
			}

			now := job.EndTime
			if err := printJSON(cmd.OutOrStdout(), processResult{
				JobID:      job.JobID,
				Status:     string(job.Status),
				Total:      job.TotalRecords,
				Success:    job.SuccessCount,
				Errors:     job.ErrorCount,
				DurationMs: job.Duration(now).Milliseconds(),
				Throughput: job.Throughput(now),
				Message:    job.Message,
			}); err != nil {
				return err
			}

			if job.Status != model.StatusCompleted {
				return fmt.Errorf("job %s failed: %s", id, job.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress service logs")
	return cmd
}
