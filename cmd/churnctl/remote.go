package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/churnbatch/internal/sample"
	"github.com/okian/churnbatch/pkg/logger"
)

const defaultURL = "http://localhost:9080"

func runCmd() *cobra.Command {
	cfg := &sample.Config{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a file, upload it to a running service and verify the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(); err != nil {
				return err
			}
			stats, err := sample.Run(cmd.Context(), cfg, logger.Get())
			if stats != nil && stats.JobID != "" {
				_ = printJSON(cmd.OutOrStdout(), stats.Report)
			}
			return err
		},
	}

	addSampleFlags(cmd, cfg)
	cmd.Flags().StringVar(&cfg.BaseURL, "url", defaultURL, "Base URL of the service")
	cmd.Flags().StringVarP(&cfg.OutputFile, "out", "o", "", "Keep the generated file at this path")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", sample.DefaultTimeout, "HTTP request timeout")
	cmd.Flags().DurationVar(&cfg.PollInterval, "poll", sample.DefaultPollInterval, "Status poll interval")
	cmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log every poll")

	return cmd
}

func statusCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show a job from a running service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := sample.NewClient(baseURL, sample.DefaultTimeout).Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", defaultURL, "Base URL of the service")
	return cmd
}

func cancelCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "cancel [job-id]",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sample.NewClient(baseURL, sample.DefaultTimeout).Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelling %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", defaultURL, "Base URL of the service")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
