package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/churnbatch/internal/sample"
)

func generateCmd() *cobra.Command {
	cfg := &sample.Config{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic client file",
		Long: `Write a deterministic CSV or XLSX file of client profiles.
Bad rows are spread evenly through the file and fail validation on purpose.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, stats, err := sample.Generate(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d rows (%d bad), %d bytes\n",
				path, stats.RowsGenerated, stats.BadRows, stats.FileSize)
			return nil
		},
	}

	addSampleFlags(cmd, cfg)
	cmd.Flags().StringVarP(&cfg.OutputFile, "out", "o", "", "Output file (default: a timestamped file in the temp dir)")

	return cmd
}

// addSampleFlags binds the generator flags shared by generate and run.
func addSampleFlags(cmd *cobra.Command, cfg *sample.Config) {
	cmd.Flags().IntVarP(&cfg.Records, "records", "n", sample.DefaultRecords, "Number of data rows")
	cmd.Flags().IntVar(&cfg.BadRows, "bad", 0, "Number of invalid rows")
	cmd.Flags().StringVarP(&cfg.Format, "format", "f", sample.FormatCSV, "File format (csv, xlsx)")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 1, "Generator seed")
	cmd.Flags().StringVar(&cfg.Prefix, "prefix", sample.DefaultPrefix, "user_id prefix")
}
