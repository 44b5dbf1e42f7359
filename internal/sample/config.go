// Package sample generates synthetic client files and drives them through a
// running service. It backs the churnctl tool and end-to-end checks.
package sample

import "time"

// Formats a sample file can be written in.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Config holds configuration for a sample run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Records      int           // Number of data rows to generate
	BadRows      int           // How many of them are deliberately invalid
	Format       string        // csv or xlsx
	Seed         uint64        // Generator seed; equal seeds give equal files
	Prefix       string        // user_id prefix
	OutputFile   string        // Where the file is written; empty uses a temp file
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between status polls
	Verbose      bool          // Log every poll
}

// JobReport is the client-side view of a job as returned by /batch/jobs/{id}.
type JobReport struct {
	JobID            string      `json:"job_id"`
	Status           string      `json:"status"`
	Filename         string      `json:"filename"`
	TotalRecords     int64       `json:"total_records"`
	ProcessedRecords int64       `json:"processed_records"`
	SuccessCount     int64       `json:"success_count"`
	ErrorCount       int64       `json:"error_count"`
	DurationMs       int64       `json:"duration_ms"`
	Throughput       float64     `json:"records_per_second"`
	Message          string      `json:"message"`
	Errors           []ErrorLine `json:"errors"`
}

// ErrorLine is one recorded processing error.
type ErrorLine struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Terminal reports whether the job will not change any more.
func (r JobReport) Terminal() bool {
	return r.Status == "COMPLETED" || r.Status == "FAILED"
}

// Stats holds run statistics.
type Stats struct {
	RowsGenerated int
	BadRows       int
	FileSize      int64
	JobID         string
	Report        JobReport
	Polls         int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}
