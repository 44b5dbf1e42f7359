package model

import "time"

// JobStatus is the lifecycle state of a batch job.
type JobStatus string

const (
	StatusInitializing JobStatus = "INITIALIZING"
	StatusRunning      JobStatus = "RUNNING"
	StatusCompleted    JobStatus = "COMPLETED"
	StatusFailed       JobStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ProcessingError describes a record-level failure. Line is the 1-based
// source row; 0 means the error is not tied to a row.
type ProcessingError struct {
	Line    int
	Message string
}

// BatchJob is a snapshot of a job's state.
type BatchJob struct {
	JobID            string
	Status           JobStatus
	TotalRecords     int64 // -1 until decoding finishes
	ProcessedRecords int64
	SuccessCount     int64
	ErrorCount       int64
	StartTime        time.Time
	EndTime          time.Time
	Filename         string
	FileSize         int64
	Message          string
	Errors           []ProcessingError
}

// Duration is the elapsed time of the job, up to now when still running.
func (j BatchJob) Duration(now time.Time) time.Duration {
	if j.StartTime.IsZero() {
		return 0
	}
	end := j.EndTime
	if end.IsZero() {
		end = now
	}
	return end.Sub(j.StartTime)
}

// Throughput is processed records per second over Duration.
func (j BatchJob) Throughput(now time.Time) float64 {
	d := j.Duration(now).Seconds()
	if d <= 0 {
		return 0
	}
	return float64(j.ProcessedRecords) / d
}
