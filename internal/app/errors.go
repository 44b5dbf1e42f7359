package service

import "errors"

// Sentinel errors for the service.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrJobNotFound  = errors.New("job not found")
	ErrJobFinished  = errors.New("job already finished")
	ErrJobCancelled = errors.New("job cancelled")
	ErrJobTimeout   = errors.New("job exceeded its time budget")
	ErrStopping     = errors.New("service stopping")
	ErrEmptyUpload  = errors.New("empty upload")
)
