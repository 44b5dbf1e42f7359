package model

import "time"

// ChurnLabel is the classification outcome of a prediction.
type ChurnLabel string

const (
	WillChurn ChurnLabel = "WILL_CHURN"
	WillStay  ChurnLabel = "WILL_STAY"
)

// BatchRequesterID marks records produced by file uploads.
const BatchRequesterID = "batch-file"

// ScoredRecord is the persisted result of scoring one profile.
type ScoredRecord struct {
	ID          string // UUIDv7, time-ordered
	Profile     CustomerProfile
	Label       ChurnLabel
	Probability float64 // churn probability in [0,1]
	Features    EngineeredFeatures
	Diagnosis   Diagnosis
	RequesterID string
	RequesterIP string
	CreatedAt   time.Time
}
