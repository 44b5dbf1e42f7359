package scoring

import "errors"

// Sentinel errors for scoring.
var (
	ErrEngineUnavailable = errors.New("inference engine unavailable")
	ErrMalformedOutput   = errors.New("malformed engine output")
	ErrGatewayClosed     = errors.New("scoring gateway closed")
	ErrInvalidMetadata   = errors.New("invalid model metadata")
)
