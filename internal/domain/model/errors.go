package model

import "errors"

// Sentinel errors for domain model validation.
var (
	ErrInvalidProfile = errors.New("invalid customer profile")
)
