package repository

import "errors"

// Sentinel errors for persistence.
var (
	ErrNotFound      = errors.New("record not found")
	ErrStoreClosed   = errors.New("store closed")
	ErrUnknownDriver = errors.New("unknown store driver")
)
