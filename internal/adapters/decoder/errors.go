package decoder

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for decoding.
var (
	ErrSchema            = errors.New("schema validation failed")
	ErrRecordLimit       = errors.New("record limit exceeded")
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidValue      = errors.New("invalid value")
)

// SchemaError lists required columns absent from the header row.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// LimitError reports a file with more data rows than allowed.
type LimitError struct {
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("file exceeds the limit of %d records", e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrRecordLimit }

// RowError describes a value that could not be converted.
type RowError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: column %s: invalid value %q", e.Line, e.Column, e.Value)
}

func (e *RowError) Unwrap() error { return e.Err }
