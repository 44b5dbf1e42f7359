package sample

import (
	"errors"
	"fmt"
)

// ErrVerification is returned when a finished job does not match the file
// that was sent.
var ErrVerification = errors.New("verification failed")

// Verify checks the final report against what was generated. Every row must
// be accounted for and exactly the corrupted rows must fail. Failed records
// beyond the bad rows are allowed only when allowScoringErrors is set.
func Verify(rep JobReport, rows, bad int, allowScoringErrors bool) error {
	var problems []string

	if rep.Status != "COMPLETED" {
		problems = append(problems, fmt.Sprintf("status %s (%s)", rep.Status, rep.Message))
	}
	if rep.TotalRecords != int64(rows) {
		problems = append(problems, fmt.Sprintf("total_records %d, want %d", rep.TotalRecords, rows))
	}
	if rep.ProcessedRecords != int64(rows) {
		problems = append(problems, fmt.Sprintf("processed_records %d, want %d", rep.ProcessedRecords, rows))
	}
	if rep.SuccessCount+rep.ErrorCount != rep.ProcessedRecords {
		problems = append(problems, fmt.Sprintf("success %d + errors %d != processed %d",
			rep.SuccessCount, rep.ErrorCount, rep.ProcessedRecords))
	}
	switch {
	case rep.ErrorCount < int64(bad):
		problems = append(problems, fmt.Sprintf("error_count %d, want at least %d", rep.ErrorCount, bad))
	case rep.ErrorCount > int64(bad) && !allowScoringErrors:
		problems = append(problems, fmt.Sprintf("error_count %d, want %d", rep.ErrorCount, bad))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrVerification, problems)
}
