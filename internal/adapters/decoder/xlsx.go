package decoder

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// decodeXLSX reads the first sheet. The zip container needs random access, so
// the (size-limited) file is buffered; rows are then streamed.
func (s *session) decodeXLSX(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &SchemaError{Missing: append([]string(nil), RequiredColumns...)}
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	defer rows.Close()

	line := 0
	for rows.Next() {
		line++
		// Raw values: number formats would otherwise turn 0.4 into "40%".
		row, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return fmt.Errorf("read row %d: %w", line, err)
		}

		if s.cols == nil {
			if isBlankRow(row) {
				continue
			}
			if err := s.header(row); err != nil {
				return err
			}
			continue
		}
		if err := s.row(row, line); err != nil {
			return err
		}
	}
	if err := rows.Error(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}

	if s.cols == nil {
		return &SchemaError{Missing: append([]string(nil), RequiredColumns...)}
	}
	return nil
}
