package decoder

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
)

const sniffSize = 64 << 10

var utf8BOM = []byte{0xEF, 0xBB, 0xBF} //nolint:gochecknoglobals // constant byte sequence

// candidateDelimiters in order of preference on ties.
var candidateDelimiters = []rune{',', ';', '\t', '|'} //nolint:gochecknoglobals // read-only

func (s *session) decodeCSV(r io.Reader) error {
	br := bufio.NewReaderSize(r, sniffSize)

	if bom, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return err
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) && !errors.Is(err, ErrFileTooLarge) && s.cols != nil {
			if err := s.malformed(perr.StartLine, err); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		line, _ := cr.FieldPos(0)
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

	if s.cols == nil {
		return &SchemaError{Missing: append([]string(nil), RequiredColumns...)}
	}
	return nil
}

// detectDelimiter picks the candidate that occurs most often outside quotes
// on the first line. Comma wins when nothing else is seen.
func detectDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}

	counts := make(map[rune]int, len(candidateDelimiters))
	inQuotes := false
	for _, b := range head {
		if b == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		for _, d := range candidateDelimiters {
			if rune(b) == d {
				counts[d]++
			}
		}
	}

	best := candidateDelimiters[0]
	for _, d := range candidateDelimiters[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}
