// Package decoder streams customer profiles out of uploaded CSV and XLSX
// files.
//
// Decoding is single-pass: each row is parsed, validated and handed to a
// Handler before the next row is read. Header problems, the record ceiling and
// the size ceiling abort the file; bad rows are reported and skipped.
package decoder

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/pkg/logger"
	"github.com/okian/churnbatch/pkg/metrics"
)

// Format identifies an input file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromFilename picks the format from the file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Handler receives decoded rows in file order.
type Handler interface {
	// OnRecord receives a valid record. A non-nil error aborts decoding.
	OnRecord(ctx context.Context, rec model.Record) error
	// OnRowError receives a row that was skipped.
	OnRowError(perr model.ProcessingError)
}

// HandlerFuncs adapts plain functions to Handler. Nil funcs are ignored.
type HandlerFuncs struct {
	Record   func(ctx context.Context, rec model.Record) error
	RowError func(perr model.ProcessingError)
}

func (h HandlerFuncs) OnRecord(ctx context.Context, rec model.Record) error {
	if h.Record == nil {
		return nil
	}
	return h.Record(ctx, rec)
}

func (h HandlerFuncs) OnRowError(perr model.ProcessingError) {
	if h.RowError != nil {
		h.RowError(perr)
	}
}

// Summary describes a finished decode.
type Summary struct {
	Rows      int // non-blank data rows read
	Records   int // rows handed to OnRecord
	RowErrors int // rows handed to OnRowError
}

// Decoder turns files into records.
type Decoder struct {
	maxRecords  int
	maxFileSize int64
	log         logger.Logger
}

// New creates a Decoder.
func New(opts ...Option) *Decoder {
	d := &Decoder{
		maxRecords:  DefaultMaxRecords,
		maxFileSize: DefaultMaxFileSize,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxFileSize returns the configured byte ceiling.
func (d *Decoder) MaxFileSize() int64 {
	return d.maxFileSize
}

// Decode reads r in the given format and feeds h. It returns a SchemaError,
// LimitError, ErrFileTooLarge, a Handler error or a context error when
// decoding stops early; the Summary covers the rows seen until then.
func (d *Decoder) Decode(ctx context.Context, r io.Reader, format Format, h Handler) (Summary, error) {
	s := &session{
		ctx:        ctx,
		handler:    h,
		maxRecords: d.maxRecords,
	}
	lr := &limitedReader{r: r, remaining: d.maxFileSize}

	var err error
	switch format {
	case FormatCSV:
		err = s.decodeCSV(lr)
	case FormatXLSX:
		err = s.decodeXLSX(lr)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	d.log.Debug(ctx, "decode finished",
		logger.String("format", string(format)),
		logger.Int("rows", s.summary.Rows),
		logger.Int("records", s.summary.Records),
		logger.Int("row_errors", s.summary.RowErrors),
		logger.Error(err),
	)
	return s.summary, err
}

// session holds per-call decoding state.
type session struct {
	ctx        context.Context
	handler    Handler
	maxRecords int
	cols       columns
	summary    Summary
}

// header resolves the column table from the first non-blank row.
func (s *session) header(row []string) error {
	cols, err := resolveColumns(row)
	if err != nil {
		metrics.RecordRowError("schema")
		return err
	}
	s.cols = cols
	return nil
}

// row processes one data row. line is 1-based in the source file.
func (s *session) row(row []string, line int) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if isBlankRow(row) {
		return nil
	}
	if err := s.count(); err != nil {
		return err
	}

	profile, err := parseRow(s.cols, row, line)
	if err != nil {
		s.rowError(line, err)
		return nil
	}

	metrics.RecordRecordDecoded()
	s.summary.Records++
	return s.handler.OnRecord(s.ctx, model.Record{Line: line, Profile: profile})
}

// malformed reports a row the reader could not split into fields. It counts
// as a data row like any other bad row.
func (s *session) malformed(line int, err error) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if err := s.count(); err != nil {
		return err
	}
	s.rowError(line, err)
	return nil
}

// count registers a non-blank data row against the record ceiling.
func (s *session) count() error {
	s.summary.Rows++
	if s.summary.Rows > s.maxRecords {
		return &LimitError{Limit: s.maxRecords}
	}
	return nil
}

func (s *session) rowError(line int, err error) {
	metrics.RecordRowError("parse")
	s.summary.RowErrors++
	s.handler.OnRowError(model.ProcessingError{Line: line, Message: err.Error()})
}

// limitedReader fails with ErrFileTooLarge once more than remaining bytes
// have been read.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrFileTooLarge
	}
	// Allow one byte past the limit to detect overflow.
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}
