package sample

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Generator produces deterministic rows of client profiles.
type Generator struct {
	rng    *rand.Rand
	prefix string
}

// NewGenerator creates a generator; the same seed always yields the same rows.
func NewGenerator(seed uint64, prefix string) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Generator{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		prefix: prefix,
	}
}

// Rows builds n data rows of which bad are invalid, spread evenly through the
// file. It also returns the 0-based indexes of the invalid rows.
func (g *Generator) Rows(n, bad int) ([][]string, []int) {
	bad = max(0, min(bad, n))
	badAt := make(map[int]struct{}, bad)
	badIdx := make([]int, 0, bad)
	for k := 0; k < bad; k++ {
		i := k * n / bad
		badAt[i] = struct{}{}
		badIdx = append(badIdx, i)
	}

	rows := make([][]string, n)
	for i := range rows {
		rows[i] = g.row(i)
		if _, ok := badAt[i]; ok {
			corrupt(rows[i], i)
		}
	}
	return rows, badIdx
}

func (g *Generator) row(i int) []string {
	sub := pick(g.rng, subscriptions)
	free := sub == "Free"

	ads := 0
	if free {
		ads = g.rng.IntN(41)
	}
	offline := "0"
	if !free && g.rng.IntN(2) == 1 {
		offline = "1"
	}

	row := make([]string, len(Header))
	row[colUserID] = fmt.Sprintf("%s-%06d", g.prefix, i)
	row[colGender] = pick(g.rng, genders)
	row[colAge] = strconv.Itoa(16 + g.rng.IntN(60))
	row[colCountry] = pick(g.rng, countries)
	row[colSubscription] = sub
	row[colListeningTime] = strconv.FormatFloat(10+g.rng.Float64()*290, 'f', 1, 64)
	row[colSongsPerDay] = strconv.Itoa(1 + g.rng.IntN(100))
	row[colSkipRate] = strconv.FormatFloat(g.rng.Float64()*0.6, 'f', 2, 64)
	row[colAdsPerWeek] = strconv.Itoa(ads)
	row[colDevice] = pick(g.rng, devices)
	row[colOffline] = offline

	// Optional metrics are sometimes missing in real exports.
	if g.rng.IntN(25) == 0 {
		row[colListeningTime] = ""
	}
	return row
}

// corrupt makes a row fail validation in one of several ways.
func corrupt(row []string, i int) {
	switch i % 5 {
	case 0:
		row[colAge] = "abc"
	case 1:
		row[colAge] = "7"
	case 2:
		row[colSkipRate] = "1.7"
	case 3:
		row[colOffline] = "maybe"
	default:
		row[colUserID] = ""
	}
}

func pick(r *rand.Rand, pool []string) string {
	return pool[r.IntN(len(pool))]
}

// WriteCSV writes the header and rows as CSV.
func WriteCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// WriteXLSX writes the header and rows to the first sheet of a workbook.
// Rows are streamed so large files do not build a full cell model.
func WriteXLSX(w io.Writer, rows [][]string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	if err := sw.SetRow("A1", cells(Header)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells(row)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	return f.Write(w)
}

func cells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// WriteFile writes rows to path in the given format.
func WriteFile(path, format string, rows [][]string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	switch format {
	case FormatCSV:
		err = WriteCSV(f, rows)
	case FormatXLSX:
		err = WriteXLSX(f, rows)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
