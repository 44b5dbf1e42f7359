package decoder

import (
	"math"
	"strconv"
	"strings"

	"github.com/okian/churnbatch/internal/domain/model"
)

// rowParser converts one row into a ProfileInput, recording the first
// conversion failure.
type rowParser struct {
	cols columns
	row  []string
	line int
	err  error
}

func (p *rowParser) cell(col string) string {
	idx := p.cols[col]
	if idx >= len(p.row) {
		return ""
	}
	return strings.TrimSpace(p.row[idx])
}

func (p *rowParser) fail(col, value string) {
	if p.err == nil {
		p.err = &RowError{Line: p.line, Column: col, Value: value, Err: ErrInvalidValue}
	}
}

func (p *rowParser) floatCell(col string) *float64 {
	v := p.cell(col)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.fail(col, v)
		return nil
	}
	return &f
}

// intCell accepts integral floats such as "25.0".
func (p *rowParser) intCell(col string) *int {
	v := p.cell(col)
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		p.fail(col, v)
		return nil
	}
	n := int(f)
	return &n
}

func (p *rowParser) boolCell(col string) *bool {
	v := p.cell(col)
	if v == "" {
		return nil
	}
	var b bool
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		b = true
	case "0", "false", "no", "n":
		b = false
	default:
		p.fail(col, v)
		return nil
	}
	return &b
}

// parseRow converts a data row into a validated profile.
func parseRow(cols columns, row []string, line int) (model.CustomerProfile, error) {
	p := &rowParser{cols: cols, row: row, line: line}

	in := model.ProfileInput{
		UserID:           p.cell(ColUserID),
		Gender:           p.cell(ColGender),
		Country:          p.cell(ColCountry),
		SubscriptionType: p.cell(ColSubscriptionType),
		ListeningTime:    p.floatCell(ColListeningTime),
		SongsPerDay:      p.intCell(ColSongsPerDay),
		SkipRate:         p.floatCell(ColSkipRate),
		AdsPerWeek:       p.intCell(ColAdsPerWeek),
		DeviceType:       p.cell(ColDeviceType),
		OfflineListening: p.boolCell(ColOfflineListening),
	}
	if age := p.intCell(ColAge); age != nil {
		in.Age = *age
	}
	if p.err != nil {
		return model.CustomerProfile{}, p.err
	}

	profile, err := model.NewCustomerProfile(in)
	if err != nil {
		return model.CustomerProfile{}, &RowError{Line: line, Err: err}
	}
	return profile, nil
}
