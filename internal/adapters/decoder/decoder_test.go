package decoder_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	decoder "github.com/okian/churnbatch/internal/adapters/decoder"
	"github.com/okian/churnbatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const header = "user_id,gender,age,country,subscription_type,listening_time,songs_played_per_day,skip_rate,ads_listened_per_week,device_type,offline_listening"

type collector struct {
	records []model.Record
	errs    []model.ProcessingError
	failOn  int
}

func (c *collector) OnRecord(_ context.Context, rec model.Record) error {
	c.records = append(c.records, rec)
	if c.failOn > 0 && len(c.records) == c.failOn {
		return errors.New("handler stop")
	}
	return nil
}

func (c *collector) OnRowError(perr model.ProcessingError) {
	c.errs = append(c.errs, perr)
}

func csvRows(n int) string {
	var b strings.Builder
	b.WriteString(header + "\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "u-%d,Female,30,br,Premium,300,20,0.4,10,Mobile,0\n", i)
	}
	return b.String()
}

func TestFormatFromFilename(t *testing.T) {
	Convey("Given upload file names", t, func() {
		f, err := decoder.FormatFromFilename("clients.CSV")
		So(err, ShouldBeNil)
		So(f, ShouldEqual, decoder.FormatCSV)

		f, err = decoder.FormatFromFilename("clients.xlsx")
		So(err, ShouldBeNil)
		So(f, ShouldEqual, decoder.FormatXLSX)

		_, err = decoder.FormatFromFilename("clients.json")
		So(errors.Is(err, decoder.ErrUnsupportedFormat), ShouldBeTrue)
	})
}

func TestDecodeCSV(t *testing.T) {
	ctx := context.Background()

	Convey("Given a well-formed CSV file", t, func() {
		d := decoder.New()
		c := &collector{}
		sum, err := d.Decode(ctx, strings.NewReader(csvRows(3)), decoder.FormatCSV, c)

		Convey("Then every row becomes a typed record", func() {
			So(err, ShouldBeNil)
			So(sum.Records, ShouldEqual, 3)
			So(sum.Rows, ShouldEqual, 3)
			So(len(c.records), ShouldEqual, 3)

			rec := c.records[0]
			So(rec.Line, ShouldEqual, 2)
			So(rec.Profile.UserID(), ShouldEqual, "u-0")
			So(rec.Profile.Country(), ShouldEqual, "BR")
			sr, ok := rec.Profile.SkipRate()
			So(ok, ShouldBeTrue)
			So(sr, ShouldEqual, 0.4)
			off, ok := rec.Profile.OfflineListening()
			So(ok, ShouldBeTrue)
			So(off, ShouldBeFalse)
		})
	})

	Convey("Given a header missing two columns", t, func() {
		input := "user_id,gender,age,country,subscription_type,listening_time,songs_played_per_day,ads_listened_per_week,device_type\n" +
			"u-1,Male,30,us,Free,10,1,1,Web\n"
		c := &collector{}
		_, err := decoder.New().Decode(ctx, strings.NewReader(input), decoder.FormatCSV, c)

		Convey("Then a schema error names both and nothing is emitted", func() {
			var se *decoder.SchemaError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Missing, ShouldResemble, []string{"skip_rate", "offline_listening"})
			So(errors.Is(err, decoder.ErrSchema), ShouldBeTrue)
			So(len(c.records), ShouldEqual, 0)
		})
	})

	Convey("Given an empty file", t, func() {
		_, err := decoder.New().Decode(ctx, strings.NewReader(""), decoder.FormatCSV, &collector{})

		Convey("Then it is a schema error", func() {
			So(errors.Is(err, decoder.ErrSchema), ShouldBeTrue)
		})
	})

	Convey("Given headers in mixed styles", t, func() {
		input := "\ufeffUser ID;Gender;AGE;Country;Subscription-Type;listening time;SongsPlayedPerDay;Skip_Rate;ads listened per week;device_type;Offline Listening\n" +
			"u-1;Male;25.0;de;Free;;12;0.2;;Desktop;yes\n"
		c := &collector{}
		sum, err := decoder.New().Decode(ctx, strings.NewReader(input), decoder.FormatCSV, c)

		Convey("Then they match after normalisation and the delimiter is detected", func() {
			So(err, ShouldBeNil)
			So(sum.Records, ShouldEqual, 1)
			p := c.records[0].Profile
			So(p.Age(), ShouldEqual, 25)
			_, ok := p.ListeningTime()
			So(ok, ShouldBeFalse)
			_, ok = p.AdsPerWeek()
			So(ok, ShouldBeFalse)
			off, _ := p.OfflineListening()
			So(off, ShouldBeTrue)
		})
	})

	Convey("Given tab and pipe separated files", t, func() {
		for _, sep := range []string{"\t", "|"} {
			input := strings.ReplaceAll(csvRows(2), ",", sep)
			sum, err := decoder.New().Decode(ctx, strings.NewReader(input), decoder.FormatCSV, &collector{})
			So(err, ShouldBeNil)
			So(sum.Records, ShouldEqual, 2)
		}
	})

	Convey("Given rows with bad values", t, func() {
		input := header + "\n" +
			"u-1,Female,abc,br,Premium,300,20,0.4,10,Mobile,0\n" +
			"u-2,Female,30,br,Premium,300,20,1.7,10,Mobile,0\n" +
			"\n" +
			",,,,,,,,,,\n" +
			"u-3,Female,30,br,Premium,300,20,0.4,10,Mobile,maybe\n" +
			"u-4,Female,30,br,Premium,300,20.5,0.4,10,Mobile,1\n" +
			"u-5,Female,30,br,Premium,300,20,0.4,10,Mobile,true\n"
		c := &collector{}
		sum, err := decoder.New().Decode(ctx, strings.NewReader(input), decoder.FormatCSV, c)

		Convey("Then bad rows are reported and decoding continues", func() {
			So(err, ShouldBeNil)
			So(sum.Rows, ShouldEqual, 5)
			So(sum.Records, ShouldEqual, 1)
			So(sum.RowErrors, ShouldEqual, 4)
			So(c.records[0].Profile.UserID(), ShouldEqual, "u-5")
			So(c.errs[0].Line, ShouldEqual, 2)
			So(c.errs[0].Message, ShouldContainSubstring, "age")
			So(c.errs[1].Message, ShouldContainSubstring, "skip_rate")
			So(c.errs[2].Message, ShouldContainSubstring, "offline_listening")
			So(c.errs[3].Message, ShouldContainSubstring, "songs_played_per_day")
		})
	})

	Convey("Given a row with a stray quote", t, func() {
		input := header + "\n" +
			"u-1,Female,30,br,Premium,300,20,0.4,10,Mobile,0\n" +
			"u-2,Fe\"male,30,br,Premium,300,20,0.4,10,Mobile,0\n" +
			"u-3,Female,30,br,Premium,300,20,0.4,10,Mobile,0\n"

		Convey("When it is decoded", func() {
			c := &collector{}
			sum, err := decoder.New().Decode(ctx, strings.NewReader(input), decoder.FormatCSV, c)

			Convey("Then it is a counted row error and the next row still decodes", func() {
				So(err, ShouldBeNil)
				So(sum.Rows, ShouldEqual, 3)
				So(sum.Records, ShouldEqual, 2)
				So(sum.RowErrors, ShouldEqual, 1)
				So(c.errs[0].Line, ShouldEqual, 3)
				So(c.records[1].Profile.UserID(), ShouldEqual, "u-3")
			})
		})

		Convey("When the malformed row pushes the file past the ceiling", func() {
			_, err := decoder.New(decoder.WithMaxRecords(2)).Decode(ctx, strings.NewReader(input), decoder.FormatCSV, &collector{})

			Convey("Then the limit error is returned", func() {
				So(errors.Is(err, decoder.ErrRecordLimit), ShouldBeTrue)
			})
		})
	})

	Convey("Given a ragged row", t, func() {
		input := header + "\nu-1,Male,40,us\n"
		c := &collector{}
		sum, err := decoder.New().Decode(ctx, strings.NewReader(input), decoder.FormatCSV, c)

		Convey("Then missing trailing cells are treated as blank", func() {
			So(err, ShouldBeNil)
			So(sum.Records, ShouldEqual, 1)
			_, ok := c.records[0].Profile.SkipRate()
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a record ceiling", t, func() {
		d := decoder.New(decoder.WithMaxRecords(3))

		Convey("When the file has exactly the ceiling", func() {
			sum, err := d.Decode(ctx, strings.NewReader(csvRows(3)), decoder.FormatCSV, &collector{})

			Convey("Then it succeeds", func() {
				So(err, ShouldBeNil)
				So(sum.Records, ShouldEqual, 3)
			})
		})

		Convey("When the file has one row more", func() {
			_, err := d.Decode(ctx, strings.NewReader(csvRows(4)), decoder.FormatCSV, &collector{})

			Convey("Then a limit error is returned", func() {
				var le *decoder.LimitError
				So(errors.As(err, &le), ShouldBeTrue)
				So(le.Limit, ShouldEqual, 3)
				So(errors.Is(err, decoder.ErrRecordLimit), ShouldBeTrue)
			})
		})
	})

	Convey("Given a size ceiling smaller than the file", t, func() {
		d := decoder.New(decoder.WithMaxFileSize(256))
		_, err := d.Decode(ctx, strings.NewReader(csvRows(50)), decoder.FormatCSV, &collector{})

		Convey("Then ErrFileTooLarge is returned", func() {
			So(errors.Is(err, decoder.ErrFileTooLarge), ShouldBeTrue)
		})
	})

	Convey("Given a handler that stops", t, func() {
		c := &collector{failOn: 2}
		sum, err := decoder.New().Decode(ctx, strings.NewReader(csvRows(5)), decoder.FormatCSV, c)

		Convey("Then decoding stops at that record", func() {
			So(err, ShouldNotBeNil)
			So(sum.Records, ShouldEqual, 2)
		})
	})

	Convey("Given a cancelled context", t, func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		c := &collector{}
		_, err := decoder.New().Decode(cctx, strings.NewReader(csvRows(5)), decoder.FormatCSV, c)

		Convey("Then no record is emitted", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(len(c.records), ShouldEqual, 0)
		})
	})
}

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf := &bytes.Buffer{}
	if _, err := f.WriteTo(buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func TestDecodeXLSX(t *testing.T) {
	ctx := context.Background()
	cols := []interface{}{"user_id", "gender", "age", "country", "subscription_type", "listening_time",
		"songs_played_per_day", "skip_rate", "ads_listened_per_week", "device_type", "offline_listening"}

	Convey("Given a workbook with a header and data rows", t, func() {
		buf := workbook(t, [][]interface{}{
			cols,
			{"u-1", "Male", 33, "fr", "Free", 250.5, 15, 0.3, 8, "Web", true},
			{},
			{"u-2", "Female", 5, "fr", "Free", 250.5, 15, 0.3, 8, "Web", false},
			{"u-3", "Female", 44, "fr", "Student", 90, 3, 0.1, 1, "Mobile", "no"},
		})
		c := &collector{}
		sum, err := decoder.New().Decode(ctx, buf, decoder.FormatXLSX, c)

		Convey("Then valid rows are emitted and invalid ones reported", func() {
			So(err, ShouldBeNil)
			So(sum.Records, ShouldEqual, 2)
			So(sum.RowErrors, ShouldEqual, 1)
			So(c.records[0].Profile.UserID(), ShouldEqual, "u-1")
			So(c.records[0].Line, ShouldEqual, 2)
			lt, _ := c.records[0].Profile.ListeningTime()
			So(lt, ShouldEqual, 250.5)
			off, _ := c.records[0].Profile.OfflineListening()
			So(off, ShouldBeTrue)
			So(c.errs[0].Message, ShouldContainSubstring, "age")
		})
	})

	Convey("Given numeric cells carrying display formats", t, func() {
		f := excelize.NewFile()
		defer f.Close()
		sheet := f.GetSheetName(0)
		So(f.SetSheetRow(sheet, "A1", &cols), ShouldBeNil)
		row := []interface{}{"u-1", "Male", 33, "fr", "Free", 1250.5, 15, 0.4, 8, "Web", true}
		So(f.SetSheetRow(sheet, "A2", &row), ShouldBeNil)

		thousands, err := f.NewStyle(&excelize.Style{NumFmt: 4})
		So(err, ShouldBeNil)
		percent, err := f.NewStyle(&excelize.Style{NumFmt: 9})
		So(err, ShouldBeNil)
		So(f.SetCellStyle(sheet, "F2", "F2", thousands), ShouldBeNil)
		So(f.SetCellStyle(sheet, "H2", "H2", percent), ShouldBeNil)

		buf := &bytes.Buffer{}
		_, err = f.WriteTo(buf)
		So(err, ShouldBeNil)

		c := &collector{}
		sum, err := decoder.New().Decode(ctx, buf, decoder.FormatXLSX, c)

		Convey("Then the stored values are decoded, not the formatted text", func() {
			So(err, ShouldBeNil)
			So(sum.RowErrors, ShouldEqual, 0)
			So(sum.Records, ShouldEqual, 1)
			lt, _ := c.records[0].Profile.ListeningTime()
			So(lt, ShouldEqual, 1250.5)
			sr, _ := c.records[0].Profile.SkipRate()
			So(sr, ShouldEqual, 0.4)
		})
	})

	Convey("Given a workbook missing columns", t, func() {
		buf := workbook(t, [][]interface{}{{"user_id", "gender"}, {"u-1", "Male"}})
		_, err := decoder.New().Decode(ctx, buf, decoder.FormatXLSX, &collector{})

		Convey("Then it is a schema error", func() {
			So(errors.Is(err, decoder.ErrSchema), ShouldBeTrue)
		})
	})

	Convey("Given bytes that are not a workbook", t, func() {
		_, err := decoder.New().Decode(ctx, strings.NewReader("not a zip"), decoder.FormatXLSX, &collector{})

		Convey("Then an error is returned", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
