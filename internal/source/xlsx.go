package source

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/crisisobs/shockwatch/internal/model"
)

// XLSXOptions configures the spreadsheet source.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// XLSXSource reads records from a spreadsheet export. The first row is a
// header; the id and start_date columns are required, text, location_id,
// location_name and location_text are recognized when present, and every
// other column lands in the record's raw data under its header name.
type XLSXSource struct {
	path string
	opts XLSXOptions
}

// NewXLSX creates an XLSXSource for the given file path.
func NewXLSX(path string, opts XLSXOptions) (*XLSXSource, error) {
	if path == "" {
		return nil, eris.New("source: xlsx path is required")
	}
	return &XLSXSource{path: path, opts: opts}, nil
}

// Records reads the sheet and returns the records in the window in row
// order.
func (s *XLSXSource) Records(ctx context.Context, from, to time.Time) ([]*model.RawRecord, error) {
	f, err := xlsx.OpenFile(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open %s", s.path)
	}
	sheet, err := s.sheet(f)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	header := rowToStrings(sheet.Rows[0])
	idCol, dateCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "id":
			idCol = i
		case "start_date":
			dateCol = i
		}
	}
	if idCol < 0 || dateCol < 0 {
		return nil, eris.Errorf("source: %s needs id and start_date columns", s.path)
	}

	var records []*model.RawRecord
	for rowIdx, row := range sheet.Rows[1:] {
		if err := checkCtx(ctx, "xlsx read"); err != nil {
			return nil, err
		}
		cells := rowToStrings(row)
		rec, err := s.rowRecord(header, cells, idCol, dateCol)
		if err != nil {
			return nil, eris.Wrapf(err, "source: %s row %d", s.path, rowIdx+2)
		}
		if inWindow(rec.StartDate, from, to) {
			records = append(records, rec)
		}
	}

	zap.L().Info("source: xlsx loaded",
		zap.String("path", s.path),
		zap.Int("rows", len(sheet.Rows)-1),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (s *XLSXSource) rowRecord(header, cells []string, idCol, dateCol int) (*model.RawRecord, error) {
	cell := func(i int) string {
		if i < 0 || i >= len(cells) {
			return ""
		}
		return cells[i]
	}

	id, err := cast.ToInt64E(cell(idCol))
	if err != nil {
		return nil, eris.Wrap(err, "bad id")
	}
	start, err := parseRecordDate(cell(dateCol))
	if err != nil {
		return nil, err
	}

	rec := &model.RawRecord{ID: id, StartDate: start, RawData: map[string]any{}}
	var locID int64
	var locName string
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		switch key {
		case "id", "start_date":
		case "text":
			rec.Text = cell(i)
		case "location_text":
			rec.OriginalLocationText = cell(i)
		case "location_id":
			locID, _ = cast.ToInt64E(cell(i))
		case "location_name":
			locName = cell(i)
			rec.RawData[name] = cell(i)
		default:
			rec.RawData[name] = cell(i)
		}
	}
	if locID != 0 {
		rec.Location = &model.ResolvedLocation{ID: locID, Name: locName}
	}
	return rec, nil
}

func (s *XLSXSource) sheet(f *xlsx.File) (*xlsx.Sheet, error) {
	if s.opts.SheetName != "" {
		sheet, ok := f.Sheet[s.opts.SheetName]
		if !ok {
			return nil, eris.Errorf("source: sheet %q not found in %s", s.opts.SheetName, s.path)
		}
		return sheet, nil
	}
	if s.opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("source: sheet index %d out of range (%s has %d sheets)",
			s.opts.SheetIndex, s.path, len(f.Sheets))
	}
	return f.Sheets[s.opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}
