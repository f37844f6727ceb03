package source

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestXLSXRecords(t *testing.T) {
	path := createXLSX(t, map[string][][]string{
		"Sheet1": {
			{"id", "start_date", "text", "location_id", "location_name", "displaced"},
			{"1", "2026-02-10", "flooding displaces families", "3", "Nyala", "1200"},
			{"2", "2026-02-11", "", "", "", "300"},
		},
	})
	s, err := NewXLSX(path, XLSXOptions{})
	require.NoError(t, err)

	records, err := s.Records(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), first.StartDate)
	assert.Equal(t, "flooding displaces families", first.Text)
	require.NotNil(t, first.Location)
	assert.Equal(t, "Nyala", first.Location.Name)
	// Unrecognized columns land in raw data; location_name is kept there
	// too so configured location paths can reach it.
	assert.Equal(t, "1200", first.RawData["displaced"])
	assert.Equal(t, "Nyala", first.RawData["location_name"])

	assert.Nil(t, records[1].Location)
}

func TestXLSXWindowFilter(t *testing.T) {
	path := createXLSX(t, map[string][][]string{
		"Sheet1": {
			{"id", "start_date"},
			{"1", "2026-02-01"},
			{"2", "2026-02-15"},
		},
	})
	s, err := NewXLSX(path, XLSXOptions{})
	require.NoError(t, err)

	from := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	records, err := s.Records(context.Background(), from, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].ID)
}

func TestXLSXMissingRequiredColumns(t *testing.T) {
	path := createXLSX(t, map[string][][]string{
		"Sheet1": {
			{"headline", "start_date"},
			{"x", "2026-02-01"},
		},
	})
	s, err := NewXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	_, err = s.Records(context.Background(), time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "id and start_date")
}

func TestXLSXSheetByName(t *testing.T) {
	path := createXLSX(t, map[string][][]string{
		"Displacement": {
			{"id", "start_date"},
			{"7", "2026-02-01"},
		},
	})
	s, err := NewXLSX(path, XLSXOptions{SheetName: "Displacement"})
	require.NoError(t, err)
	records, err := s.Records(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0].ID)
}

func TestXLSXMissingSheet(t *testing.T) {
	path := createXLSX(t, map[string][][]string{
		"Sheet1": {{"id", "start_date"}},
	})
	s, err := NewXLSX(path, XLSXOptions{SheetName: "Nope"})
	require.NoError(t, err)
	_, err = s.Records(context.Background(), time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "not found")
}

func TestXLSXBadIDFailsLoad(t *testing.T) {
	path := createXLSX(t, map[string][][]string{
		"Sheet1": {
			{"id", "start_date"},
			{"not-a-number", "2026-02-01"},
		},
	})
	s, err := NewXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	_, err = s.Records(context.Background(), time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "row 2")
}
