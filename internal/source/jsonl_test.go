package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSONL(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestNewJSONLRequiresPath(t *testing.T) {
	_, err := NewJSONL("")
	assert.Error(t, err)
}

func TestJSONLRecords(t *testing.T) {
	path := writeJSONL(t, `
{"id": 1, "start_date": "2026-03-01T10:00:00Z", "text": "shelling in the old town", "location_id": 7, "location_name": "Al Fashir", "data": {"headline": "Shelling reported"}}

{"id": 2, "start_date": "2026-03-02", "text": "quiet day"}
`)
	s, err := NewJSONL(path)
	require.NoError(t, err)

	records, err := s.Records(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "shelling in the old town", first.Text)
	assert.Equal(t, "Shelling reported", first.RawData["headline"])
	require.NotNil(t, first.Location)
	assert.Equal(t, "Al Fashir", first.Location.Name)

	// Bare-date layout and absent location both parse.
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), records[1].StartDate)
	assert.Nil(t, records[1].Location)
	assert.NotNil(t, records[1].RawData)
}

func TestJSONLWindowFilter(t *testing.T) {
	path := writeJSONL(t, `{"id": 1, "start_date": "2026-03-01"}
{"id": 2, "start_date": "2026-03-05"}
{"id": 3, "start_date": "2026-03-09"}
`)
	s, err := NewJSONL(path)
	require.NoError(t, err)

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	records, err := s.Records(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].ID)
}

func TestJSONLWindowIsInclusive(t *testing.T) {
	path := writeJSONL(t, `{"id": 1, "start_date": "2026-03-02"}`)
	s, err := NewJSONL(path)
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	records, err := s.Records(context.Background(), day, day)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestJSONLMalformedLineFailsLoad(t *testing.T) {
	path := writeJSONL(t, `{"id": 1, "start_date": "2026-03-01"}
{not json}
`)
	s, err := NewJSONL(path)
	require.NoError(t, err)
	_, err = s.Records(context.Background(), time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "line 2")
}

func TestJSONLBadDateFailsLoad(t *testing.T) {
	path := writeJSONL(t, `{"id": 1, "start_date": "soonish"}`)
	s, err := NewJSONL(path)
	require.NoError(t, err)
	_, err = s.Records(context.Background(), time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "unparseable date")
}
