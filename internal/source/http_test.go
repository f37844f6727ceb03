package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastAPIOptions() APIOptions {
	return APIOptions{RatePerSec: 1000, MaxRetries: 1, PageSize: 2}
}

func apiDoc(id int64, date string) map[string]any {
	return map[string]any{
		"id":         id,
		"start_date": date,
		"text":       fmt.Sprintf("record %d", id),
	}
}

func TestNewAPIRequiresURL(t *testing.T) {
	_, err := NewAPI("", APIOptions{})
	assert.Error(t, err)
}

func TestAPIRecordsPagesUntilShortPage(t *testing.T) {
	pages := [][]map[string]any{
		{apiDoc(1, "2026-03-01"), apiDoc(2, "2026-03-02")},
		{apiDoc(3, "2026-03-03")},
	}
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		page := len(offsets) - 1
		require.Less(t, page, len(pages))
		json.NewEncoder(w).Encode(map[string]any{"results": pages[page]})
	}))
	defer srv.Close()

	s, err := NewAPI(srv.URL, fastAPIOptions())
	require.NoError(t, err)

	records, err := s.Records(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(3), records[2].ID)
	assert.Equal(t, []string{"0", "2"}, offsets)
}

func TestAPIRecordsSendsWindowParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-03-01T00:00:00Z", r.URL.Query().Get("from"))
		assert.Equal(t, "2026-03-05T00:00:00Z", r.URL.Query().Get("to"))
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	s, err := NewAPI(srv.URL, fastAPIOptions())
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	records, err := s.Records(context.Background(), from, to)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAPIRecordsFiltersOutOfWindowLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Server ignores the window and returns everything.
		json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{
			apiDoc(1, "2026-03-01"),
			apiDoc(2, "2026-06-01"),
		}})
	}))
	defer srv.Close()

	s, err := NewAPI(srv.URL, APIOptions{RatePerSec: 1000, MaxRetries: 1, PageSize: 10})
	require.NoError(t, err)

	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	records, err := s.Records(context.Background(), time.Time{}, to)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID)
}

func TestAPIRecordsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{apiDoc(1, "2026-03-01")}})
	}))
	defer srv.Close()

	s, err := NewAPI(srv.URL, APIOptions{RatePerSec: 1000, MaxRetries: 1, PageSize: 10})
	require.NoError(t, err)

	records, err := s.Records(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAPIRecordsDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s, err := NewAPI(srv.URL, fastAPIOptions())
	require.NoError(t, err)

	_, err = s.Records(context.Background(), time.Time{}, time.Time{})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
