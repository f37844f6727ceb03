package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisisobs/shockwatch/internal/model"
	"github.com/crisisobs/shockwatch/internal/store"
)

func newServeStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedDetections(t *testing.T, st store.Store) {
	t.Helper()
	ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := st.SaveDetections(context.Background(), []model.Detection{
		{
			Title: "Shelling reported", Timestamp: ts, Confidence: 0.9,
			ShockType: model.ShockConflict, Detector: "sudan_conflict",
			Data: map[string]any{"score": 42.0},
		},
		{
			Title: "Cholera outbreak", Timestamp: ts.Add(24 * time.Hour), Confidence: 0.4,
			ShockType: model.ShockHealthEmergency, Detector: "headline",
			Data: map[string]any{},
		},
	})
	require.NoError(t, err)
}

func TestServeHealth(t *testing.T) {
	router := newRouter(newServeStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeListDetections(t *testing.T) {
	st := newServeStore(t)
	seedDetections(t, st)
	router := newRouter(st)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detections", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Detections []store.StoredDetection `json:"detections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Detections, 2)
	// Newest first.
	assert.Equal(t, "Cholera outbreak", body.Detections[0].Title)
}

func TestServeListDetectionsFiltered(t *testing.T) {
	st := newServeStore(t)
	seedDetections(t, st)
	router := newRouter(st)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detections?detector=headline&min_confidence=0.3", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Detections []store.StoredDetection `json:"detections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Detections, 1)
	assert.Equal(t, "Cholera outbreak", body.Detections[0].Title)
}

func TestServeListDetectionsEmpty(t *testing.T) {
	router := newRouter(newServeStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detections", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"detections":[]}`, rec.Body.String())
}

func TestServeListDetectionsBadQuery(t *testing.T) {
	router := newRouter(newServeStore(t))

	for _, target := range []string{
		"/detections?since=whenever",
		"/detections?min_confidence=high",
		"/detections?limit=many",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestServeCountDetections(t *testing.T) {
	st := newServeStore(t)
	seedDetections(t, st)
	router := newRouter(st)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detections/count", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())
}

func TestFilterFromQueryWindow(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/detections?since=2026-05-01&until=2026-05-02T12:00:00Z", nil)
	filter, err := filterFromQuery(req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), filter.Since)
	assert.Equal(t, time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC), filter.Until)
}
