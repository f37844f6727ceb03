// Package source loads raw records for a detection run. Sources are thin
// collaborators: they fetch and window records but never filter on
// content, which is the detectors' job.
package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/crisisobs/shockwatch/internal/model"
)

// Source yields the raw records whose start date falls inside [from, to].
type Source interface {
	Records(ctx context.Context, from, to time.Time) ([]*model.RawRecord, error)
}

// recordDocument is the wire form shared by the JSONL and API sources.
type recordDocument struct {
	ID           int64          `json:"id"`
	StartDate    string         `json:"start_date"`
	Text         string         `json:"text"`
	LocationText string         `json:"location_text"`
	LocationID   int64          `json:"location_id"`
	LocationName string         `json:"location_name"`
	Data         map[string]any `json:"data"`
}

// dateLayouts are tried in order when parsing record dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseRecordDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, eris.Errorf("source: unparseable date %q", raw)
}

func (doc recordDocument) toRecord() (*model.RawRecord, error) {
	start, err := parseRecordDate(doc.StartDate)
	if err != nil {
		return nil, err
	}
	raw := doc.Data
	if raw == nil {
		raw = map[string]any{}
	}
	rec := &model.RawRecord{
		ID:                   doc.ID,
		StartDate:            start,
		RawData:              raw,
		Text:                 doc.Text,
		OriginalLocationText: doc.LocationText,
	}
	if doc.LocationID != 0 {
		rec.Location = &model.ResolvedLocation{ID: doc.LocationID, Name: doc.LocationName}
	}
	return rec, nil
}

// inWindow reports whether ts falls inside the inclusive [from, to] window.
// A zero bound is open on that side.
func inWindow(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}

func checkCtx(ctx context.Context, what string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "source: %s cancelled", what)
	}
	return nil
}
