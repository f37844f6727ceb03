package model

import "time"

// ResolvedLocation is a location reference resolved by the upstream
// ingestion pipeline. Only the identity and display name travel with a
// record; geometry stays upstream.
type ResolvedLocation struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RawRecord is one time-stamped event record as delivered by a source
// connector (ACLED, IDMC, ReliefWeb, Dataminr). The detector core treats
// it as read-only.
type RawRecord struct {
	ID        int64     `json:"id"`
	StartDate time.Time `json:"start_date"`

	// RawData is the source payload as parsed JSON. Shape varies per
	// source; the scoring rules address into it with field paths.
	RawData map[string]any `json:"raw_data"`

	// Text is the free-text fallback used when no configured text field
	// yields anything.
	Text string `json:"text"`

	// OriginalLocationText is the location string as it appeared in the
	// source, before resolution.
	OriginalLocationText string `json:"original_location_text"`

	// Location is set only when upstream location matching succeeded.
	Location *ResolvedLocation `json:"resolved_location,omitempty"`
}

// DayStart returns the record's start date truncated to midnight UTC.
// Detections are timestamped at the start of the triggering day.
func (r *RawRecord) DayStart() time.Time {
	y, m, d := r.StartDate.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
