package model

import "time"

// Shock types form a fixed taxonomy. Cluster detections use a synthetic
// "Alert Cluster - <Level>" name instead.
const (
	ShockConflict         = "Conflict"
	ShockFoodSecurity     = "Food security"
	ShockHealthEmergency  = "Health emergencies"
	ShockNaturalDisasters = "Natural disasters"
)

// ScoreComponents is the audit breakdown of one record's score.
// FieldScores carries only the non-zero contributions, keyed by field path.
type ScoreComponents struct {
	BaseScore          float64            `json:"base_score"`
	FieldScores        map[string]float64 `json:"field_scores"`
	KeywordScore       float64            `json:"keyword_score"`
	LocationMultiplier float64            `json:"location_multiplier"`
}

// ScoredAlert wraps a record with its computed score. It exists only for
// the duration of a detection run, as input to clustering and assembly.
type ScoredAlert struct {
	Record     *RawRecord
	Score      float64
	Level      AlertLevel
	Components ScoreComponents
}

// Detection is the output record describing a noteworthy event, emitted
// either from a single qualifying record or from a cluster of them.
type Detection struct {
	Title      string             `json:"title"`
	Timestamp  time.Time          `json:"detection_timestamp"`
	Locations  []ResolvedLocation `json:"locations"`
	Confidence float64            `json:"confidence_score"`
	ShockType  string             `json:"shock_type_name"`
	Detector   string             `json:"detector,omitempty"`
	Data       map[string]any     `json:"detection_data"`
}
