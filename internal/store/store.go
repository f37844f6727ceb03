package store

import (
	"context"
	"time"

	"github.com/crisisobs/shockwatch/internal/model"
)

// StoredDetection is a persisted detection row.
type StoredDetection struct {
	ID         string                   `json:"id"`
	Detector   string                   `json:"detector"`
	Title      string                   `json:"title"`
	Timestamp  time.Time                `json:"detection_timestamp"`
	Confidence float64                  `json:"confidence_score"`
	ShockType  string                   `json:"shock_type_name"`
	Locations  []model.ResolvedLocation `json:"locations"`
	Data       map[string]any           `json:"detection_data"`
	CreatedAt  time.Time                `json:"created_at"`
}

// DetectionFilter specifies criteria for listing detections.
type DetectionFilter struct {
	Detector      string    `json:"detector,omitempty"`
	ShockType     string    `json:"shock_type,omitempty"`
	Since         time.Time `json:"since,omitempty"`
	Until         time.Time `json:"until,omitempty"`
	MinConfidence float64   `json:"min_confidence,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	Offset        int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for detection output.
type Store interface {
	SaveDetections(ctx context.Context, detections []model.Detection) (int, error)
	ListDetections(ctx context.Context, filter DetectionFilter) ([]StoredDetection, error)
	CountDetections(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
