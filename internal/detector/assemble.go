package detector

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/crisisobs/shockwatch/internal/model"
)

// Confidence normalization divisors: individual detections saturate at a
// raw score of 30, cluster detections at an average member score of 20.
const (
	confidenceDivisor        = 30.0
	clusterConfidenceDivisor = 20.0
)

const titleMaxLen = 200

// safeAssemble builds the detection for one qualifying alert, converting
// any panic into a skippable error so one bad record cannot end the run.
func (d *ScoringDetector) safeAssemble(alert model.ScoredAlert) (det model.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic assembling detection: %v", r)
		}
	}()
	return d.assemble(alert), nil
}

func (d *ScoringDetector) assemble(alert model.ScoredAlert) model.Detection {
	rec := alert.Record

	title := ""
	if headline, ok := rec.RawData["headline"].(string); ok && headline != "" {
		title = truncate(headline, titleMaxLen)
	}
	if title == "" {
		title = fmt.Sprintf("%s Priority Alert - %s", alert.Level.Title(), rec.StartDate.Format("2006-01-02"))
	}

	var locations []model.ResolvedLocation
	if rec.Location != nil {
		locations = []model.ResolvedLocation{*rec.Location}
	}

	return model.Detection{
		Title:      title,
		Timestamp:  rec.DayStart(),
		Locations:  locations,
		Confidence: clamp01(alert.Score / confidenceDivisor),
		ShockType:  d.shockType(alert),
		Detector:   d.name,
		Data: map[string]any{
			"alert_id":         rec.ID,
			"score":            alert.Score,
			"alert_level":      string(alert.Level),
			"score_components": alert.Components,
			"raw_data_fields":  d.relevantFields(rec.RawData),
			"source":           "scoring_detector",
		},
	}
}

// relevantFields copies the raw values of every field the scoring rules
// reference, keyed by simplified leaf name, for the detection audit trail.
func (d *ScoringDetector) relevantFields(raw map[string]any) map[string]any {
	relevant := map[string]any{}
	for _, fs := range d.fields {
		if v := fs.path.Extract(raw, nil); v != nil {
			relevant[leafName(fs.path.raw)] = v
		}
	}
	return relevant
}

// truncate cuts s at n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clamp01(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
