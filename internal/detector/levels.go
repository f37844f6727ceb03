package detector

import "github.com/crisisobs/shockwatch/internal/model"

// Default alert-level thresholds.
const (
	defaultCriticalThreshold = 25
	defaultHighThreshold     = 15
	defaultMediumThreshold   = 8
	defaultLowThreshold      = 4
)

// thresholds holds the descending score cutoffs for alert levels.
type thresholds struct {
	critical float64
	high     float64
	medium   float64
	low      float64
}

// classify maps a score to its alert level, checking from the highest
// threshold down. A score exactly on a threshold takes that threshold's
// level; below all of them is none.
func (t thresholds) classify(score float64) model.AlertLevel {
	switch {
	case score >= t.critical:
		return model.LevelCritical
	case score >= t.high:
		return model.LevelHigh
	case score >= t.medium:
		return model.LevelMedium
	case score >= t.low:
		return model.LevelLow
	default:
		return model.LevelNone
	}
}
