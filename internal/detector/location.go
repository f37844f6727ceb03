package detector

import (
	"strings"

	"github.com/crisisobs/shockwatch/internal/model"
)

// locationMultiplier is one configured substring -> factor entry. Entries
// keep configuration order; the first whose key appears in the location
// name wins.
type locationMultiplier struct {
	key     string
	lowered string
	factor  float64
}

// locationName resolves the record's location string: the first configured
// location field yielding a non-empty string, else the resolved location's
// name, else empty.
func (d *ScoringDetector) locationName(rec *model.RawRecord) string {
	for _, p := range d.locPaths {
		if s, ok := p.Extract(rec.RawData, rec).(string); ok && s != "" {
			return s
		}
	}
	if rec.Location != nil {
		return rec.Location.Name
	}
	return ""
}

// multiplier returns the score multiplier for a location name, 1.0 when
// nothing matches or the name is empty.
func (d *ScoringDetector) multiplier(locationName string) float64 {
	if locationName == "" || len(d.multipliers) == 0 {
		return 1.0
	}
	lower := strings.ToLower(locationName)
	for _, m := range d.multipliers {
		if strings.Contains(lower, m.lowered) {
			return m.factor
		}
	}
	return 1.0
}
