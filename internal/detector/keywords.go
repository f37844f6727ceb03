package detector

import (
	"strings"

	"github.com/crisisobs/shockwatch/internal/model"
)

// assembleText gathers the free text a record offers for keyword scoring
// and shock-type contains rules: every configured text field that yields a
// non-empty string, joined by single spaces, falling back to the record's
// own text when none do.
func (d *ScoringDetector) assembleText(rec *model.RawRecord) string {
	var parts []string
	for _, p := range d.textPaths {
		if s, ok := p.Extract(rec.RawData, rec).(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 && rec.Text != "" {
		parts = append(parts, rec.Text)
	}
	return strings.Join(parts, " ")
}

// scoreKeywords scans the text for configured keywords and combines the
// hits by sum, or by max when keyword_max_mode is set.
func (d *ScoringDetector) scoreKeywords(text string) float64 {
	if text == "" || len(d.keywords) == 0 {
		return 0.0
	}
	lower := strings.ToLower(text)
	var scores []float64
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw.term) {
			scores = append(scores, kw.score)
		}
	}
	if len(scores) == 0 {
		return 0.0
	}
	if d.keywordMaxMode {
		max := scores[0]
		for _, s := range scores[1:] {
			if s > max {
				max = s
			}
		}
		return max
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum
}
