package model

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AlertLevel is the discretized severity band for a scored record.
type AlertLevel string

const (
	LevelCritical AlertLevel = "critical"
	LevelHigh     AlertLevel = "high"
	LevelMedium   AlertLevel = "medium"
	LevelLow      AlertLevel = "low"
	LevelNone     AlertLevel = "none"
)

var levelRank = map[AlertLevel]int{
	LevelNone:     0,
	LevelLow:      1,
	LevelMedium:   2,
	LevelHigh:     3,
	LevelCritical: 4,
}

var titleCaser = cases.Title(language.English)

// Rank returns the severity order of the level; higher is more severe.
// Unknown levels rank below none.
func (l AlertLevel) Rank() int {
	if r, ok := levelRank[l]; ok {
		return r
	}
	return -1
}

// Title returns the level in title case for display ("critical" -> "Critical").
func (l AlertLevel) Title() string {
	return titleCaser.String(string(l))
}
