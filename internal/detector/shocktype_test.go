package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crisisobs/shockwatch/internal/model"
)

func evalFor(raw map[string]any, level model.AlertLevel, text string) *shockEval {
	return &shockEval{
		raw:   raw,
		rec:   &model.RawRecord{RawData: raw},
		level: level,
		text:  func() string { return text },
	}
}

func TestShockTypeLevelRule(t *testing.T) {
	mappings := decodeShockMappings(pairs{
		{Key: "level==critical", Value: model.ShockNaturalDisasters},
	}, shockRuleOptions{levelRules: true})

	assert.Equal(t, model.ShockNaturalDisasters,
		classifyShockType(mappings, evalFor(nil, model.LevelCritical, "")))
	assert.Equal(t, model.ShockConflict,
		classifyShockType(mappings, evalFor(nil, model.LevelHigh, "")))
}

func TestShockTypeFieldEquals(t *testing.T) {
	mappings := decodeShockMappings(pairs{
		{Key: "alertType.name==Epidemic", Value: model.ShockHealthEmergency},
	}, shockRuleOptions{levelRules: true})

	raw := map[string]any{"alertType": map[string]any{"name": "Epidemic"}}
	assert.Equal(t, model.ShockHealthEmergency,
		classifyShockType(mappings, evalFor(raw, model.LevelLow, "")))
}

func TestShockTypeContains(t *testing.T) {
	mappings := decodeShockMappings(pairs{
		{Key: "contains:famine", Value: model.ShockFoodSecurity},
	}, shockRuleOptions{levelRules: true})

	assert.Equal(t, model.ShockFoodSecurity,
		classifyShockType(mappings, evalFor(nil, model.LevelLow, "Famine conditions worsen")))
}

func TestShockTypeFirstMatchWins(t *testing.T) {
	mappings := decodeShockMappings(pairs{
		{Key: "contains:flood", Value: model.ShockNaturalDisasters},
		{Key: "level==high", Value: model.ShockHealthEmergency},
	}, shockRuleOptions{levelRules: true})

	assert.Equal(t, model.ShockNaturalDisasters,
		classifyShockType(mappings, evalFor(nil, model.LevelHigh, "flood warning")))
}

func TestShockTypeDefaultFallback(t *testing.T) {
	mappings := decodeShockMappings(pairs{
		{Key: "contains:locust", Value: model.ShockFoodSecurity},
	}, shockRuleOptions{levelRules: true})

	assert.Equal(t, model.ShockConflict,
		classifyShockType(mappings, evalFor(nil, model.LevelLow, "unrelated")))
}

func TestShockTypeUnrecognizedRuleNeverMatches(t *testing.T) {
	mappings := decodeShockMappings(pairs{
		{Key: "frobnicate!", Value: model.ShockFoodSecurity},
	}, shockRuleOptions{levelRules: true})

	assert.Equal(t, model.ShockConflict,
		classifyShockType(mappings, evalFor(nil, model.LevelLow, "anything")))
}

func TestShockTypeArrayAwareEquality(t *testing.T) {
	// The classifier grammar matches any array element (or its name).
	mappings := decodeShockMappings(pairs{
		{Key: "alertTopics==Conflicts - Air", Value: model.ShockConflict + "!"},
	}, shockRuleOptions{arrayAware: true})

	raw := map[string]any{"alertTopics": []any{
		map[string]any{"name": "Displacement"},
		map[string]any{"name": "Conflicts - Air"},
	}}
	assert.Equal(t, model.ShockConflict+"!",
		classifyShockType(mappings, evalFor(raw, model.LevelNone, "")))
}

func TestShockTypeLevelRuleDisabledForClassifier(t *testing.T) {
	// Without level rules, "level==x" parses as a field path named
	// "level"; no such field means no match.
	mappings := decodeShockMappings(pairs{
		{Key: "level==critical", Value: model.ShockNaturalDisasters},
	}, shockRuleOptions{arrayAware: true})

	assert.Equal(t, model.ShockConflict,
		classifyShockType(mappings, evalFor(map[string]any{}, model.LevelCritical, "")))
}
