package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRules(t *testing.T, raw map[string]any) scoreRules {
	t.Helper()
	r, err := decodeScoreRules(raw)
	require.NoError(t, err)
	return r
}

func TestScoreNilValueIsZero(t *testing.T) {
	r := mustRules(t, map[string]any{"exact_match": map[string]any{"Urgent": 10.0}})
	assert.Equal(t, 0.0, r.score(nil))
}

func TestExactMatch(t *testing.T) {
	r := mustRules(t, map[string]any{"exact_match": map[string]any{"Urgent": 10.0, "Flash": 15.0}})
	assert.Equal(t, 10.0, r.score("Urgent"))
	assert.Equal(t, 0.0, r.score("urgent")) // exact means case-sensitive
}

func TestContainsSumVsMax(t *testing.T) {
	// The documented sum/max property: both substrings match, sum gives 8,
	// max mode gives 5.
	sum := mustRules(t, map[string]any{"contains": map[string]any{"a": 3.0, "b": 5.0}})
	assert.Equal(t, 8.0, sum.score("abc"))

	max := mustRules(t, map[string]any{"contains": map[string]any{"a": 3.0, "b": 5.0}, "_mode": "max"})
	assert.Equal(t, 5.0, max.score("abc"))
}

func TestContainsCaseInsensitive(t *testing.T) {
	r := mustRules(t, map[string]any{"contains": map[string]any{"Conflict": 8.0}})
	assert.Equal(t, 8.0, r.score("CONFLICTS - Air"))
}

func TestContainsArrayElementwise(t *testing.T) {
	r := mustRules(t, map[string]any{"contains": map[string]any{"conflict": 8.0}})
	value := []any{
		map[string]any{"name": "Conflicts - Air"},
		map[string]any{"name": "Conflicts - Ground"},
		map[string]any{"name": "Displacement"},
	}
	// Two elements match independently.
	assert.Equal(t, 16.0, r.score(value))
}

func TestContainsArrayPlainStrings(t *testing.T) {
	r := mustRules(t, map[string]any{"contains": map[string]any{"darfur": 4.0}})
	assert.Equal(t, 4.0, r.score([]any{"North Darfur", "Chad"}))
}

func TestRegexMatches(t *testing.T) {
	r := mustRules(t, map[string]any{"regex": map[string]any{`\d+ killed`: 6.0}})
	assert.Equal(t, 6.0, r.score("12 KILLED in clashes"))
	assert.Equal(t, 0.0, r.score("no casualties"))
}

func TestRegexBadPatternFailsDecode(t *testing.T) {
	_, err := decodeScoreRules(map[string]any{"regex": map[string]any{"(": 1.0}})
	assert.Error(t, err)
}

func TestNumericThresholdBoundary(t *testing.T) {
	gte := mustRules(t, map[string]any{"numeric": map[string]any{">=": map[string]any{"threshold": 10.0, "score": 5.0}}})
	assert.Equal(t, 5.0, gte.score(10.0))

	gt := mustRules(t, map[string]any{"numeric": map[string]any{">": map[string]any{"threshold": 10.0, "score": 5.0}}})
	assert.Equal(t, 0.0, gt.score(10.0))
}

func TestNumericOperatorsIndependent(t *testing.T) {
	r := mustRules(t, map[string]any{"numeric": map[string]any{
		">=": map[string]any{"threshold": 5.0, "score": 2.0},
		">":  map[string]any{"threshold": 1.0, "score": 3.0},
	}})
	// Both comparisons hold and both contribute.
	assert.Equal(t, 5.0, r.score(7))
}

func TestNumericParsesStrings(t *testing.T) {
	r := mustRules(t, map[string]any{"numeric": map[string]any{">=": map[string]any{"threshold": 10.0, "score": 5.0}}})
	assert.Equal(t, 5.0, r.score("12.5"))
}

func TestNumericUnparseableContributesNothing(t *testing.T) {
	r := mustRules(t, map[string]any{"numeric": map[string]any{">=": map[string]any{"threshold": 10.0, "score": 5.0}}})
	assert.Equal(t, 0.0, r.score("not a number"))
}

func TestNumericUnknownOperatorFailsDecode(t *testing.T) {
	_, err := decodeScoreRules(map[string]any{"numeric": map[string]any{"!=": map[string]any{"threshold": 1.0, "score": 1.0}}})
	assert.Error(t, err)
}

func TestUnknownRuleKindFailsDecode(t *testing.T) {
	_, err := decodeScoreRules(map[string]any{"fuzzy": map[string]any{"x": 1.0}})
	assert.Error(t, err)
}

func TestMixedRuleKindsCombine(t *testing.T) {
	r := mustRules(t, map[string]any{
		"exact_match": map[string]any{"Urgent": 10.0},
		"contains":    map[string]any{"urgent": 2.0},
	})
	// Exact match on the full value plus a contains hit.
	assert.Equal(t, 12.0, r.score("Urgent"))
}
