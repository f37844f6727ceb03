package detector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
)

// fieldRule is one decoded scoring rule kind. Each returns the score
// contributions the value earns under that rule; contributions are later
// combined by sum or max.
type fieldRule interface {
	contributions(value any) []float64
}

// scoreRules is the compiled rule set for one field path.
type scoreRules struct {
	rules   []fieldRule
	maxMode bool
}

// score applies every rule to the extracted value. A nil value or a value
// matching nothing scores zero; this layer never fails.
func (r scoreRules) score(value any) float64 {
	if value == nil {
		return 0.0
	}
	var scores []float64
	for _, rule := range r.rules {
		scores = append(scores, rule.contributions(value)...)
	}
	if len(scores) == 0 {
		return 0.0
	}
	if r.maxMode {
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

// exactMatchRule scores when the stringified value equals a configured key.
type exactMatchRule struct {
	scores map[string]float64
}

func (r exactMatchRule) contributions(value any) []float64 {
	if s, ok := r.scores[stringify(value)]; ok {
		return []float64{s}
	}
	return nil
}

// scoredTerm pairs a lower-cased substring with its score.
type scoredTerm struct {
	term  string
	score float64
}

// containsRule scores case-insensitive substring hits. Array values are
// scanned element-wise: an element that is an object contributes its
// "name" member, anything else its string form, and every element is
// checked against every term independently.
type containsRule struct {
	terms []scoredTerm
}

func (r containsRule) contributions(value any) []float64 {
	var out []float64
	if arr, ok := value.([]any); ok {
		for _, item := range arr {
			itemStr := strings.ToLower(elementString(item))
			for _, t := range r.terms {
				if strings.Contains(itemStr, t.term) {
					out = append(out, t.score)
				}
			}
		}
		return out
	}
	valueStr := strings.ToLower(stringify(value))
	for _, t := range r.terms {
		if strings.Contains(valueStr, t.term) {
			out = append(out, t.score)
		}
	}
	return out
}

// elementString extracts the comparison string for one array element.
func elementString(item any) string {
	if m, ok := item.(map[string]any); ok {
		if name, ok := m["name"]; ok {
			return stringify(name)
		}
	}
	return stringify(item)
}

// compiledPattern pairs a case-insensitive regexp with its score.
type compiledPattern struct {
	re    *regexp.Regexp
	score float64
}

// regexRule scores every pattern matching anywhere in the stringified
// value. Patterns compile at load; a bad pattern never reaches scoring.
type regexRule struct {
	patterns []compiledPattern
}

func (r regexRule) contributions(value any) []float64 {
	var out []float64
	valueStr := stringify(value)
	for _, p := range r.patterns {
		if p.re.MatchString(valueStr) {
			out = append(out, p.score)
		}
	}
	return out
}

// numericComparison is one operator/threshold/score triple. Operators are
// independent: several may fire for the same value.
type numericComparison struct {
	op        string
	threshold float64
	score     float64
}

func (c numericComparison) holds(v float64) bool {
	switch c.op {
	case ">=":
		return v >= c.threshold
	case ">":
		return v > c.threshold
	case "<=":
		return v <= c.threshold
	case "<":
		return v < c.threshold
	case "==":
		return v == c.threshold
	}
	return false
}

// numericRule scores threshold comparisons against the value parsed as a
// float. Unparseable values contribute nothing.
type numericRule struct {
	comparisons []numericComparison
}

func (r numericRule) contributions(value any) []float64 {
	v, err := cast.ToFloat64E(value)
	if err != nil {
		return nil
	}
	var out []float64
	for _, c := range r.comparisons {
		if c.holds(v) {
			out = append(out, c.score)
		}
	}
	return out
}

var validNumericOps = map[string]bool{">=": true, ">": true, "<=": true, "<": true, "==": true}

// decodeScoreRules turns the raw rule mapping for one field into its
// compiled form. Keys starting with "_" are metadata ("_mode": "max");
// unknown rule kinds, bad regexes and unknown numeric operators are
// configuration errors caught here, not at scoring time.
func decodeScoreRules(raw map[string]any) (scoreRules, error) {
	var out scoreRules
	if mode, ok := raw["_mode"]; ok {
		out.maxMode = stringify(mode) == "max"
	}
	for kind, ruleBody := range raw {
		if strings.HasPrefix(kind, "_") {
			continue
		}

		body, ok := ruleBody.(map[string]any)
		if !ok {
			return out, eris.Errorf("rules: %q must map to an object", kind)
		}

		switch kind {
		case "exact_match":
			rule := exactMatchRule{scores: make(map[string]float64, len(body))}
			for k, v := range body {
				s, err := cast.ToFloat64E(v)
				if err != nil {
					return out, eris.Wrapf(err, "rules: exact_match score for %q", k)
				}
				rule.scores[k] = s
			}
			out.rules = append(out.rules, rule)

		case "contains":
			rule := containsRule{}
			for k, v := range body {
				s, err := cast.ToFloat64E(v)
				if err != nil {
					return out, eris.Wrapf(err, "rules: contains score for %q", k)
				}
				rule.terms = append(rule.terms, scoredTerm{term: strings.ToLower(k), score: s})
			}
			out.rules = append(out.rules, rule)

		case "regex":
			rule := regexRule{}
			for k, v := range body {
				re, err := regexp.Compile("(?i)" + k)
				if err != nil {
					return out, eris.Wrapf(err, "rules: compile regex %q", k)
				}
				s, err := cast.ToFloat64E(v)
				if err != nil {
					return out, eris.Wrapf(err, "rules: regex score for %q", k)
				}
				rule.patterns = append(rule.patterns, compiledPattern{re: re, score: s})
			}
			out.rules = append(out.rules, rule)

		case "numeric":
			rule := numericRule{}
			for op, v := range body {
				if !validNumericOps[op] {
					return out, eris.Errorf("rules: unknown numeric operator %q", op)
				}
				params, ok := v.(map[string]any)
				if !ok {
					return out, eris.Errorf("rules: numeric %q must map to {threshold, score}", op)
				}
				c := numericComparison{op: op}
				if t, ok := params["threshold"]; ok {
					f, err := cast.ToFloat64E(t)
					if err != nil {
						return out, eris.Wrapf(err, "rules: numeric %q threshold", op)
					}
					c.threshold = f
				}
				if sc, ok := params["score"]; ok {
					f, err := cast.ToFloat64E(sc)
					if err != nil {
						return out, eris.Wrapf(err, "rules: numeric %q score", op)
					}
					c.score = f
				}
				rule.comparisons = append(rule.comparisons, c)
			}
			out.rules = append(out.rules, rule)

		default:
			return out, eris.Errorf("rules: unknown rule kind %q", kind)
		}
	}
	return out, nil
}

// stringify renders any JSON value the way the rules compare it: scalars
// via cast, composites via fmt.
func stringify(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
