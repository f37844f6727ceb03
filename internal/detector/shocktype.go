package detector

import (
	"strings"

	"go.uber.org/zap"

	"github.com/crisisobs/shockwatch/internal/model"
)

// shockEval carries everything a shock-type rule may inspect. Text is
// assembled lazily since most rules never read it.
type shockEval struct {
	raw   map[string]any
	rec   *model.RawRecord
	level model.AlertLevel
	text  func() string
}

// shockCondition is one decoded rule from the shock_type_mapping grammar.
type shockCondition interface {
	matches(ev *shockEval) bool
}

// shockMapping pairs a condition with the shock type it assigns. First
// matching mapping wins.
type shockMapping struct {
	cond      shockCondition
	shockType string
}

// levelCondition handles "level==<value>".
type levelCondition struct {
	want string
}

func (c levelCondition) matches(ev *shockEval) bool {
	return string(ev.level) == c.want
}

// fieldEqualsCondition handles "<field_path>==<value>". When arrayAware is
// set (headline classifier variant), an array value matches if any element
// (or its "name" member) equals the expected string.
type fieldEqualsCondition struct {
	path       *fieldPath
	want       string
	arrayAware bool
}

func (c fieldEqualsCondition) matches(ev *shockEval) bool {
	v := c.path.Extract(ev.raw, ev.rec)
	if c.arrayAware {
		if arr, ok := v.([]any); ok {
			for _, item := range arr {
				if m, ok := item.(map[string]any); ok {
					if name, ok := m["name"]; ok {
						if stringify(name) == c.want {
							return true
						}
						continue
					}
				}
				if stringify(item) == c.want {
					return true
				}
			}
			return false
		}
	}
	return stringify(v) == c.want
}

// textContainsCondition handles "contains:<keyword>".
type textContainsCondition struct {
	keyword string
}

func (c textContainsCondition) matches(ev *shockEval) bool {
	return strings.Contains(strings.ToLower(ev.text()), c.keyword)
}

// neverCondition is the decoded form of an unrecognized or unparseable
// rule string: it matches nothing, mirroring the swallow-and-skip contract
// for malformed rules.
type neverCondition struct{}

func (neverCondition) matches(*shockEval) bool { return false }

// shockRuleOptions selects grammar variants: the scoring detector accepts
// "level==" rules, the headline classifier compares arrays element-wise.
type shockRuleOptions struct {
	levelRules bool
	arrayAware bool
}

// decodeShockMappings compiles the ordered rule-string -> shock-type
// mapping. The grammar splits on the first "=="; a field path containing
// a literal "==" therefore cannot be addressed (documented limitation).
func decodeShockMappings(raw pairs, opts shockRuleOptions) []shockMapping {
	out := make([]shockMapping, 0, len(raw))
	for _, entry := range raw {
		shockType := stringify(entry.Value)
		out = append(out, shockMapping{
			cond:      decodeShockCondition(entry.Key, opts),
			shockType: shockType,
		})
	}
	return out
}

func decodeShockCondition(rule string, opts shockRuleOptions) shockCondition {
	switch {
	case opts.levelRules && strings.HasPrefix(rule, "level=="):
		return levelCondition{want: strings.Split(rule, "==")[1]}

	case strings.Contains(rule, "=="):
		fieldExpr, want, _ := strings.Cut(rule, "==")
		p, err := compilePath(fieldExpr)
		if err != nil {
			zap.L().Warn("detector: unparseable shock-type rule, treating as non-match",
				zap.String("rule", rule),
				zap.Error(err),
			)
			return neverCondition{}
		}
		return fieldEqualsCondition{path: p, want: want, arrayAware: opts.arrayAware}

	case strings.HasPrefix(rule, "contains:"):
		_, keyword, _ := strings.Cut(rule, ":")
		return textContainsCondition{keyword: strings.ToLower(keyword)}

	default:
		return neverCondition{}
	}
}

// classify evaluates the mappings in order and returns the first match,
// falling back to Conflict.
func classifyShockType(mappings []shockMapping, ev *shockEval) string {
	for _, m := range mappings {
		if m.cond.matches(ev) {
			return m.shockType
		}
	}
	return model.ShockConflict
}
