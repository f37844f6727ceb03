package detector

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/crisisobs/shockwatch/internal/model"
)

// Scoring defaults mirror the configuration contract.
const (
	defaultMinDetectionScore  = 8
	defaultBaseScore          = 1.0
	defaultClusterWindowHours = 6
	defaultClusterMinAlerts   = 2
)

var (
	defaultTextFields     = []string{"headline", pathTextFallback}
	defaultLocationFields = []string{"estimatedEventLocation[0]", pathLocationFallback}
)

// ScoringConfig is the configuration document for a ScoringDetector, as
// decoded from JSON or YAML. Absent numeric options keep their defaults;
// ordered mappings preserve document order.
type ScoringConfig struct {
	Name                string             `json:"name" yaml:"name"`
	VariableCode        string             `json:"variable_code" yaml:"variable_code"`
	FieldScores         pairs              `json:"field_scores" yaml:"field_scores"`
	KeywordScores       pairs              `json:"keyword_scores" yaml:"keyword_scores"`
	KeywordMaxMode      bool               `json:"keyword_max_mode" yaml:"keyword_max_mode"`
	TextFields          []string           `json:"text_fields" yaml:"text_fields"`
	LocationMultipliers pairs              `json:"location_multipliers" yaml:"location_multipliers"`
	LocationFields      []string           `json:"location_fields" yaml:"location_fields"`
	Thresholds          *ThresholdsConfig  `json:"thresholds" yaml:"thresholds"`
	MinDetectionScore   *float64           `json:"min_detection_score" yaml:"min_detection_score"`
	BaseScore           *float64           `json:"base_score" yaml:"base_score"`
	EnableClustering    bool               `json:"enable_clustering" yaml:"enable_clustering"`
	ClusterWindowHours  *float64           `json:"cluster_window_hours" yaml:"cluster_window_hours"`
	ClusterMinAlerts    *int               `json:"cluster_min_alerts" yaml:"cluster_min_alerts"`
	ShockTypeMapping    pairs              `json:"shock_type_mapping" yaml:"shock_type_mapping"`
}

// ThresholdsConfig carries the per-level score cutoffs; absent keys keep
// their defaults individually.
type ThresholdsConfig struct {
	Critical *float64 `json:"critical" yaml:"critical"`
	High     *float64 `json:"high" yaml:"high"`
	Medium   *float64 `json:"medium" yaml:"medium"`
	Low      *float64 `json:"low" yaml:"low"`
}

// fieldScorer binds one compiled path to its compiled rule set.
type fieldScorer struct {
	path  *fieldPath
	rules scoreRules
}

// ScoringDetector scores records against configured field, keyword and
// location rules, emits a detection per qualifying record, and optionally
// clusters qualifying records in time and space. Immutable after New.
type ScoringDetector struct {
	name           string
	variableCode   string
	baseScore      float64
	minScore       float64
	fields         []fieldScorer
	keywords       []scoredTerm
	keywordMaxMode bool
	textPaths      []*fieldPath
	locPaths       []*fieldPath
	multipliers    []locationMultiplier
	levels         thresholds
	clustering     bool
	windowHours    float64
	minAlerts      int
	shockMappings  []shockMapping
}

// NewScoring compiles a ScoringConfig into a detector. All rule and path
// decoding happens here; configuration problems fail construction instead
// of surfacing per record.
func NewScoring(cfg ScoringConfig) (*ScoringDetector, error) {
	d := &ScoringDetector{
		name:           cfg.Name,
		variableCode:   cfg.VariableCode,
		baseScore:      defaultBaseScore,
		minScore:       defaultMinDetectionScore,
		keywordMaxMode: cfg.KeywordMaxMode,
		clustering:     cfg.EnableClustering,
		windowHours:    defaultClusterWindowHours,
		minAlerts:      defaultClusterMinAlerts,
		levels: thresholds{
			critical: defaultCriticalThreshold,
			high:     defaultHighThreshold,
			medium:   defaultMediumThreshold,
			low:      defaultLowThreshold,
		},
	}
	if d.name == "" {
		d.name = "scoring"
	}
	if cfg.BaseScore != nil {
		d.baseScore = *cfg.BaseScore
	}
	if cfg.MinDetectionScore != nil {
		d.minScore = *cfg.MinDetectionScore
	}
	if cfg.ClusterWindowHours != nil {
		d.windowHours = *cfg.ClusterWindowHours
	}
	if cfg.ClusterMinAlerts != nil {
		if *cfg.ClusterMinAlerts < 2 {
			return nil, eris.Errorf("detector %s: cluster_min_alerts must be >= 2, got %d", d.name, *cfg.ClusterMinAlerts)
		}
		d.minAlerts = *cfg.ClusterMinAlerts
	}
	if t := cfg.Thresholds; t != nil {
		if t.Critical != nil {
			d.levels.critical = *t.Critical
		}
		if t.High != nil {
			d.levels.high = *t.High
		}
		if t.Medium != nil {
			d.levels.medium = *t.Medium
		}
		if t.Low != nil {
			d.levels.low = *t.Low
		}
	}

	for _, entry := range cfg.FieldScores {
		p, err := compilePath(entry.Key)
		if err != nil {
			return nil, eris.Wrapf(err, "detector %s: field_scores", d.name)
		}
		body, ok := entry.Value.(map[string]any)
		if !ok {
			return nil, eris.Errorf("detector %s: field_scores %q must map to a rule object", d.name, entry.Key)
		}
		rules, err := decodeScoreRules(body)
		if err != nil {
			return nil, eris.Wrapf(err, "detector %s: field_scores %q", d.name, entry.Key)
		}
		d.fields = append(d.fields, fieldScorer{path: p, rules: rules})
	}

	for _, entry := range cfg.KeywordScores {
		score, err := cast.ToFloat64E(entry.Value)
		if err != nil {
			return nil, eris.Wrapf(err, "detector %s: keyword_scores %q", d.name, entry.Key)
		}
		d.keywords = append(d.keywords, scoredTerm{term: strings.ToLower(entry.Key), score: score})
	}

	textFields := cfg.TextFields
	if textFields == nil {
		textFields = defaultTextFields
	}
	for _, raw := range textFields {
		p, err := compilePath(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "detector %s: text_fields", d.name)
		}
		d.textPaths = append(d.textPaths, p)
	}

	locFields := cfg.LocationFields
	if locFields == nil {
		locFields = defaultLocationFields
	}
	for _, raw := range locFields {
		p, err := compilePath(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "detector %s: location_fields", d.name)
		}
		d.locPaths = append(d.locPaths, p)
	}

	for _, entry := range cfg.LocationMultipliers {
		factor, err := cast.ToFloat64E(entry.Value)
		if err != nil {
			return nil, eris.Wrapf(err, "detector %s: location_multipliers %q", d.name, entry.Key)
		}
		d.multipliers = append(d.multipliers, locationMultiplier{
			key:     entry.Key,
			lowered: strings.ToLower(entry.Key),
			factor:  factor,
		})
	}

	d.shockMappings = decodeShockMappings(cfg.ShockTypeMapping, shockRuleOptions{levelRules: true})

	return d, nil
}

// Name returns the detector's configured name.
func (d *ScoringDetector) Name() string { return d.name }

// VariableCode reports which data-source variable this detector expects;
// the caller uses it to scope the record fetch.
func (d *ScoringDetector) VariableCode() string { return d.variableCode }

// Detect scores every record, assembles a detection per qualifying record
// and, when clustering is enabled, a detection per temporal-spatial
// cluster of qualifying records. Individual detections come first, then
// cluster detections. Single bad records are logged and skipped; Detect
// itself never fails.
func (d *ScoringDetector) Detect(ctx context.Context, records []*model.RawRecord) ([]model.Detection, error) {
	var scored []model.ScoredAlert
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "detector: context cancelled")
		}
		alert, err := d.safeScore(rec)
		if err != nil {
			zap.L().Error("detector: scoring record failed",
				zap.String("detector", d.name),
				zap.Int64("record_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		if alert.Score >= d.minScore {
			scored = append(scored, alert)
		}
	}

	detections := make([]model.Detection, 0, len(scored))
	for _, alert := range scored {
		det, err := d.safeAssemble(alert)
		if err != nil {
			zap.L().Error("detector: assembling detection failed",
				zap.String("detector", d.name),
				zap.Int64("record_id", alert.Record.ID),
				zap.Error(err),
			)
			continue
		}
		detections = append(detections, det)
	}

	if d.clustering {
		detections = append(detections, d.clusterDetections(scored)...)
	}

	zap.L().Info("detector: run complete",
		zap.String("detector", d.name),
		zap.Int("records", len(records)),
		zap.Int("qualifying", len(scored)),
		zap.Int("detections", len(detections)),
	)
	return detections, nil
}

// safeScore wraps scoreAlert so an unexpected panic on one malformed
// record degrades to a skipped record, not an aborted batch.
func (d *ScoringDetector) safeScore(rec *model.RawRecord) (alert model.ScoredAlert, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic scoring record: %v", r)
		}
	}()
	return d.scoreAlert(rec), nil
}

// scoreAlert computes the composite score for one record:
// (base + field scores + keyword score) * location multiplier.
func (d *ScoringDetector) scoreAlert(rec *model.RawRecord) model.ScoredAlert {
	components := model.ScoreComponents{
		BaseScore:          d.baseScore,
		FieldScores:        map[string]float64{},
		LocationMultiplier: 1.0,
	}

	fieldScore := 0.0
	for _, fs := range d.fields {
		contribution := fs.rules.score(fs.path.Extract(rec.RawData, rec))
		if contribution > 0 {
			components.FieldScores[fs.path.raw] = contribution
			fieldScore += contribution
		}
	}

	components.KeywordScore = d.scoreKeywords(d.assembleText(rec))
	components.LocationMultiplier = d.multiplier(d.locationName(rec))

	final := (components.BaseScore + fieldScore + components.KeywordScore) * components.LocationMultiplier
	level := d.levels.classify(final)

	zap.L().Debug("detector: scored record",
		zap.String("detector", d.name),
		zap.Int64("record_id", rec.ID),
		zap.Float64("score", final),
		zap.String("level", string(level)),
	)

	return model.ScoredAlert{
		Record:     rec,
		Score:      final,
		Level:      level,
		Components: components,
	}
}

// shockType classifies one scored record against the configured mappings.
func (d *ScoringDetector) shockType(alert model.ScoredAlert) string {
	ev := &shockEval{
		raw:   alert.Record.RawData,
		rec:   alert.Record,
		level: alert.Level,
		text:  func() string { return d.assembleText(alert.Record) },
	}
	return classifyShockType(d.shockMappings, ev)
}
