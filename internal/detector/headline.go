package detector

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crisisobs/shockwatch/internal/classifier"
	"github.com/crisisobs/shockwatch/internal/model"
)

// Headline classifier defaults.
const (
	defaultConfidenceThreshold = 0.5
	defaultClassifierBatch     = 8
	defaultHeadlineField       = "raw_data_headline"
)

// HeadlineClassifierConfig is the configuration document for a
// HeadlineClassifierDetector. ModelURL and VariableCode are required;
// construction fails without them.
type HeadlineClassifierConfig struct {
	Name                string   `json:"name" yaml:"name"`
	ModelURL            string   `json:"model_url" yaml:"model_url"`
	VariableCode        string   `json:"variable_code" yaml:"variable_code"`
	ConfidenceThreshold *float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
	BatchSize           *int     `json:"batch_size" yaml:"batch_size"`
	HeadlineField       string   `json:"headline_field" yaml:"headline_field"`
	ShockTypeMapping    pairs    `json:"shock_type_mapping" yaml:"shock_type_mapping"`
}

// HeadlineClassifierDetector sends record headlines to a classification
// model and emits a detection for every headline the model flags as an
// alert with probability at or above the configured threshold.
type HeadlineClassifierDetector struct {
	name          string
	modelURL      string
	variableCode  string
	threshold     float64
	batchSize     int
	headlineField string
	shockMappings []shockMapping
	cls           classifier.Classifier
}

// NewHeadlineClassifier validates the configuration and builds the
// detector. Missing model_url or variable_code is a configuration error
// and aborts initialization.
func NewHeadlineClassifier(cfg HeadlineClassifierConfig, cls classifier.Classifier) (*HeadlineClassifierDetector, error) {
	name := cfg.Name
	if name == "" {
		name = "headline_classifier"
	}
	if cfg.ModelURL == "" {
		return nil, eris.Errorf("detector %s: model_url is required", name)
	}
	if cfg.VariableCode == "" {
		return nil, eris.Errorf("detector %s: variable_code is required", name)
	}
	if cls == nil {
		return nil, eris.Errorf("detector %s: classifier is required", name)
	}

	d := &HeadlineClassifierDetector{
		name:          name,
		modelURL:      cfg.ModelURL,
		variableCode:  cfg.VariableCode,
		threshold:     defaultConfidenceThreshold,
		batchSize:     defaultClassifierBatch,
		headlineField: cfg.HeadlineField,
		cls:           cls,
	}
	if cfg.ConfidenceThreshold != nil {
		if *cfg.ConfidenceThreshold < 0 || *cfg.ConfidenceThreshold > 1 {
			return nil, eris.Errorf("detector %s: confidence_threshold must be in [0,1]", name)
		}
		d.threshold = *cfg.ConfidenceThreshold
	}
	if cfg.BatchSize != nil {
		if *cfg.BatchSize < 1 {
			return nil, eris.Errorf("detector %s: batch_size must be >= 1", name)
		}
		d.batchSize = *cfg.BatchSize
	}
	if d.headlineField == "" {
		d.headlineField = defaultHeadlineField
	}
	// The classifier grammar has no level rules and compares arrays
	// element-wise.
	d.shockMappings = decodeShockMappings(cfg.ShockTypeMapping, shockRuleOptions{arrayAware: true})

	return d, nil
}

// Name returns the detector's configured name.
func (d *HeadlineClassifierDetector) Name() string { return d.name }

// VariableCode reports the data-source variable this detector consumes.
func (d *HeadlineClassifierDetector) VariableCode() string { return d.variableCode }

// headline extracts the text to classify per the configured headline
// field, falling back to the record's free text.
func (d *HeadlineClassifierDetector) headline(rec *model.RawRecord) string {
	var h string
	switch d.headlineField {
	case "raw_data_headline":
		if s, ok := rec.RawData["headline"].(string); ok {
			h = s
		}
	case "text":
		h = rec.Text
	default:
		if v, ok := rec.RawData[d.headlineField]; ok {
			h = stringify(v)
		}
	}
	if h == "" {
		h = rec.Text
	}
	return h
}

// Detect classifies headlines in batches and emits detections for
// positive classifications meeting the threshold. A failed model call
// fails the whole batch: unlike per-record scoring noise, an unreachable
// model server is a batch-level condition the caller must see.
func (d *HeadlineClassifierDetector) Detect(ctx context.Context, records []*model.RawRecord) ([]model.Detection, error) {
	var detections []model.Detection

	for start := 0; start < len(records); start += d.batchSize {
		end := start + d.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = d.headline(rec)
			if texts[i] == "" {
				zap.L().Warn("detector: no headline for record",
					zap.String("detector", d.name),
					zap.Int64("record_id", rec.ID),
				)
			}
		}

		preds, err := d.cls.Classify(ctx, texts)
		if err != nil {
			return nil, eris.Wrapf(err, "detector %s: classify batch", d.name)
		}

		for i, pred := range preds {
			if pred.Label != 1 || pred.Probability < d.threshold {
				continue
			}
			detections = append(detections, d.assemble(batch[i], texts[i], pred))
		}
	}

	zap.L().Info("detector: run complete",
		zap.String("detector", d.name),
		zap.Int("records", len(records)),
		zap.Int("detections", len(detections)),
	)
	return detections, nil
}

func (d *HeadlineClassifierDetector) assemble(rec *model.RawRecord, headline string, pred classifier.Prediction) model.Detection {
	title := truncate(headline, titleMaxLen)
	if title == "" {
		title = fmt.Sprintf("Headline Alert - %s", rec.StartDate.Format("2006-01-02"))
	}

	var locations []model.ResolvedLocation
	locationName := ""
	if rec.Location != nil {
		locations = []model.ResolvedLocation{*rec.Location}
		locationName = rec.Location.Name
	}

	ev := &shockEval{
		raw:   rec.RawData,
		rec:   rec,
		level: model.LevelNone,
		text:  func() string { return headline },
	}

	return model.Detection{
		Title:      title,
		Timestamp:  rec.DayStart(),
		Locations:  locations,
		Confidence: pred.Probability,
		ShockType:  classifyShockType(d.shockMappings, ev),
		Detector:   d.name,
		Data: map[string]any{
			"variable_code":        d.variableCode,
			"headline":             headline,
			"prediction":           pred.Label,
			"model_confidence":     pred.Probability,
			"confidence_threshold": d.threshold,
			"start_date":           rec.StartDate.Format("2006-01-02"),
			"location_name":        locationName,
			"detector_type":        "headline_classifier",
			"model_url":            d.modelURL,
			"source":               "headline_classifier_detector",
		},
	}
}
