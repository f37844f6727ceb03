package detector

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/crisisobs/shockwatch/internal/classifier"
	"github.com/crisisobs/shockwatch/internal/model"
)

// Detector runs one configured detection pass over a batch of records.
// Implementations are immutable after construction and safe to reuse
// across runs.
type Detector interface {
	Name() string
	// VariableCode scopes which records the caller should feed this
	// detector; empty means all.
	VariableCode() string
	Detect(ctx context.Context, records []*model.RawRecord) ([]model.Detection, error)
}

// Dependencies carries collaborators detectors may need at construction.
type Dependencies struct {
	// NewClassifier builds the model client for a headline classifier
	// document. Required only when such documents exist.
	NewClassifier func(modelURL string) (classifier.Classifier, error)
}

// Detector document types.
const (
	TypeScoring            = "scoring"
	TypeHeadlineClassifier = "headline_classifier"
)

type typedDocument struct {
	Type string `json:"type" yaml:"type"`
}

// Load reads one detector configuration document (.json, .yaml or .yml)
// and constructs the detector it describes. Configuration problems are
// construction errors; nothing is deferred to detection time.
func Load(path string, deps Dependencies) (Detector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "detector: read config %s", path)
	}

	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".json") {
		unmarshal = json.Unmarshal
	}

	var head typedDocument
	if err := unmarshal(data, &head); err != nil {
		return nil, eris.Wrapf(err, "detector: parse config %s", path)
	}

	switch head.Type {
	case TypeScoring:
		var cfg ScoringConfig
		if err := unmarshal(data, &cfg); err != nil {
			return nil, eris.Wrapf(err, "detector: parse scoring config %s", path)
		}
		return NewScoring(cfg)

	case TypeHeadlineClassifier:
		var cfg HeadlineClassifierConfig
		if err := unmarshal(data, &cfg); err != nil {
			return nil, eris.Wrapf(err, "detector: parse classifier config %s", path)
		}
		if deps.NewClassifier == nil {
			return nil, eris.Errorf("detector: %s needs a classifier but none is configured", path)
		}
		// An empty model_url is reported by NewHeadlineClassifier.
		var cls classifier.Classifier
		if cfg.ModelURL != "" {
			if cls, err = deps.NewClassifier(cfg.ModelURL); err != nil {
				return nil, eris.Wrapf(err, "detector: build classifier for %s", path)
			}
		}
		return NewHeadlineClassifier(cfg, cls)

	case "":
		return nil, eris.Errorf("detector: %s is missing a type", path)
	default:
		return nil, eris.Errorf("detector: %s has unknown type %q", path, head.Type)
	}
}

// LoadDir loads every detector document in a directory, in file-name
// order. Non-config files are ignored; any invalid document fails the
// whole load.
func LoadDir(dir string, deps Dependencies) ([]Detector, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "detector: read config dir %s", dir)
	}

	var detectors []Detector
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		d, err := Load(filepath.Join(dir, entry.Name()), deps)
		if err != nil {
			return nil, err
		}
		zap.L().Info("detector: loaded",
			zap.String("name", d.Name()),
			zap.String("config", entry.Name()),
		)
		detectors = append(detectors, d)
	}
	if len(detectors) == 0 {
		return nil, eris.Errorf("detector: no detector configs found in %s", dir)
	}
	return detectors, nil
}
