// Package classifier provides headline sequence-classification for the
// headline classifier detector. Inference runs on an external model
// server; this package holds the client and the interface the detector
// consumes.
package classifier

import "context"

// Prediction is the model's verdict for one input text.
type Prediction struct {
	// Label is the predicted class: 1 for alert, 0 for non-alert.
	Label int `json:"label"`
	// Probability is the model's confidence in the alert class.
	Probability float64 `json:"probability"`
}

// Classifier scores a batch of headline texts. Implementations must
// return exactly one prediction per input, in input order.
type Classifier interface {
	Classify(ctx context.Context, texts []string) ([]Prediction, error)
}
