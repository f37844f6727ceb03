package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the model-server client.
type HTTPOptions struct {
	Timeout    time.Duration
	MaxRetries int
	RatePerSec float64
	MaxLength  int
}

// HTTPClassifier calls a sequence-classification model server over HTTP.
// Requests are rate limited and retried on 429/5xx with linear backoff.
type HTTPClassifier struct {
	url        string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	maxLength  int
}

// NewHTTP creates an HTTPClassifier for the given endpoint. url must be
// non-empty; the detector contract requires the model reference at
// construction time.
func NewHTTP(url string, opts HTTPOptions) (*HTTPClassifier, error) {
	if url == "" {
		return nil, eris.New("classifier: model url is required")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	perSec := opts.RatePerSec
	if perSec == 0 {
		perSec = 4
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	maxLength := opts.MaxLength
	if maxLength == 0 {
		maxLength = 64
	}
	return &HTTPClassifier{
		url:        url,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
		maxRetries: maxRetries,
		maxLength:  maxLength,
	}, nil
}

type classifyRequest struct {
	Inputs    []string `json:"inputs"`
	MaxLength int      `json:"max_length"`
}

type classifyResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Classify sends one batch of texts to the model server.
func (c *HTTPClassifier) Classify(ctx context.Context, texts []string) ([]Prediction, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(classifyRequest{Inputs: texts, MaxLength: c.maxLength})
	if err != nil {
		return nil, eris.Wrap(err, "classifier: marshal request")
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "classifier: rate limiter")
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "classifier: context cancelled")
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		preds, retryable, err := c.doRequest(ctx, body, len(texts))
		if err == nil {
			return preds, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		zap.L().Warn("classifier: retrying model server request",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, eris.Wrapf(lastErr, "classifier: giving up after %d retries", c.maxRetries)
}

func (c *HTTPClassifier) doRequest(ctx context.Context, body []byte, want int) ([]Prediction, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, false, eris.Wrap(err, "classifier: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, eris.Wrap(err, "classifier: model server request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, true, eris.Errorf("classifier: model server returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, eris.Errorf("classifier: model server returned %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, eris.Wrap(err, "classifier: decode response")
	}
	if len(out.Predictions) != want {
		return nil, false, eris.Errorf("classifier: got %d predictions for %d inputs", len(out.Predictions), want)
	}
	return out.Predictions, false, nil
}
