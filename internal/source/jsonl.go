package source

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crisisobs/shockwatch/internal/model"
)

// JSONLSource reads one record document per line from a local file.
type JSONLSource struct {
	path string
}

// NewJSONL creates a JSONLSource for the given file path.
func NewJSONL(path string) (*JSONLSource, error) {
	if path == "" {
		return nil, eris.New("source: jsonl path is required")
	}
	return &JSONLSource{path: path}, nil
}

// Records reads every line, skipping blanks, and returns the records in
// the window in file order. A malformed line fails the whole read; a
// partial batch would silently skew detection scores downstream.
func (s *JSONLSource) Records(ctx context.Context, from, to time.Time) ([]*model.RawRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open %s", s.path)
	}
	defer f.Close() //nolint:errcheck

	var records []*model.RawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if err := checkCtx(ctx, "jsonl read"); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc recordDocument
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, eris.Wrapf(err, "source: %s line %d", s.path, line)
		}
		rec, err := doc.toRecord()
		if err != nil {
			return nil, eris.Wrapf(err, "source: %s line %d", s.path, line)
		}
		if inWindow(rec.StartDate, from, to) {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: read %s", s.path)
	}

	zap.L().Info("source: jsonl loaded",
		zap.String("path", s.path),
		zap.Int("lines", line),
		zap.Int("records", len(records)),
	)
	return records, nil
}
