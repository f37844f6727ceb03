package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/crisisobs/shockwatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS detections (
	id          TEXT PRIMARY KEY,
	detector    TEXT NOT NULL,
	title       TEXT NOT NULL,
	ts          DATETIME NOT NULL,
	confidence  REAL NOT NULL,
	shock_type  TEXT NOT NULL,
	locations   TEXT NOT NULL DEFAULT '[]',
	data        TEXT NOT NULL DEFAULT '{}',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_detections_detector ON detections(detector);
CREATE INDEX IF NOT EXISTS idx_detections_ts ON detections(ts);
CREATE INDEX IF NOT EXISTS idx_detections_shock_type ON detections(shock_type);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveDetections persists one detector run's output atomically; a failed
// insert rolls back the whole batch.
func (s *SQLiteStore) SaveDetections(ctx context.Context, detections []model.Detection) (int, error) {
	if len(detections) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, det := range detections {
		locationsJSON, dataJSON, err := marshalDetection(det)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal detection")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO detections (id, detector, title, ts, confidence, shock_type, locations, data, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), det.Detector, det.Title, det.Timestamp.UTC(),
			det.Confidence, det.ShockType, string(locationsJSON), string(dataJSON), now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert detection")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit detections")
	}
	return len(detections), nil
}

func (s *SQLiteStore) ListDetections(ctx context.Context, filter DetectionFilter) ([]StoredDetection, error) {
	query := `SELECT id, detector, title, ts, confidence, shock_type, locations, data, created_at
	          FROM detections WHERE 1=1`
	var args []any

	if filter.Detector != "" {
		query += ` AND detector = ?`
		args = append(args, filter.Detector)
	}
	if filter.ShockType != "" {
		query += ` AND shock_type = ?`
		args = append(args, filter.ShockType)
	}
	if !filter.Since.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, filter.Until.UTC())
	}
	if filter.MinConfidence > 0 {
		query += ` AND confidence >= ?`
		args = append(args, filter.MinConfidence)
	}
	query += ` ORDER BY ts DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list detections")
	}
	defer rows.Close()

	var detections []StoredDetection
	for rows.Next() {
		var d StoredDetection
		var locationsJSON, dataJSON string
		err := rows.Scan(&d.ID, &d.Detector, &d.Title, &d.Timestamp, &d.Confidence,
			&d.ShockType, &locationsJSON, &dataJSON, &d.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan detection")
		}
		if err := unmarshalDetection(&d, []byte(locationsJSON), []byte(dataJSON)); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal detection")
		}
		detections = append(detections, d)
	}
	return detections, eris.Wrap(rows.Err(), "sqlite: list detections iterate")
}

func (s *SQLiteStore) CountDetections(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detections`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count detections")
}

// helpers shared with the Postgres store

func marshalDetection(det model.Detection) (locations, data []byte, err error) {
	locs := det.Locations
	if locs == nil {
		locs = []model.ResolvedLocation{}
	}
	locations, err = json.Marshal(locs)
	if err != nil {
		return nil, nil, err
	}
	payload := det.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err = json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	return locations, data, nil
}

func unmarshalDetection(d *StoredDetection, locations, data []byte) error {
	if err := json.Unmarshal(locations, &d.Locations); err != nil {
		return err
	}
	return json.Unmarshal(data, &d.Data)
}
