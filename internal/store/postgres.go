package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/crisisobs/shockwatch/internal/db"
	"github.com/crisisobs/shockwatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_detection": `INSERT INTO detections (id, detector, title, ts, confidence, shock_type, locations, data, created_at)
	                     VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"count_detections": `SELECT COUNT(*) FROM detections`,
}

// detectionColumns is the column order used for bulk COPY inserts.
var detectionColumns = []string{
	"id", "detector", "title", "ts", "confidence", "shock_type", "locations", "data", "created_at",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS detections (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	detector    TEXT NOT NULL,
	title       TEXT NOT NULL,
	ts          TIMESTAMPTZ NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	shock_type  TEXT NOT NULL,
	locations   JSONB NOT NULL DEFAULT '[]',
	data        JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_detections_detector ON detections(detector);
CREATE INDEX IF NOT EXISTS idx_detections_ts ON detections(ts DESC);
CREATE INDEX IF NOT EXISTS idx_detections_shock_type ON detections(shock_type);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveDetections bulk-inserts one detector run's output via COPY.
func (s *PostgresStore) SaveDetections(ctx context.Context, detections []model.Detection) (int, error) {
	if len(detections) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(detections))
	for _, det := range detections {
		locationsJSON, dataJSON, err := marshalDetection(det)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal detection")
		}
		rows = append(rows, []any{
			uuid.New().String(), det.Detector, det.Title, det.Timestamp.UTC(),
			det.Confidence, det.ShockType, locationsJSON, dataJSON, now,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "detections", detectionColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save detections")
	}
	return int(n), nil
}

func (s *PostgresStore) ListDetections(ctx context.Context, filter DetectionFilter) ([]StoredDetection, error) {
	query := `SELECT id, detector, title, ts, confidence, shock_type, locations, data, created_at
	          FROM detections WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Detector != "" {
		query += fmt.Sprintf(` AND detector = $%d`, argIdx)
		args = append(args, filter.Detector)
		argIdx++
	}
	if filter.ShockType != "" {
		query += fmt.Sprintf(` AND shock_type = $%d`, argIdx)
		args = append(args, filter.ShockType)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND ts >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(` AND ts <= $%d`, argIdx)
		args = append(args, filter.Until.UTC())
		argIdx++
	}
	if filter.MinConfidence > 0 {
		query += fmt.Sprintf(` AND confidence >= $%d`, argIdx)
		args = append(args, filter.MinConfidence)
		argIdx++
	}
	query += ` ORDER BY ts DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list detections")
	}
	defer rows.Close()

	var detections []StoredDetection
	for rows.Next() {
		var d StoredDetection
		var locationsJSON, dataJSON []byte
		err := rows.Scan(&d.ID, &d.Detector, &d.Title, &d.Timestamp, &d.Confidence,
			&d.ShockType, &locationsJSON, &dataJSON, &d.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan detection")
		}
		if err := unmarshalDetection(&d, locationsJSON, dataJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal detection")
		}
		detections = append(detections, d)
	}
	return detections, eris.Wrap(rows.Err(), "postgres: list detections iterate")
}

func (s *PostgresStore) CountDetections(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM detections`).Scan(&count)
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return count, eris.Wrap(err, "postgres: count detections")
}
