// Package store persists clustering runs and their cluster summaries in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/activity.cluster/internal/timeutil"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("store: run not found")

// Run describes one clustering invocation.
type Run struct {
	ID           string
	CreatedAt    time.Time
	Eps          float64
	MinPts       int
	PointCount   int
	ClusterCount int
	NoiseCount   int
	Source       string // input path or other free-form origin
}

// ClusterSummary is the stored shape of one cluster of a run.
type ClusterSummary struct {
	RunID     string
	ClusterID int
	Size      int
	Centroid  []float64
}

// Store is a SQLite-backed run history. Safe for concurrent use.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp new runs.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open opens (creating if needed) the database at path and brings its schema
// up to date.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	s := &Store{db: db, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun stores run and its clusters in one transaction. An empty run.ID
// is replaced with a new UUID and CreatedAt is set from the store clock. The
// stored run is returned.
func (s *Store) RecordRun(ctx context.Context, run Run, clusters []ClusterSummary) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.CreatedAt = s.clock.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cluster_runs (
			run_id, created_at, eps, min_pts, point_count, cluster_count, noise_count, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), run.Eps, run.MinPts,
		run.PointCount, run.ClusterCount, run.NoiseCount, run.Source,
	)
	if err != nil {
		return Run{}, fmt.Errorf("store: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_clusters (run_id, cluster_id, size, centroid) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("store: prepare cluster insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range clusters {
		centroid, err := json.Marshal(c.Centroid)
		if err != nil {
			return Run{}, fmt.Errorf("store: encode centroid of cluster %d: %w", c.ClusterID, err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, c.ClusterID, c.Size, string(centroid)); err != nil {
			return Run{}, fmt.Errorf("store: insert cluster %d: %w", c.ClusterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("store: commit: %w", err)
	}
	return run, nil
}

const runColumns = `run_id, created_at, eps, min_pts, point_count, cluster_count, noise_count, source`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var createdAt int64
	err := row.Scan(&r.ID, &createdAt, &r.Eps, &r.MinPts,
		&r.PointCount, &r.ClusterCount, &r.NoiseCount, &r.Source)
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return r, nil
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM cluster_runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("store: get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all
// runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM cluster_runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListClusters returns the clusters of a run ordered by cluster ID.
func (s *Store) ListClusters(ctx context.Context, runID string) ([]ClusterSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, cluster_id, size, centroid
		FROM run_clusters WHERE run_id = ? ORDER BY cluster_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: list clusters: %w", err)
	}
	defer rows.Close()

	var out []ClusterSummary
	for rows.Next() {
		var c ClusterSummary
		var centroid string
		if err := rows.Scan(&c.RunID, &c.ClusterID, &c.Size, &centroid); err != nil {
			return nil, fmt.Errorf("store: scan cluster: %w", err)
		}
		if err := json.Unmarshal([]byte(centroid), &c.Centroid); err != nil {
			return nil, fmt.Errorf("store: decode centroid of cluster %d: %w", c.ClusterID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
