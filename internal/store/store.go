// Package store implements the per-run SQLite persistence layer.
//
// Each run is one SQLite file. The producing process holds the single
// writer handle for the run's lifetime; readers (catalog scans, query
// server requests) open the same file read-only at any point, including
// mid-run. WAL journaling is what makes that safe: readers see a
// consistent snapshot and never block on, or are blocked by, the
// writer's open transaction. Cross-process safety comes entirely from
// SQLite's WAL and file locking; there is no application-level
// coordination between processes.
//
// Within one process, all mutations on a Store are serialized behind a
// single mutex, so concurrent producer goroutines behave as one writer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goodseed-ai/goodseed/internal/codec"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS run_meta (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS configs (
	path TEXT PRIMARY KEY,
	type_tag TEXT NOT NULL,
	value TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metric_series (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS metric_points (
	series_id INTEGER NOT NULL,
	step INTEGER NOT NULL,
	y REAL NOT NULL,
	ts INTEGER NOT NULL,
	PRIMARY KEY (series_id, step)
);
`

// Point is one metric observation.
type Point struct {
	Path  string
	Step  int64
	Value float64
	TS    int64 // unix seconds at write time
}

// ConfigEntry is a tagged config value as persisted. Present is false
// when the stored raw value is SQL NULL.
type ConfigEntry struct {
	Kind    codec.Kind
	Text    string
	Present bool
}

// Store is a handle to one run's SQLite file. It is safe for concurrent
// use; all mutations are serialized internally.
type Store struct {
	path     string
	readOnly bool

	mu     sync.Mutex
	db     *sql.DB
	series map[string]int64 // path -> series id, owned by this instance
	closed bool
}

// Open creates or attaches to a run file for writing. The schema is
// created if absent. WAL journaling and a 5s busy timeout are enabled so
// readers never block the writer and lock contention fails within a
// bound instead of hanging.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create run directory: %w", err)
	}

	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection: database/sql must not fan the writer out.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	return &Store{path: path, db: db, series: make(map[string]int64)}, nil
}

// OpenReadOnly attaches to an existing run file without taking the
// writer role. The open is WAL-aware, so it works while a producer in
// another process still holds the file. A missing file is ErrNotFound;
// the read-only open never creates one.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store: %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("store: stat %s: %w", path, err)
	}

	dsn := "file:" + path + "?mode=ro&_pragma=busy_timeout(3000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open read-only %s: %w", path, err)
	}

	return &Store{path: path, db: db, readOnly: true, series: make(map[string]int64)}, nil
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// writable gates mutations; callers must hold s.mu.
func (s *Store) writable() error {
	if s.closed {
		return ErrClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}
	return nil
}

// SetMeta upserts a run-level metadata entry, last-write-wins.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("store: set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta returns one metadata value. An absent key is ErrNotFound.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM run_meta WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("store: meta %s: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("store: get meta %s: %w", key, err)
	}
	return value, nil
}

// Meta returns all metadata key/value pairs.
func (s *Store) Meta(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM run_meta`)
	if err != nil {
		return nil, fmt.Errorf("store: read meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("store: scan meta: %w", err)
		}
		meta[k] = v.String
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read meta: %w", err)
	}
	return meta, nil
}

// LogConfigs upserts a batch of config entries in one transaction: all
// entries become visible together or, on failure, none of them do. A
// path that already exists is overwritten.
func (s *Store) LogConfigs(ctx context.Context, entries map[string]codec.Tagged) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin configs tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for path, tv := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO configs (path, type_tag, value, updated_at)
			 VALUES (?, ?, ?, ?)`,
			path, string(tv.Kind), tv.Text, now,
		); err != nil {
			return fmt.Errorf("store: log config %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit configs: %w", err)
	}
	return nil
}

// GetConfigs returns all config entries keyed by path.
func (s *Store) GetConfigs(ctx context.Context) (map[string]ConfigEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT path, type_tag, value FROM configs`)
	if err != nil {
		return nil, fmt.Errorf("store: read configs: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]ConfigEntry)
	for rows.Next() {
		var path, tag string
		var value sql.NullString
		if err := rows.Scan(&path, &tag, &value); err != nil {
			return nil, fmt.Errorf("store: scan config: %w", err)
		}
		configs[path] = ConfigEntry{Kind: codec.Kind(tag), Text: value.String, Present: value.Valid}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read configs: %w", err)
	}
	return configs, nil
}

// LogMetricPoints upserts a batch of points in one transaction. Series
// are created on first use; a point at an existing (series, step)
// overwrites the prior value.
func (s *Store) LogMetricPoints(ctx context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin points tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range points {
		id, err := s.seriesID(ctx, tx, p.Path)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO metric_points (series_id, step, y, ts)
			 VALUES (?, ?, ?, ?)`,
			id, p.Step, p.Value, p.TS,
		); err != nil {
			return fmt.Errorf("store: log point %s step %d: %w", p.Path, p.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit points: %w", err)
	}
	return nil
}

// seriesID resolves or creates the surrogate id for a metric path.
// INSERT OR IGNORE makes creation idempotent under the UNIQUE(path)
// constraint. The cache is owned by this instance and dies with it;
// callers must hold s.mu.
func (s *Store) seriesID(ctx context.Context, tx *sql.Tx, path string) (int64, error) {
	if id, ok := s.series[path]; ok {
		return id, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO metric_series (path) VALUES (?)`, path); err != nil {
		return 0, fmt.Errorf("store: create series %s: %w", path, err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM metric_series WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: resolve series %s: %w", path, err)
	}

	s.series[path] = id
	return id, nil
}

// GetMetricPoints returns points for one series, or for all series when
// path is empty, ordered by path then step ascending.
func (s *Store) GetMetricPoints(ctx context.Context, path string) ([]Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	query := `SELECT s.path, p.step, p.y, p.ts
		FROM metric_points p
		JOIN metric_series s ON p.series_id = s.id
		ORDER BY s.path, p.step`
	args := []any{}
	if path != "" {
		query = `SELECT s.path, p.step, p.y, p.ts
			FROM metric_points p
			JOIN metric_series s ON p.series_id = s.id
			WHERE s.path = ?
			ORDER BY p.step`
		args = append(args, path)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: read points: %w", err)
	}
	defer rows.Close()

	points := make([]Point, 0)
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Path, &p.Step, &p.Value, &p.TS); err != nil {
			return nil, fmt.Errorf("store: scan point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read points: %w", err)
	}
	return points, nil
}

// GetMetricPaths returns the sorted distinct paths of every series with
// at least one point.
func (s *Store) GetMetricPaths(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT s.path FROM metric_series s
		 JOIN metric_points p ON s.id = p.series_id
		 ORDER BY s.path`)
	if err != nil {
		return nil, fmt.Errorf("store: read metric paths: %w", err)
	}
	defer rows.Close()

	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("store: scan metric path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read metric paths: %w", err)
	}
	return paths, nil
}

// Checkpoint merges the write-ahead log into the primary file. After a
// checkpointed Close the run is exactly one file on disk, with no -wal
// or -shm sidecars, which is what makes run files portable.
func (s *Store) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("store: checkpoint: %w", err)
	}
	return nil
}

// Close releases the handle. It is idempotent; any operation after
// Close fails with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.series = nil

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// Delete closes the handle and removes the backing file along with any
// WAL/shared-memory sidecars. This is an explicit maintenance operation
// reserved to the writer; the store never deletes run files on its own.
func (s *Store) Delete() error {
	s.mu.Lock()
	readOnly := s.readOnly
	s.mu.Unlock()
	if readOnly {
		return ErrReadOnly
	}

	if err := s.Close(); err != nil {
		return err
	}
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: delete %s: %w", p, err)
		}
	}
	return nil
}
