// Package goodseed is a local experiment tracker. A Run logs key/value
// configuration and step-indexed scalar metrics to a single SQLite file
// that persists after the run closes; the goodseed CLI serves those
// files over HTTP for visualization.
//
//	run, err := goodseed.New(ctx, goodseed.WithExperimentName("mlp"))
//	if err != nil { ... }
//	defer run.Close(ctx)
//
//	run.LogConfigs(ctx, map[string]any{"lr": 0.001})
//	run.LogMetrics(ctx, map[string]float64{"loss": 0.5}, 1)
//
// A Run must be closed on every exit path of the producing scope; Track
// wraps that pattern and records a failed status when the scope errors.
package goodseed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goodseed-ai/goodseed/internal/codec"
	"github.com/goodseed-ai/goodseed/internal/config"
	"github.com/goodseed-ai/goodseed/internal/store"
)

// Status is the lifecycle state recorded in run metadata.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusUnknown  Status = "unknown"
)

// ErrRunExists is returned when an explicitly requested run name
// collides with an existing run file.
var ErrRunExists = errors.New("goodseed: run already exists")

// maxNameAttempts bounds auto-name collision retries (-2, -3, ...).
const maxNameAttempts = 1000

// Run is one tracked execution, backed by one SQLite file. The owning
// process is the run's only writer; methods are safe for concurrent use
// from its goroutines.
type Run struct {
	project    string
	name       string
	experiment string

	store  *store.Store
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a run and its backing file.
//
// Without WithRunName a readable name is generated, suffixed -2, -3, ...
// on collision. An explicit name that collides fails with ErrRunExists
// and creates nothing.
func New(ctx context.Context, opts ...Option) (*Run, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	project := o.project
	if project == "" {
		project = config.DefaultProjectName()
	}

	pathFor := func(name string) string {
		if o.logDir != "" {
			return filepath.Join(o.logDir, name+".sqlite")
		}
		return config.RunDBPath(project, name, o.home)
	}

	name, dbPath, err := resolveRunPath(pathFor, o.runName)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	run := &Run{
		project:    project,
		name:       name,
		experiment: o.experiment,
		store:      st,
		logger:     o.logger,
	}

	meta := [][2]string{
		{"run_name", name},
		{"project", project},
		{"created_at", time.Now().UTC().Format(time.RFC3339Nano)},
		{"status", string(StatusRunning)},
	}
	if o.experiment != "" {
		meta = append(meta, [2]string{"experiment_name", o.experiment})
	}
	for _, kv := range meta {
		if err := st.SetMeta(ctx, kv[0], kv[1]); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	o.logger.Info("goodseed run created",
		"project", project, "run", name, "path", dbPath)
	return run, nil
}

// resolveRunPath picks a unique (name, path) pair. An empty requested
// name means auto-naming: generate one and append -2, -3, ... while the
// target file exists. Explicit names never get a suffix.
func resolveRunPath(pathFor func(string) string, requested string) (string, string, error) {
	auto := requested == ""
	name := requested
	if auto {
		name = generateRunName()
	}

	dbPath := pathFor(name)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return name, dbPath, nil
	}

	if !auto {
		return "", "", fmt.Errorf(
			"%w: %s\nchoose a different run name or delete the file:\n  rm %s",
			ErrRunExists, dbPath, dbPath)
	}

	for i := 2; i < maxNameAttempts; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		dbPath = pathFor(candidate)
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return candidate, dbPath, nil
		}
	}
	return "", "", fmt.Errorf("goodseed: no unique run name after %d attempts", maxNameAttempts)
}

// Name returns the resolved run name.
func (r *Run) Name() string { return r.name }

// Project returns the project the run belongs to.
func (r *Run) Project() string { return r.project }

// Path returns the location of the run's database file.
func (r *Run) Path() string { return r.store.Path() }

// SetMeta records a run-level metadata entry, last-write-wins.
func (r *Run) SetMeta(ctx context.Context, key, value string) error {
	return r.store.SetMeta(ctx, key, value)
}

// LogConfigs records configuration values. Keys are slash-separated
// paths; a repeated path overwrites the prior value. With WithFlatten,
// nested maps and sequences are expanded into paths first. Unsupported
// value types fail the whole call unless WithStringCoercion is given.
func (r *Run) LogConfigs(ctx context.Context, data map[string]any, opts ...LogOption) error {
	var lo logOptions
	for _, opt := range opts {
		opt(&lo)
	}

	if lo.flatten {
		flat, err := codec.Flatten(data, lo.coerce)
		if err != nil {
			return err
		}
		data = flat
	}

	entries := make(map[string]codec.Tagged, len(data))
	for key, value := range data {
		path := codec.NormalizePath(key)
		tv, err := codec.Encode(value)
		if err != nil {
			if !lo.coerce {
				return fmt.Errorf("goodseed: config %s: %w", path, err)
			}
			tv = codec.Tagged{Kind: codec.KindString, Text: codec.CoerceString(value)}
		}
		entries[path] = tv
	}

	return r.store.LogConfigs(ctx, entries)
}

// LogMetrics records scalar metric values at a step. Logging the same
// (metric, step) again overwrites the earlier value. All points in one
// call share a wall-clock timestamp and commit atomically.
func (r *Run) LogMetrics(ctx context.Context, data map[string]float64, step int64) error {
	ts := time.Now().UTC().Unix()
	points := make([]store.Point, 0, len(data))
	for key, value := range data {
		points = append(points, store.Point{
			Path:  codec.NormalizePath(key),
			Step:  step,
			Value: value,
			TS:    ts,
		})
	}
	return r.store.LogMetricPoints(ctx, points)
}

// Close finalizes the run with StatusFinished. Idempotent.
func (r *Run) Close(ctx context.Context) error {
	return r.CloseWithStatus(ctx, StatusFinished)
}

// CloseWithStatus records the final status and closed_at timestamp,
// checkpoints the write-ahead log so the run is exactly one file on
// disk, and releases the store. Only finished and failed are valid
// final states; anything else is recorded as failed. Subsequent store
// operations fail with store.ErrClosed.
func (r *Run) CloseWithStatus(ctx context.Context, status Status) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if status != StatusFinished && status != StatusFailed {
		status = StatusFailed
	}

	var errs []error
	if err := r.store.SetMeta(ctx, "status", string(status)); err != nil {
		errs = append(errs, err)
	}
	if err := r.store.SetMeta(ctx, "closed_at", time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		errs = append(errs, err)
	}
	if err := r.store.Checkpoint(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := r.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	r.logger.Info("goodseed run closed", "run", r.name, "status", string(status))
	return nil
}

// Delete closes the run and removes its database file. Explicit
// maintenance only; nothing in goodseed deletes run files on its own.
func (r *Run) Delete(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.store.Delete()
}

// Track runs fn with a fresh run and guarantees finalization on every
// exit path: failed status if fn returns an error or panics, finished
// otherwise. This replaces process-exit hooks, which are not reliable
// across deployment environments.
func Track(ctx context.Context, fn func(*Run) error, opts ...Option) (err error) {
	run, err := New(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = run.CloseWithStatus(ctx, StatusFailed)
			panic(p)
		}
		status := StatusFinished
		if err != nil {
			status = StatusFailed
		}
		if cerr := run.CloseWithStatus(ctx, status); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(run)
}
