package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goodseed-ai/goodseed/internal/codec"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "run.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMeta(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.SetMeta(ctx, "status", "running"))
	got, err := s.GetMeta(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, "running", got)

	// Last write wins.
	require.NoError(t, s.SetMeta(ctx, "status", "finished"))
	got, err = s.GetMeta(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, "finished", got)

	_, err = s.GetMeta(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "finished"}, all)
}

func TestLogConfigs_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.LogConfigs(ctx, map[string]codec.Tagged{
		"lr": {Kind: codec.KindFloat, Text: "0.001"},
	}))
	require.NoError(t, s.LogConfigs(ctx, map[string]codec.Tagged{
		"lr": {Kind: codec.KindFloat, Text: "0.01"},
	}))

	configs, err := s.GetConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "0.01", configs["lr"].Text)
	assert.Equal(t, codec.KindFloat, configs["lr"].Kind)
	assert.True(t, configs["lr"].Present)
}

func TestLogMetricPoints_OverwritesAtStep(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.LogMetricPoints(ctx, []Point{
		{Path: "loss", Step: 1, Value: 0.9, TS: 100},
	}))
	require.NoError(t, s.LogMetricPoints(ctx, []Point{
		{Path: "loss", Step: 1, Value: 0.7, TS: 200},
	}))

	points, err := s.GetMetricPoints(ctx, "loss")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, int64(1), points[0].Step)
	assert.Equal(t, 0.7, points[0].Value)
}

func TestGetMetricPoints_OrderedByStep(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.LogMetricPoints(ctx, []Point{
		{Path: "loss", Step: 3, Value: 0.3, TS: 1},
		{Path: "loss", Step: 1, Value: 0.1, TS: 2},
		{Path: "loss", Step: 2, Value: 0.2, TS: 3},
	}))

	points, err := s.GetMetricPoints(ctx, "loss")
	require.NoError(t, err)
	require.Len(t, points, 3)
	for i, step := range []int64{1, 2, 3} {
		assert.Equal(t, step, points[i].Step)
	}
}

func TestGetMetricPoints_AllOrderedByPathThenStep(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.LogMetricPoints(ctx, []Point{
		{Path: "b/metric", Step: 1, Value: 1, TS: 1},
		{Path: "a/metric", Step: 2, Value: 2, TS: 1},
		{Path: "a/metric", Step: 1, Value: 1, TS: 1},
	}))

	points, err := s.GetMetricPoints(ctx, "")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "a/metric", points[0].Path)
	assert.Equal(t, int64(1), points[0].Step)
	assert.Equal(t, "a/metric", points[1].Path)
	assert.Equal(t, int64(2), points[1].Step)
	assert.Equal(t, "b/metric", points[2].Path)
}

func TestGetMetricPaths(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.LogMetricPoints(ctx, []Point{
		{Path: "val/acc", Step: 1, Value: 0.5, TS: 1},
		{Path: "loss", Step: 1, Value: 0.9, TS: 1},
		{Path: "loss", Step: 2, Value: 0.8, TS: 1},
	}))

	paths, err := s.GetMetricPaths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"loss", "val/acc"}, paths)
}

func TestClose_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.SetMeta(ctx, "k", "v"), ErrClosed)
	_, err := s.GetMeta(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.LogConfigs(ctx, nil), ErrClosed)
	assert.ErrorIs(t, s.LogMetricPoints(ctx, nil), ErrClosed)
	_, err = s.GetConfigs(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.GetMetricPoints(ctx, "")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.GetMetricPaths(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Checkpoint(ctx), ErrClosed)
}

func TestCheckpointThenClose_SingleFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "run.sqlite")

	s, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.SetMeta(ctx, "run_name", "solo"))
	require.NoError(t, s.LogMetricPoints(ctx, []Point{
		{Path: "loss", Step: 1, Value: 0.5, TS: 1},
	}))

	require.NoError(t, s.Checkpoint(ctx))
	require.NoError(t, s.Close())

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
	_, err = os.Stat(dbPath + "-wal")
	assert.True(t, os.IsNotExist(err), "-wal sidecar must not remain")
	_, err = os.Stat(dbPath + "-shm")
	assert.True(t, os.IsNotExist(err), "-shm sidecar must not remain")
}

func TestOpenReadOnly_RejectsMutations(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "run.sqlite")

	w, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := OpenReadOnly(dbPath)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.ErrorIs(t, r.SetMeta(ctx, "k", "v"), ErrReadOnly)
	assert.ErrorIs(t, r.LogConfigs(ctx, nil), ErrReadOnly)
	assert.ErrorIs(t, r.LogMetricPoints(ctx, nil), ErrReadOnly)
	assert.ErrorIs(t, r.Checkpoint(ctx), ErrReadOnly)
	assert.ErrorIs(t, r.Delete(), ErrReadOnly)
}

func TestOpenReadOnly_MissingFile(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "absent.sqlite"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenReadOnly_ReadsWriterData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "run.sqlite")

	w, err := Open(dbPath)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	require.NoError(t, w.SetMeta(ctx, "run_name", "shared"))

	// Writer still open: the read-only handle must see committed data
	// through the WAL.
	r, err := OpenReadOnly(dbPath)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	got, err := r.GetMeta(ctx, "run_name")
	require.NoError(t, err)
	assert.Equal(t, "shared", got)
}

// A reader querying mid-run must never block indefinitely or observe a
// torn point: every point it sees is fully formed and step-ordered.
func TestConcurrentReadDuringWrites(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "run.sqlite")

	w, err := Open(dbPath)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	require.NoError(t, w.LogMetricPoints(ctx, []Point{
		{Path: "loss", Step: 0, Value: 1.0, TS: 1},
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for step := int64(1); step <= 200; step++ {
			if err := w.LogMetricPoints(ctx, []Point{
				{Path: "loss", Step: step, Value: 1.0 / float64(step), TS: step},
			}); err != nil {
				t.Errorf("writer: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 20; i++ {
		r, err := OpenReadOnly(dbPath)
		require.NoError(t, err)
		points, err := r.GetMetricPoints(ctx, "loss")
		require.NoError(t, err)
		require.NoError(t, r.Close())

		// Whatever prefix the reader saw must be consistent.
		for j, p := range points {
			assert.Equal(t, int64(j), p.Step)
			assert.Equal(t, "loss", p.Path)
		}
	}

	wg.Wait()
}

func TestDelete_RemovesAllFiles(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "run.sqlite")

	s, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.SetMeta(ctx, "k", "v"))
	require.NoError(t, s.Delete())

	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))
}
