package catalog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goodseed-ai/goodseed/internal/store"
)

func writeRun(t *testing.T, root, project, name string, meta map[string]string) {
	t.Helper()
	s, err := store.Open(filepath.Join(root, project, "runs", name+".sqlite"))
	require.NoError(t, err)
	ctx := context.Background()
	for k, v := range meta {
		require.NoError(t, s.SetMeta(ctx, k, v))
	}
	require.NoError(t, s.Close())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScan_MissingRootIsEmpty(t *testing.T) {
	runs, err := Scan(context.Background(), filepath.Join(t.TempDir(), "nope"), testLogger())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestScan_SummariesSortedMostRecentFirst(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "mnist", "old-run", map[string]string{
		"run_name":   "old-run",
		"created_at": "2026-01-01T00:00:00Z",
		"status":     "finished",
	})
	writeRun(t, root, "mnist", "new-run", map[string]string{
		"run_name":        "new-run",
		"experiment_name": "wide",
		"created_at":      "2026-02-01T00:00:00Z",
		"status":          "running",
	})
	writeRun(t, root, "cifar", "dateless", map[string]string{
		"run_name": "dateless",
	})

	runs, err := Scan(context.Background(), root, testLogger())
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "new-run", runs[0].RunID)
	assert.Equal(t, "mnist", runs[0].Project)
	assert.Equal(t, "running", runs[0].Status)
	require.NotNil(t, runs[0].ExperimentName)
	assert.Equal(t, "wide", *runs[0].ExperimentName)

	assert.Equal(t, "old-run", runs[1].RunID)
	assert.Nil(t, runs[1].ExperimentName)
	assert.Nil(t, runs[1].ClosedAt)

	// Missing created_at sorts as earliest.
	assert.Equal(t, "dateless", runs[2].RunID)
	assert.Equal(t, "unknown", runs[2].Status)
	assert.Nil(t, runs[2].CreatedAt)
}

func TestScan_SkipsCorruptFiles(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "proj", "good", map[string]string{
		"run_name": "good",
		"status":   "finished",
	})

	runsDir := filepath.Join(root, "proj", "runs")
	require.NoError(t, os.WriteFile(filepath.Join(runsDir, "corrupt.sqlite"), []byte("not a database"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(runsDir, "notes.txt"), []byte("ignored"), 0o644))

	runs, err := Scan(context.Background(), root, testLogger())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "good", runs[0].RunID)
}

func TestScan_RunIDFallsBackToFilename(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "proj", "bare", map[string]string{})

	runs, err := Scan(context.Background(), root, testLogger())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "bare", runs[0].RunID)
	assert.Equal(t, "unknown", runs[0].Status)
}
