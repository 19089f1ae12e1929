// Package catalog enumerates run databases under a projects root and
// summarizes their metadata. Scanning is read-only and best-effort: a
// run whose file is unreadable or corrupt is skipped, never fatal, so a
// catalog stays usable even while producers are mid-write or after a
// crash left a truncated file behind.
package catalog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/goodseed-ai/goodseed/internal/store"
)

// scanConcurrency bounds how many run files are opened at once.
const scanConcurrency = 8

// RunSummary is the catalog entry for one run file.
type RunSummary struct {
	Project        string  `json:"project"`
	RunID          string  `json:"run_id"`
	ExperimentName *string `json:"experiment_name"`
	CreatedAt      *string `json:"created_at"`
	ClosedAt       *string `json:"closed_at"`
	Status         string  `json:"status"`
}

// Scan walks root (a projects directory) and returns a summary for each
// readable run file, most recently created first. Runs with no recorded
// creation time sort as earliest. A missing root yields an empty
// catalog, not an error.
func Scan(ctx context.Context, root string, logger *slog.Logger) ([]RunSummary, error) {
	if logger == nil {
		logger = slog.Default()
	}

	summaries := make([]RunSummary, 0)

	projects, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return summaries, nil
		}
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	var mu sync.Mutex

	for _, project := range projects {
		if !project.IsDir() {
			continue
		}
		projectName := project.Name()

		runsDir := filepath.Join(root, projectName, "runs")
		entries, err := os.ReadDir(runsDir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sqlite") {
				continue
			}
			dbPath := filepath.Join(runsDir, entry.Name())
			runID := strings.TrimSuffix(entry.Name(), ".sqlite")

			g.Go(func() error {
				summary, err := readSummary(ctx, projectName, runID, dbPath)
				if err != nil {
					logger.Debug("catalog: skipping unreadable run", "path", dbPath, "error", err)
					return nil
				}
				mu.Lock()
				summaries = append(summaries, summary)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return createdKey(summaries[i]) > createdKey(summaries[j])
	})
	return summaries, nil
}

func createdKey(s RunSummary) string {
	if s.CreatedAt == nil {
		return ""
	}
	return *s.CreatedAt
}

func readSummary(ctx context.Context, project, runID, dbPath string) (RunSummary, error) {
	st, err := store.OpenReadOnly(dbPath)
	if err != nil {
		return RunSummary{}, err
	}
	defer func() { _ = st.Close() }()

	meta, err := st.Meta(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		Project: project,
		RunID:   runID,
		Status:  "unknown",
	}
	if v, ok := meta["run_name"]; ok && v != "" {
		summary.RunID = v
	}
	if v, ok := meta["experiment_name"]; ok {
		summary.ExperimentName = &v
	}
	if v, ok := meta["created_at"]; ok {
		summary.CreatedAt = &v
	}
	if v, ok := meta["closed_at"]; ok {
		summary.ClosedAt = &v
	}
	if v, ok := meta["status"]; ok && v != "" {
		summary.Status = v
	}
	return summary, nil
}
