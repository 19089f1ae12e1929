package server

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/goodseed-ai/goodseed/internal/catalog"
	"github.com/goodseed-ai/goodseed/internal/codec"
	"github.com/goodseed-ai/goodseed/internal/store"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	root      string
	logger    *slog.Logger
	startedAt time.Time
	version   string
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Root    string
	Logger  *slog.Logger
	Version string
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		root:      d.Root,
		logger:    d.Logger,
		startedAt: time.Now(),
		version:   d.Version,
	}
}

// metricPoint is the wire form of one metric observation. Value is a
// pointer because JSON has no NaN/Inf: non-finite values are emitted as
// null rather than failing the whole response.
type metricPoint struct {
	Path              string   `json:"path"`
	Step              int64    `json:"step"`
	Value             *float64 `json:"value"`
	IsPreview         bool     `json:"is_preview"`
	PreviewCompletion *float64 `json:"preview_completion"`
	LoggedAt          string   `json:"logged_at"`
}

// HandleListRuns handles GET /api/runs.
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := catalog.Scan(r.Context(), h.root, h.logger)
	if err != nil {
		h.internalError(w, r, "scan runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// HandleConfigs handles GET /api/runs/{project}/{run}/configs.
func (h *Handlers) HandleConfigs(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openRun(w, r)
	if !ok {
		return
	}
	defer func() { _ = st.Close() }()

	entries, err := st.GetConfigs(r.Context())
	if err != nil {
		h.internalError(w, r, "read configs", err)
		return
	}

	configs := make(map[string]any, len(entries))
	for path, e := range entries {
		v, err := codec.Decode(e.Kind, e.Text, e.Present)
		if err != nil {
			h.internalError(w, r, "decode config "+path, err)
			return
		}
		configs[path] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": configs})
}

// HandleMetrics handles GET /api/runs/{project}/{run}/metrics with an
// optional ?path= series filter.
func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openRun(w, r)
	if !ok {
		return
	}
	defer func() { _ = st.Close() }()

	points, err := st.GetMetricPoints(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		h.internalError(w, r, "read metrics", err)
		return
	}

	metrics := make([]metricPoint, 0, len(points))
	for _, p := range points {
		mp := metricPoint{
			Path:     p.Path,
			Step:     p.Step,
			LoggedAt: time.Unix(p.TS, 0).UTC().Format(time.RFC3339),
		}
		if v := p.Value; !math.IsNaN(v) && !math.IsInf(v, 0) {
			mp.Value = &v
		}
		metrics = append(metrics, mp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": metrics})
}

// HandleMetricPaths handles GET /api/runs/{project}/{run}/metric-paths.
func (h *Handlers) HandleMetricPaths(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openRun(w, r)
	if !ok {
		return
	}
	defer func() { _ = st.Close() }()

	paths, err := st.GetMetricPaths(r.Context())
	if err != nil {
		h.internalError(w, r, "read metric paths", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paths": paths})
}

// HandleHealth handles GET /api/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// HandlePreflight answers CORS preflight for any path: 204, no body.
// The CORS middleware has already attached the allow headers.
func (h *Handlers) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// HandleNotFound is the fallback for unmatched routes.
func (h *Handlers) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// openRun resolves the {project}/{run} path parameters to a run file
// and opens it read-only. On failure it writes the error response and
// returns ok=false. A missing run is always a 404, never a 500.
func (h *Handlers) openRun(w http.ResponseWriter, r *http.Request) (*store.Store, bool) {
	project := r.PathValue("project")
	run := r.PathValue("run")
	if !validSegment(project) || !validSegment(run) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run not found: %s/%s", project, run))
		return nil, false
	}

	dbPath := filepath.Join(h.root, project, "runs", run+".sqlite")

	st, err := store.OpenReadOnly(dbPath)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("run not found: %s/%s", project, run))
			return nil, false
		}
		h.internalError(w, r, "open run", err)
		return nil, false
	}
	return st, true
}

// validSegment rejects path parameters that could escape the projects
// root once joined into a file path.
func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." &&
		!strings.ContainsAny(s, "/\\")
}

// internalError logs the full error and reports a terse 500 to the
// client; error chains carry file paths and driver detail that do not
// belong on the wire.
func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error("request failed",
		"op", op,
		"error", err,
		"request_id", RequestIDFromContext(r.Context()),
	)
	writeError(w, http.StatusInternalServerError, op+" failed")
}
