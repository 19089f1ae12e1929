package goodseed

// RunSummary is one catalog entry from GET /api/runs.
type RunSummary struct {
	Project        string  `json:"project"`
	RunID          string  `json:"run_id"`
	ExperimentName *string `json:"experiment_name"`
	CreatedAt      *string `json:"created_at"`
	ClosedAt       *string `json:"closed_at"`
	Status         string  `json:"status"`
}

// MetricPoint is one metric observation from GET .../metrics. Value is
// nil when the stored value was not representable in JSON (NaN/Inf).
type MetricPoint struct {
	Path              string   `json:"path"`
	Step              int64    `json:"step"`
	Value             *float64 `json:"value"`
	IsPreview         bool     `json:"is_preview"`
	PreviewCompletion *float64 `json:"preview_completion"`
	LoggedAt          string   `json:"logged_at"`
}

type runsResponse struct {
	Runs []RunSummary `json:"runs"`
}

type configsResponse struct {
	Configs map[string]any `json:"configs"`
}

type metricsResponse struct {
	Metrics []MetricPoint `json:"metrics"`
}

type metricPathsResponse struct {
	Paths []string `json:"paths"`
}

type errorResponse struct {
	Error string `json:"error"`
}
