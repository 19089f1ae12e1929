package goodseed

import "log/slog"

// Option configures a Run at creation time.
type Option func(*runOptions)

// runOptions holds all creation settings after applying defaults.
type runOptions struct {
	project    string
	runName    string
	experiment string
	home       string
	logDir     string
	logger     *slog.Logger
}

// WithProject sets the project the run belongs to. Defaults to
// GOODSEED_PROJECT or "default".
func WithProject(project string) Option {
	return func(o *runOptions) { o.project = project }
}

// WithRunName requests an explicit run name. If the name is already
// taken, New fails with ErrRunExists rather than picking another name.
// Without this option a readable name is generated and suffixed on
// collision.
func WithRunName(name string) Option {
	return func(o *runOptions) { o.runName = name }
}

// WithExperimentName attaches a human-readable experiment label.
func WithExperimentName(name string) Option {
	return func(o *runOptions) { o.experiment = name }
}

// WithHome overrides the goodseed home directory (GOODSEED_HOME).
func WithHome(home string) Option {
	return func(o *runOptions) { o.home = home }
}

// WithLogDir stores the run database at <dir>/<run>.sqlite instead of
// the home-derived projects layout.
func WithLogDir(dir string) Option {
	return func(o *runOptions) { o.logDir = dir }
}

// WithLogger sets the structured logger for the run.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runOptions) { o.logger = logger }
}

// LogOption configures a single LogConfigs call.
type LogOption func(*logOptions)

type logOptions struct {
	flatten bool
	coerce  bool
}

// WithFlatten flattens nested maps and sequences into slash-joined
// paths before logging.
func WithFlatten() LogOption {
	return func(o *logOptions) { o.flatten = true }
}

// WithStringCoercion renders unsupported value types as strings instead
// of failing the call.
func WithStringCoercion() LogOption {
	return func(o *logOptions) { o.coerce = true }
}
