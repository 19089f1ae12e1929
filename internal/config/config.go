// Package config resolves goodseed paths and server settings from the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvHome    = "GOODSEED_HOME"
	EnvProject = "GOODSEED_PROJECT"
)

// DefaultProject is used when GOODSEED_PROJECT is unset.
const DefaultProject = "default"

// Home returns the goodseed home directory. An explicit override wins
// over GOODSEED_HOME, which wins over ~/.goodseed.
func Home(override string) string {
	if override != "" {
		return override
	}
	if v := os.Getenv(EnvHome); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".goodseed"
	}
	return filepath.Join(home, ".goodseed")
}

// ProjectsDir returns the directory holding per-project run databases.
func ProjectsDir(homeOverride string) string {
	return filepath.Join(Home(homeOverride), "projects")
}

// DefaultProjectName returns GOODSEED_PROJECT or "default".
func DefaultProjectName() string {
	if v := os.Getenv(EnvProject); v != "" {
		return v
	}
	return DefaultProject
}

// RunDBPath returns the canonical location of a run's SQLite file:
// <projects>/<project>/runs/<run>.sqlite.
func RunDBPath(project, run, homeOverride string) string {
	return filepath.Join(ProjectsDir(homeOverride), project, "runs", run+".sqlite")
}

// EnsureDir creates a directory and its parents if absent.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// ServeConfig holds the query server settings.
type ServeConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LogLevel     string
}

// LoadServe reads server configuration from environment variables with
// sensible defaults.
func LoadServe() (ServeConfig, error) {
	cfg := ServeConfig{
		Port:         envInt("GOODSEED_PORT", 8765),
		ReadTimeout:  envDuration("GOODSEED_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: envDuration("GOODSEED_WRITE_TIMEOUT", 30*time.Second),
		LogLevel:     envStr("GOODSEED_LOG_LEVEL", "info"),
	}
	if err := cfg.Validate(); err != nil {
		return ServeConfig{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c ServeConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: GOODSEED_PORT must be in 1..65535, got %d", c.Port)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
