package internal

import (
	"log/slog"
	"time"

	"github.com/starford/stickies/internal/scheduler"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	configFile string
	logger     *slog.Logger
	registry   scheduler.Registry
	executable string
	launchedAt time.Time
	now        func() time.Time
	exit       func(code int)
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfigFile records the file the configuration was loaded from. The
// recurring job is registered to load the same file.
func WithConfigFile(path string) Option {
	return func(a *application) {
		a.configFile = path
	}
}

// WithLogger replaces the JSON stdout logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithRegistry replaces the launchd job registry.
func WithRegistry(r scheduler.Registry) Option {
	return func(a *application) {
		a.registry = r
	}
}

// WithExecutable sets the binary the recurring job runs.
func WithExecutable(path string) Option {
	return func(a *application) {
		a.executable = path
	}
}

// WithClock sets the process start time and the clock used by the launch
// heuristic.
func WithClock(launchedAt time.Time, now func() time.Time) Option {
	return func(a *application) {
		a.launchedAt = launchedAt
		a.now = now
	}
}

// WithExit sets the hook that terminates a process launched only for a trigger.
func WithExit(exit func(code int)) Option {
	return func(a *application) {
		a.exit = exit
	}
}
