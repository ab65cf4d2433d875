package scheduler

import (
	"context"
	"time"
)

// Job describes one recurring OS job.
type Job struct {
	Label      string
	Program    string
	Interval   time.Duration
	RunAtLoad  bool
	StdoutPath string
	StderrPath string
	// Env is set in the job's environment.
	Env map[string]string
}

// Registry is the OS facility that runs recurring jobs. It is the source of
// truth for whether auto-backup is enabled.
type Registry interface {
	// Register installs and loads job, replacing a registration with the same label.
	Register(ctx context.Context, job Job) error
	// Unregister unloads and removes the job. Unknown labels are not an error.
	Unregister(ctx context.Context, label string) error
	// Active reports whether the job is currently loaded.
	Active(ctx context.Context, label string) (bool, error)
	// Interval reads the interval of the installed job. ok is false when no
	// job description is installed.
	Interval(ctx context.Context, label string) (d time.Duration, ok bool, err error)
}
