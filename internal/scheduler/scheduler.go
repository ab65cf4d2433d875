// Package scheduler manages the recurring auto-backup job.
//
// The OS job registry is the only source of truth for whether auto-backup
// is enabled. Every mutating call ends with Reconcile, which rebuilds the
// state from the registry instead of trusting a cached flag.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/stickies/internal/apperr"
	"github.com/starford/stickies/internal/kv"
)

const (
	DefaultLabel    = "com.timi2506.codestickies-backup"
	DefaultInterval = time.Hour
	MinInterval     = time.Minute
	MaxInterval     = 24 * time.Hour
	ScriptName      = "refresh.sh"
	// ConfigEnv names the config file for the CLI; the job sets it too.
	ConfigEnv = "APP_CONFIG_FILE"
)

// Presets are the intervals offered in the settings menu.
var Presets = []time.Duration{
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
	2 * time.Hour,
	4 * time.Hour,
}

// TriggerFunc performs one backup. It runs in its own goroutine.
type TriggerFunc func(ctx context.Context)

// Config describes the job the scheduler registers.
type Config struct {
	Label string
	// ScriptDir receives the helper script the job runs.
	ScriptDir string
	// Executable is invoked by the helper script as
	// "<Executable> --config <ConfigFile> refresh".
	Executable string
	// ConfigFile is the absolute config path handed to the job.
	ConfigFile      string
	StdoutPath      string
	StderrPath      string
	DefaultInterval time.Duration
}

// State is the reconciled scheduler state.
type State struct {
	Enabled  bool
	Interval time.Duration
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Enabled  bool  `json:"enabled"`
		Interval int64 `json:"interval"`
	}{s.Enabled, int64(s.Interval / time.Second)})
}

func (s State) String() string {
	if !s.Enabled {
		return "disabled (interval " + s.Interval.String() + ")"
	}
	return "enabled every " + s.Interval.String()
}

// Scheduler drives the Disabled/Enabled state machine.
type Scheduler struct {
	mu       sync.Mutex
	registry Registry
	kv       kv.Store
	cfg      Config
	trigger  TriggerFunc
	logger   *slog.Logger

	min      time.Duration
	fallback *fallback
}

// New creates a scheduler. trigger may be nil for processes that only
// inspect or change the registration; the in-process fallback timer is
// armed only when trigger is set.
func New(reg Registry, store kv.Store, cfg Config, trigger TriggerFunc, logger *slog.Logger) *Scheduler {
	if cfg.Label == "" {
		cfg.Label = DefaultLabel
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		registry: reg,
		kv:       store,
		cfg:      cfg,
		trigger:  trigger,
		logger:   logger,
		min:      MinInterval,
	}
}

// ValidateInterval checks d against the allowed range.
func (s *Scheduler) ValidateInterval(d time.Duration) error {
	return validation.Validate(d,
		validation.Required,
		validation.Min(s.min),
		validation.Max(MaxInterval),
	)
}

// Reconcile rebuilds the state from the registry and the recorded interval
// and brings the fallback timer in line with it.
func (s *Scheduler) Reconcile(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcile(ctx)
}

func (s *Scheduler) reconcile(ctx context.Context) (State, error) {
	st := State{Interval: s.recordedInterval()}

	if d, ok, err := s.registry.Interval(ctx, s.cfg.Label); err != nil {
		s.logger.Warn("scheduler: read interval failed", slog.String("error", err.Error()))
	} else if ok && d > 0 {
		st.Interval = d
	}

	active, err := s.registry.Active(ctx, s.cfg.Label)
	if err != nil {
		s.logger.Error("scheduler: query registry failed", slog.String("error", err.Error()))
		s.disarm()
		return st, fmt.Errorf("scheduler: query: %w: %w", apperr.ErrRegistration, err)
	}
	st.Enabled = active

	if st.Enabled {
		s.arm(st.Interval)
	} else {
		s.disarm()
	}
	return st, nil
}

// Enable registers the job with the recorded interval (or the default).
// On failure the job is rolled back and the scheduler stays disabled.
func (s *Scheduler) Enable(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	interval := s.recordedInterval()
	if err := s.register(ctx, interval); err != nil {
		st, _ := s.reconcile(ctx)
		return st, err
	}
	s.logger.Info("scheduler: enabled", slog.Duration("interval", interval))
	return s.reconcile(ctx)
}

// Disable unregisters the job and removes the helper script. Disabling an
// already disabled scheduler is a no-op.
func (s *Scheduler) Disable(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarm()
	if err := s.registry.Unregister(ctx, s.cfg.Label); err != nil {
		s.logger.Error("scheduler: unregister failed", slog.String("error", err.Error()))
		st, _ := s.reconcile(ctx)
		return st, fmt.Errorf("scheduler: disable: %w: %w", apperr.ErrRegistration, err)
	}
	s.removeScript()
	s.logger.Info("scheduler: disabled")
	return s.reconcile(ctx)
}

// SetInterval records d. When enabled, the job is unregistered and
// registered again with d, so at most one registration exists.
func (s *Scheduler) SetInterval(ctx context.Context, d time.Duration) (State, error) {
	if err := s.ValidateInterval(d); err != nil {
		return State{}, fmt.Errorf("scheduler: interval %s: %w", d, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(kv.KeyBackupInterval, []byte(strconv.FormatInt(int64(d/time.Second), 10))); err != nil {
		return State{}, fmt.Errorf("scheduler: record interval: %w", err)
	}

	active, err := s.registry.Active(ctx, s.cfg.Label)
	if err != nil {
		st, _ := s.reconcile(ctx)
		return st, fmt.Errorf("scheduler: query: %w: %w", apperr.ErrRegistration, err)
	}
	if active {
		if err := s.registry.Unregister(ctx, s.cfg.Label); err != nil {
			s.logger.Error("scheduler: unregister failed", slog.String("error", err.Error()))
			st, _ := s.reconcile(ctx)
			return st, fmt.Errorf("scheduler: reschedule: %w: %w", apperr.ErrRegistration, err)
		}
		if err := s.register(ctx, d); err != nil {
			st, _ := s.reconcile(ctx)
			return st, err
		}
		s.logger.Info("scheduler: interval updated", slog.Duration("interval", d))
	}
	return s.reconcile(ctx)
}

// Close stops the fallback timer.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarm()
}

// register installs the script and the job. Caller holds s.mu.
func (s *Scheduler) register(ctx context.Context, interval time.Duration) error {
	script, err := s.installScript()
	if err != nil {
		s.logger.Error("scheduler: install script failed", slog.String("error", err.Error()))
		return fmt.Errorf("scheduler: install script: %w: %w", apperr.ErrRegistration, err)
	}
	job := Job{
		Label:      s.cfg.Label,
		Program:    script,
		Interval:   interval,
		RunAtLoad:  true,
		StdoutPath: s.cfg.StdoutPath,
		StderrPath: s.cfg.StderrPath,
	}
	if s.cfg.ConfigFile != "" {
		job.Env = map[string]string{ConfigEnv: s.cfg.ConfigFile}
	}
	if err := s.registry.Register(ctx, job); err != nil {
		s.logger.Error("scheduler: register failed", slog.String("error", err.Error()))
		if uerr := s.registry.Unregister(ctx, s.cfg.Label); uerr != nil {
			s.logger.Warn("scheduler: rollback failed", slog.String("error", uerr.Error()))
		}
		s.removeScript()
		return fmt.Errorf("scheduler: register: %w: %w", apperr.ErrRegistration, err)
	}
	return nil
}

func (s *Scheduler) recordedInterval() time.Duration {
	data, ok, err := s.kv.Get(kv.KeyBackupInterval)
	if err != nil || !ok {
		return s.cfg.DefaultInterval
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || secs <= 0 {
		s.logger.Warn("scheduler: recorded interval unreadable", slog.String("value", string(data)))
		return s.cfg.DefaultInterval
	}
	return time.Duration(secs) * time.Second
}

func (s *Scheduler) scriptPath() string {
	return filepath.Join(s.cfg.ScriptDir, ScriptName)
}

func (s *Scheduler) installScript() (string, error) {
	if s.cfg.ScriptDir == "" || s.cfg.Executable == "" {
		return "", fmt.Errorf("script dir and executable are required")
	}
	if err := os.MkdirAll(s.cfg.ScriptDir, 0o755); err != nil {
		return "", err
	}
	path := s.scriptPath()
	body := scriptBody(s.cfg.Executable, s.cfg.ConfigFile)
	_ = os.Remove(path)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Scheduler) removeScript() {
	if s.cfg.ScriptDir == "" {
		return
	}
	if err := os.Remove(s.scriptPath()); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("scheduler: remove script failed", slog.String("error", err.Error()))
	}
}

func scriptBody(exe, configFile string) string {
	cmd := "exec " + shellQuote(exe)
	if configFile != "" {
		cmd += " --config " + shellQuote(configFile)
	}
	return "#!/bin/sh\n" + cmd + " refresh\n"
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
