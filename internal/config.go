package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/stickies/internal/backup"
	"github.com/starford/stickies/internal/ipc"
	"github.com/starford/stickies/internal/scheduler"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var (
	extRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	urlRe = regexp.MustCompile(`^https?://`)
)

// AppDirName is the per-user directory holding the database and helper script.
const AppDirName = "Stickies"

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Storage   StorageConfig     `yaml:"storage"`
	Backup    BackupConfig      `yaml:"backup"`
	Scheduler SchedulerConfig   `yaml:"scheduler"`
	AI        AIConfig          `yaml:"ai"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Backup.Validate(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration. The server binds to loopback
// unless Host says otherwise.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig holds the SQLite key-value database location.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SQLitePath, validation.Required),
	)
}

// BackupConfig controls snapshot files.
type BackupConfig struct {
	// Extension of snapshot and export files, without the dot.
	Extension string `yaml:"extension"`
	// Retention keeps the newest N snapshots after each backup; 0 keeps all.
	Retention    int           `yaml:"retention"`
	LaunchGrace  time.Duration `yaml:"launch_grace"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PreviewCache int           `yaml:"preview_cache"`
}

// Validate validates the backup configuration.
func (c *BackupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Extension, validation.Required, validation.Match(extRe)),
		validation.Field(&c.Retention, validation.Min(0)),
		validation.Field(&c.LaunchGrace, validation.Required),
		validation.Field(&c.PollInterval, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.PreviewCache, validation.Required, validation.Min(1)),
	)
}

// SchedulerConfig describes the recurring OS job.
type SchedulerConfig struct {
	Label           string        `yaml:"label"`
	DefaultInterval time.Duration `yaml:"default_interval"`
	// ScriptDir receives the helper script the job runs.
	ScriptDir string `yaml:"script_dir"`
	// AgentsDir receives the job's property list.
	AgentsDir string `yaml:"agents_dir"`
	Launchctl string `yaml:"launchctl"`
	// Executable is run by the helper script; empty means this binary.
	Executable string `yaml:"executable"`
	StdoutPath string `yaml:"stdout_path"`
	StderrPath string `yaml:"stderr_path"`
	// Fallback arms an in-process timer while serving.
	Fallback bool `yaml:"fallback"`
}

// Validate validates the scheduler configuration.
func (c *SchedulerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Label, validation.Required),
		validation.Field(&c.DefaultInterval, validation.Required,
			validation.Min(scheduler.MinInterval), validation.Max(scheduler.MaxInterval)),
		validation.Field(&c.ScriptDir, validation.Required),
		validation.Field(&c.AgentsDir, validation.Required),
		validation.Field(&c.Launchctl, validation.Required),
	)
}

// Params returns the scheduler's job description. exe is used when
// Executable is empty. configFile is made absolute so the job reads the
// same file from any working directory.
func (c *SchedulerConfig) Params(exe, configFile string) scheduler.Config {
	if c.Executable != "" {
		exe = c.Executable
	}
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			configFile = abs
		}
	}
	return scheduler.Config{
		Label:           c.Label,
		ScriptDir:       c.ScriptDir,
		Executable:      exe,
		ConfigFile:      configFile,
		StdoutPath:      c.StdoutPath,
		StderrPath:      c.StderrPath,
		DefaultInterval: c.DefaultInterval,
	}
}

// AIConfig configures the rewrite assistant. An empty APIKey disables it.
type AIConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Enabled reports whether rewrites are configured.
func (c *AIConfig) Enabled() bool {
	return c.APIKey != ""
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Match(urlRe)),
		validation.Field(&c.MaxTokens, validation.Min(0)),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled".
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	appDir := defaultAppDir()
	agents, err := scheduler.DefaultAgentsDir()
	if err != nil {
		agents = filepath.Join(appDir, "LaunchAgents")
	}
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 7787,
			},
		},
		Storage: StorageConfig{
			SQLitePath: filepath.Join(appDir, "stickies.db"),
		},
		Backup: BackupConfig{
			Extension:    backup.DefaultExt,
			LaunchGrace:  ipc.DefaultGrace,
			PollInterval: time.Second,
			PreviewCache: 32,
		},
		Scheduler: SchedulerConfig{
			Label:           scheduler.DefaultLabel,
			DefaultInterval: scheduler.DefaultInterval,
			ScriptDir:       appDir,
			AgentsDir:       agents,
			Launchctl:       scheduler.DefaultLaunchctl,
			StdoutPath:      "/tmp/codestickies.backup.log",
			StderrPath:      "/tmp/codestickies.backup.err",
			Fallback:        true,
		},
		AI: AIConfig{
			MaxTokens:   2048,
			Temperature: 0.2,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

func defaultAppDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + AppDirName
	}
	return filepath.Join(dir, AppDirName)
}
