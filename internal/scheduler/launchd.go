package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"howett.net/plist"
)

// DefaultLaunchctl is the launchctl binary on macOS.
const DefaultLaunchctl = "/bin/launchctl"

// Commander runs an external program and returns its combined output.
type Commander interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommander runs programs with os/exec.
type ExecCommander struct{}

func (ExecCommander) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Launchd registers jobs as per-user launch agents.
type Launchd struct {
	// Dir holds the agent property lists, normally ~/Library/LaunchAgents.
	Dir       string
	Launchctl string
	Cmd       Commander
}

// NewLaunchd returns a registry writing agents into dir.
func NewLaunchd(dir string) *Launchd {
	return &Launchd{Dir: dir, Launchctl: DefaultLaunchctl, Cmd: ExecCommander{}}
}

// DefaultAgentsDir returns ~/Library/LaunchAgents.
func DefaultAgentsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents"), nil
}

func (l *Launchd) plistPath(label string) string {
	return filepath.Join(l.Dir, label+".plist")
}

func (l *Launchd) Register(ctx context.Context, job Job) error {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("launchd: mkdir: %w", err)
	}
	data, err := encodePlist(job)
	if err != nil {
		return fmt.Errorf("launchd: encode plist: %w", err)
	}
	path := l.plistPath(job.Label)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("launchd: write plist: %w", err)
	}
	// Unloading a job that is not loaded fails; that is expected.
	_, _ = l.Cmd.Run(ctx, l.Launchctl, "unload", path)
	if out, err := l.Cmd.Run(ctx, l.Launchctl, "load", path); err != nil {
		return fmt.Errorf("launchd: load: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Unregister unloads the job and removes its plist. A job still loaded
// without a plist on disk is removed by label.
func (l *Launchd) Unregister(ctx context.Context, label string) error {
	path := l.plistPath(label)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		active, err := l.Active(ctx, label)
		if err != nil || !active {
			return err
		}
		if out, err := l.Cmd.Run(ctx, l.Launchctl, "remove", label); err != nil {
			return fmt.Errorf("launchd: remove %s: %w: %s", label, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	_, _ = l.Cmd.Run(ctx, l.Launchctl, "unload", path)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("launchd: remove plist: %w", err)
	}
	return nil
}

func (l *Launchd) Active(ctx context.Context, label string) (bool, error) {
	out, err := l.Cmd.Run(ctx, l.Launchctl, "list")
	if err != nil {
		return false, fmt.Errorf("launchd: list: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[len(fields)-1] == label {
			return true, nil
		}
	}
	return false, nil
}

func (l *Launchd) Interval(_ context.Context, label string) (time.Duration, bool, error) {
	data, err := os.ReadFile(l.plistPath(label))
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("launchd: read plist: %w", err)
	}
	agent, err := decodePlist(data)
	if err != nil {
		return 0, false, fmt.Errorf("launchd: parse plist: %w", err)
	}
	if agent.StartInterval <= 0 {
		return 0, false, nil
	}
	return time.Duration(agent.StartInterval) * time.Second, true, nil
}

// launchAgent is the subset of launchd.plist(5) keys the job uses.
type launchAgent struct {
	Label                string            `plist:"Label"`
	ProgramArguments     []string          `plist:"ProgramArguments"`
	RunAtLoad            bool              `plist:"RunAtLoad"`
	StartInterval        int64             `plist:"StartInterval,omitempty"`
	StandardOutPath      string            `plist:"StandardOutPath,omitempty"`
	StandardErrorPath    string            `plist:"StandardErrorPath,omitempty"`
	EnvironmentVariables map[string]string `plist:"EnvironmentVariables,omitempty"`
}

func agentFor(job Job) launchAgent {
	return launchAgent{
		Label:                job.Label,
		ProgramArguments:     []string{job.Program},
		RunAtLoad:            job.RunAtLoad,
		StartInterval:        int64(job.Interval / time.Second),
		StandardOutPath:      job.StdoutPath,
		StandardErrorPath:    job.StderrPath,
		EnvironmentVariables: job.Env,
	}
}

func encodePlist(job Job) ([]byte, error) {
	return plist.MarshalIndent(agentFor(job), plist.XMLFormat, "\t")
}

func decodePlist(data []byte) (launchAgent, error) {
	var a launchAgent
	if _, err := plist.Unmarshal(data, &a); err != nil {
		return launchAgent{}, err
	}
	return a, nil
}
