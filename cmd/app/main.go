package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/stickies/internal"
	"github.com/starford/stickies/internal/scheduler"
	pkgconfig "github.com/starford/stickies/pkg/config"
)

const version = "1.0.0"

// launchedAt is captured before anything else so the refresh command can
// tell whether it was started only to deliver a trigger.
var launchedAt = time.Now()

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// appOptions ties the components to the config file so the recurring job
// is registered to load it too.
func appOptions(cmd *cli.Command, cfg *internal.Config) []internal.Option {
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithConfigFile(cmd.String("config")),
		internal.WithClock(launchedAt, time.Now),
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, appOptions(cmd, cfg)...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func refresh(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Refresh(ctx, append(appOptions(cmd, cfg), internal.WithExit(os.Exit))...)
}

func main() {
	cmd := &cli.Command{
		Name:    "stickies",
		Usage:   "Code sticky notes with folder backups and a recurring backup job",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars(scheduler.ConfigEnv),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, event stream and backup folder watcher",
				Action: serve,
			},
			{
				Name:   "refresh",
				Usage:  "Deliver the backup trigger (run by the recurring job)",
				Action: refresh,
			},
			backupCommand(),
			backupsCommand(),
			schedulerCommand(),
			folderCommand(),
			notesCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
