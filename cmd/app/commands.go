package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/starford/stickies/internal"
	"github.com/starford/stickies/internal/mcpserver"
	"github.com/starford/stickies/internal/notestore"
	"github.com/starford/stickies/internal/scheduler"
)

// withComponents opens the shared components for a one-shot command. Logs
// go to stderr so stdout stays clean for command output.
func withComponents(fn func(ctx context.Context, cmd *cli.Command, c *internal.Components) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, err := internal.Open(append(appOptions(cmd, cfg),
			internal.WithLogger(internal.NewLogger(os.Stderr, cfg.App.LogLevel)))...)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(ctx, cmd, c)
	}
}

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Write one backup of all notes into the selected folder",
		Action: withComponents(func(ctx context.Context, _ *cli.Command, c *internal.Components) error {
			name, err := c.Service.CreateBackup(ctx)
			if err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			fmt.Println(name)
			return nil
		}),
	}
}

func backupsCommand() *cli.Command {
	return &cli.Command{
		Name:  "backups",
		Usage: "Inspect and manage backups in the selected folder",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List backups, most recent first",
				Action: withComponents(func(ctx context.Context, _ *cli.Command, c *internal.Components) error {
					entries, err := c.Service.Backups(ctx)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tTAKEN\tSIZE")
					for _, e := range entries {
						taken := "-"
						if !e.Time.IsZero() {
							taken = humanize.Time(e.Time)
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, taken, humanize.Bytes(uint64(e.Size)))
					}
					return tw.Flush()
				}),
			},
			{
				Name:      "show",
				Usage:     "Show the metadata of one backup",
				ArgsUsage: "<name>",
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					name := cmd.Args().First()
					if name == "" {
						return errors.New("backup name is required")
					}
					p, err := c.Service.PreviewBackup(ctx, name)
					if err != nil {
						return err
					}
					fmt.Printf("%s: %d note(s)\n", p.Name, len(p.Notes))
					if len(p.Metadata.Keywords) > 0 {
						fmt.Printf("keywords: %s\n", strings.Join(p.Metadata.Keywords, ", "))
					}
					for _, n := range p.Notes {
						fmt.Printf("  %s  %s\n", n.ID, n.Title)
					}
					return nil
				}),
			},
			{
				Name:      "restore",
				Usage:     "Replace all notes with the contents of a backup",
				ArgsUsage: "<name>",
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					name := cmd.Args().First()
					if name == "" {
						return errors.New("backup name is required")
					}
					n, err := c.Service.RestoreBackup(ctx, name)
					if err != nil {
						return err
					}
					fmt.Printf("restored %d note(s) from %s\n", n, name)
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete one or more backups",
				ArgsUsage: "<name>...",
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					names := cmd.Args().Slice()
					if len(names) == 0 {
						return errors.New("at least one backup name is required")
					}
					return c.Service.DeleteBackups(ctx, names)
				}),
			},
		},
	}
}

func schedulerCommand() *cli.Command {
	printState := func(st scheduler.State, err error) error {
		if err != nil {
			return err
		}
		fmt.Println(st.String())
		return nil
	}
	return &cli.Command{
		Name:  "scheduler",
		Usage: "Control the recurring backup job",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Print the reconciled scheduler state",
				Action: withComponents(func(ctx context.Context, _ *cli.Command, c *internal.Components) error {
					return printState(c.Service.SchedulerState(ctx))
				}),
			},
			{
				Name:  "enable",
				Usage: "Register the recurring job",
				Action: withComponents(func(ctx context.Context, _ *cli.Command, c *internal.Components) error {
					return printState(c.Service.EnableScheduler(ctx))
				}),
			},
			{
				Name:  "disable",
				Usage: "Remove the recurring job",
				Action: withComponents(func(ctx context.Context, _ *cli.Command, c *internal.Components) error {
					return printState(c.Service.DisableScheduler(ctx))
				}),
			},
			{
				Name:      "interval",
				Usage:     "Set the backup interval (a duration like 30m, or seconds)",
				ArgsUsage: "<interval>",
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					arg := cmd.Args().First()
					if arg == "" {
						fmt.Println("presets:")
						for _, p := range scheduler.Presets {
							fmt.Printf("  %s\n", p)
						}
						return nil
					}
					d, err := parseInterval(arg)
					if err != nil {
						return err
					}
					return printState(c.Service.SetInterval(ctx, d))
				}),
			},
		},
	}
}

func parseInterval(s string) (time.Duration, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	return d, nil
}

func folderCommand() *cli.Command {
	return &cli.Command{
		Name:  "folder",
		Usage: "Show or change the backup folder",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the selected folder",
				Action: withComponents(func(ctx context.Context, _ *cli.Command, c *internal.Components) error {
					path, ok := c.Service.Folder(ctx)
					if !ok {
						fmt.Println("no folder selected")
						return nil
					}
					fmt.Println(path)
					return nil
				}),
			},
			{
				Name:      "set",
				Usage:     "Select the backup folder",
				ArgsUsage: "<path>",
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					path := cmd.Args().First()
					if path == "" {
						return errors.New("folder path is required")
					}
					return c.Service.SetFolder(ctx, path)
				}),
			},
			{
				Name:  "clear",
				Usage: "Forget the selected folder",
				Action: withComponents(func(ctx context.Context, _ *cli.Command, c *internal.Components) error {
					return c.Service.ClearFolder(ctx)
				}),
			},
		},
	}
}

func notesCommand() *cli.Command {
	return &cli.Command{
		Name:  "notes",
		Usage: "List, export and import notes",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List notes in display order",
				Action: withComponents(func(ctx context.Context, _ *cli.Command, c *internal.Components) error {
					tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tLANGUAGE\tTITLE")
					for _, n := range c.Service.ListNotes(ctx) {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", n.ID, n.Language, n.Title)
					}
					return tw.Flush()
				}),
			},
			{
				Name:  "export",
				Usage: "Export notes to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file or directory (default: current directory)"},
					&cli.StringFlag{Name: "id", Usage: "Export a single note"},
				},
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					id := uuid.Nil
					if s := cmd.String("id"); s != "" {
						var err error
						if id, err = uuid.Parse(s); err != nil {
							return fmt.Errorf("invalid note id %q: %w", s, err)
						}
					}
					data, filename, err := c.Service.Export(ctx, id)
					if err != nil {
						return err
					}
					out := cmd.String("out")
					if out == "" {
						out = filename
					} else if fi, err := os.Stat(out); err == nil && fi.IsDir() {
						out = filepath.Join(out, filename)
					}
					if err := os.WriteFile(out, data, 0o644); err != nil {
						return fmt.Errorf("write export: %w", err)
					}
					fmt.Println(out)
					return nil
				}),
			},
			{
				Name:      "import",
				Usage:     "Import notes from an export, backup or markdown file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "policy", Usage: "skip, add, replace or cancel", Value: "skip"},
					&cli.BoolFlag{Name: "dry-run", Usage: "Only print what would be imported"},
				},
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					path := cmd.Args().First()
					if path == "" {
						return errors.New("import file is required")
					}
					policy, err := notestore.ParsePolicy(cmd.String("policy"))
					if err != nil {
						return err
					}
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read import: %w", err)
					}
					plan, err := c.Service.Import(ctx, path, data, policy, cmd.Bool("dry-run"))
					if err != nil {
						return err
					}
					fmt.Println(plan.Summary())
					return nil
				}),
			},
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the notes and backups as MCP tools over stdio",
		Action: withComponents(func(_ context.Context, _ *cli.Command, c *internal.Components) error {
			return mcpserver.New(c.Service, version).ServeStdio()
		}),
	}
}
