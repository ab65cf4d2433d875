package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/stickies/internal/ipc"
)

// Refresh delivers the recurring job's trigger. A running instance gets it
// over HTTP; otherwise this process handles it and, having been launched
// only for it, exits through the exit hook.
func Refresh(ctx context.Context, opts ...Option) error {
	a, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := a.config

	ch := ipc.NewHTTPChannel(cfg.App.HTTP.Address())
	if cfg.Auth.AuthEnabled() {
		ch.Token = cfg.Auth.Token
	}
	err = ch.Send(ctx, ipc.NewTrigger())
	if err == nil {
		a.logger.Info("refresh: delivered to running instance")
		return nil
	}
	if !errors.Is(err, ipc.ErrNoReceiver) {
		return fmt.Errorf("refresh: %w", err)
	}

	a.logger.Info("refresh: no running instance, backing up locally")
	comps, err := a.open(false)
	if err != nil {
		return err
	}
	defer comps.Close()

	receiver := &ipc.Receiver{
		Backup: func(ctx context.Context) error {
			_, err := comps.Runner.RunOnce(ctx)
			return err
		},
		LaunchedAt: a.launchedAt,
		Grace:      cfg.Backup.LaunchGrace,
		Exit: func(code int) {
			if a.exit == nil {
				return
			}
			// The deferred close does not run past os.Exit.
			if err := comps.Close(); err != nil {
				a.logger.Warn("refresh: close failed", slog.String("error", err.Error()))
			}
			a.exit(code)
		},
		Now:    a.now,
		Logger: a.logger,
	}
	return receiver.Handle(ctx, ipc.NewTrigger())
}
