// Package ipc carries the backup trigger from the recurring job to the app.
package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Kind identifies a message type.
type Kind string

// TriggerBackup asks the receiver to write one snapshot.
const TriggerBackup Kind = "trigger_backup"

// TriggerPath is the HTTP route the running instance listens on.
const TriggerPath = "/api/trigger"

// DefaultGrace is how soon after launch a trigger counts as the launch reason.
const DefaultGrace = time.Second

// ErrNoReceiver is returned when no running instance accepted the message.
var ErrNoReceiver = errors.New("ipc: no receiver")

// Message is the single envelope exchanged over a Channel.
type Message struct {
	Kind   Kind      `json:"kind"`
	SentAt time.Time `json:"sent_at"`
}

// NewTrigger returns a TriggerBackup message stamped with now.
func NewTrigger() Message {
	return Message{Kind: TriggerBackup, SentAt: time.Now()}
}

// Channel delivers a message to a running instance.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPChannel posts messages to a running instance's API.
type HTTPChannel struct {
	BaseURL string
	// Token is sent as a Bearer credential when set.
	Token  string
	Client *http.Client
}

// NewHTTPChannel targets the instance listening on addr ("host:port" or a URL).
func NewHTTPChannel(addr string) *HTTPChannel {
	base := addr
	if !strings.Contains(base, "://") {
		if strings.HasPrefix(base, ":") {
			base = "127.0.0.1" + base
		}
		base = "http://" + base
	}
	return &HTTPChannel{
		BaseURL: strings.TrimRight(base, "/"),
		Client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *HTTPChannel) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("ipc: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+TriggerPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ipc: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return ErrNoReceiver
		}
		return fmt.Errorf("ipc: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ipc: receiver returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// Receiver handles trigger messages in the process that received them.
type Receiver struct {
	Backup func(ctx context.Context) error
	// LaunchedAt is when the receiving process started.
	LaunchedAt time.Time
	Grace      time.Duration
	// Exit terminates the process. When nil the receiver never exits.
	Exit   func(code int)
	Now    func() time.Time
	Logger *slog.Logger
}

// Handle runs one backup. If the process started less than Grace before the
// message arrived, it was launched only for this trigger and exits afterwards.
func (r *Receiver) Handle(ctx context.Context, msg Message) error {
	if msg.Kind != TriggerBackup {
		return fmt.Errorf("ipc: unknown message kind %q", msg.Kind)
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	grace := r.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	launchedForTrigger := now().Sub(r.LaunchedAt) < grace

	err := r.Backup(ctx)
	if err != nil {
		logger.Error("ipc: triggered backup failed", slog.String("error", err.Error()))
	} else {
		logger.Info("ipc: triggered backup done")
	}

	if launchedForTrigger && r.Exit != nil {
		code := 0
		if err != nil {
			code = 1
		}
		logger.Info("ipc: launched for trigger, exiting", slog.Int("code", code))
		r.Exit(code)
	}
	return err
}
