// Package testutil provides shared test helpers for stores, folders and job registries.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/stickies/internal/kv"
	"github.com/starford/stickies/internal/scheduler"
	"github.com/starford/stickies/internal/storage"
)

// Discard is a logger that drops everything.
var Discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

// TestDB creates a temporary SQLite key-value store that is automatically cleaned up.
func TestDB(t *testing.T) *kv.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "stickies-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := kv.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestFolder creates a temporary backup folder with a storage.Provider.
func TestFolder(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// Registry is an in-memory scheduler.Registry.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]scheduler.Job
	// Fail, when set, is returned by Register.
	Fail error
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]scheduler.Job)}
}

func (r *Registry) Register(_ context.Context, job scheduler.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	r.jobs[job.Label] = job
	return nil
}

func (r *Registry) Unregister(_ context.Context, label string) error {
	r.mu.Lock()
	delete(r.jobs, label)
	r.mu.Unlock()
	return nil
}

func (r *Registry) Active(_ context.Context, label string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[label]
	return ok, nil
}

func (r *Registry) Interval(_ context.Context, label string) (time.Duration, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[label]
	return job.Interval, ok, nil
}

// Jobs returns the registered jobs by label.
func (r *Registry) Jobs() map[string]scheduler.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]scheduler.Job, len(r.jobs))
	for k, v := range r.jobs {
		out[k] = v
	}
	return out
}
