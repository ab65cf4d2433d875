package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeLaunchctl records invocations and keeps a loaded set.
type fakeLaunchctl struct {
	mu      sync.Mutex
	calls   []string
	loaded  map[string]bool
	failAll error
}

func (f *fakeLaunchctl) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, strings.Join(args, " "))
	if f.failAll != nil {
		return []byte("boom"), f.failAll
	}
	if f.loaded == nil {
		f.loaded = make(map[string]bool)
	}
	switch args[0] {
	case "load":
		label := strings.TrimSuffix(filepath.Base(args[1]), ".plist")
		if f.loaded[label] {
			return []byte("already loaded"), errors.New("exit status 1")
		}
		f.loaded[label] = true
	case "unload":
		label := strings.TrimSuffix(filepath.Base(args[1]), ".plist")
		if !f.loaded[label] {
			return []byte("could not find"), errors.New("exit status 1")
		}
		delete(f.loaded, label)
	case "remove":
		if !f.loaded[args[1]] {
			return []byte("could not find"), errors.New("exit status 3")
		}
		delete(f.loaded, args[1])
	case "list":
		var b strings.Builder
		b.WriteString("PID\tStatus\tLabel\n-\t0\tcom.apple.something\n")
		for l := range f.loaded {
			b.WriteString("-\t0\t" + l + "\n")
		}
		return []byte(b.String()), nil
	}
	return nil, nil
}

func testLaunchd(t *testing.T) (*Launchd, *fakeLaunchctl) {
	t.Helper()
	fake := &fakeLaunchctl{}
	l := NewLaunchd(filepath.Join(t.TempDir(), "LaunchAgents"))
	l.Cmd = fake
	return l, fake
}

func TestPlistRoundTrip(t *testing.T) {
	job := Job{
		Label:      DefaultLabel,
		Program:    "/Users/me/Library/Application Support/Stickies & Co/refresh.sh",
		Interval:   1800 * time.Second,
		RunAtLoad:  true,
		StdoutPath: "/tmp/codestickies.backup.log",
		StderrPath: "/tmp/codestickies.backup.err",
		Env:        map[string]string{ConfigEnv: "/etc/stickies/config.yaml"},
	}
	data, err := encodePlist(job)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		"<key>Label</key>",
		"<string>com.timi2506.codestickies-backup</string>",
		"Stickies &amp; Co/refresh.sh",
		"<key>StartInterval</key>",
		"<integer>1800</integer>",
		"<key>APP_CONFIG_FILE</key>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plist missing %q:\n%s", want, out)
		}
	}

	got, err := decodePlist(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, agentFor(job)) {
		t.Errorf("decoded = %+v\nwant %+v", got, agentFor(job))
	}
}

func TestReadStartIntervalIgnoresNested(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0"><dict>
<key>Nested</key><dict><key>StartInterval</key><integer>5</integer></dict>
<key>Label</key><string>x</string>
</dict></plist>`
	l, _ := testLaunchd(t)
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(l.plistPath("x"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if d, ok, err := l.Interval(context.Background(), "x"); ok || err != nil {
		t.Errorf("nested StartInterval picked up: %s, %v, %v", d, ok, err)
	}
}

func TestUnregisterWithoutPlist(t *testing.T) {
	l, fake := testLaunchd(t)
	ctx := context.Background()
	if err := l.Register(ctx, Job{Label: DefaultLabel, Program: "/x/refresh.sh", Interval: time.Hour}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(l.plistPath(DefaultLabel)); err != nil {
		t.Fatal(err)
	}

	if err := l.Unregister(ctx, DefaultLabel); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if active, _ := l.Active(ctx, DefaultLabel); active {
		t.Error("job still loaded")
	}
	if last := fake.calls[len(fake.calls)-1]; last != "remove "+DefaultLabel {
		t.Errorf("last launchctl call = %q", last)
	}
}

func TestLaunchdLifecycle(t *testing.T) {
	l, fake := testLaunchd(t)
	ctx := context.Background()
	job := Job{Label: DefaultLabel, Program: "/x/refresh.sh", Interval: time.Hour, RunAtLoad: true}

	if err := l.Register(ctx, job); err != nil {
		t.Fatal(err)
	}
	active, err := l.Active(ctx, DefaultLabel)
	if err != nil || !active {
		t.Fatalf("Active = %v, %v", active, err)
	}
	d, ok, err := l.Interval(ctx, DefaultLabel)
	if err != nil || !ok || d != time.Hour {
		t.Errorf("Interval = %s, %v, %v", d, ok, err)
	}

	// Re-registering unloads first so the load succeeds.
	job.Interval = 2 * time.Hour
	if err := l.Register(ctx, job); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if d, _, _ := l.Interval(ctx, DefaultLabel); d != 2*time.Hour {
		t.Errorf("Interval after re-register = %s", d)
	}
	if len(fake.loaded) != 1 {
		t.Errorf("loaded = %v", fake.loaded)
	}

	if err := l.Unregister(ctx, DefaultLabel); err != nil {
		t.Fatal(err)
	}
	if active, _ := l.Active(ctx, DefaultLabel); active {
		t.Error("still active after unregister")
	}
	if _, err := os.Stat(l.plistPath(DefaultLabel)); !os.IsNotExist(err) {
		t.Error("plist not removed")
	}
	if _, ok, _ := l.Interval(ctx, DefaultLabel); ok {
		t.Error("interval readable after unregister")
	}
	if err := l.Unregister(ctx, DefaultLabel); err != nil {
		t.Errorf("second unregister: %v", err)
	}
}

func TestLaunchdLoadFailure(t *testing.T) {
	l, fake := testLaunchd(t)
	fake.failAll = errors.New("exit status 5")
	err := l.Register(context.Background(), Job{Label: "x", Program: "/p", Interval: time.Hour})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v", err)
	}
	if _, err := l.Active(context.Background(), "x"); err == nil {
		t.Error("expected list failure")
	}
}

func TestSchedulerOverLaunchd(t *testing.T) {
	l, _ := testLaunchd(t)
	s := testScheduler(t, l, nil)
	ctx := context.Background()

	if _, err := s.SetInterval(ctx, 4*time.Hour); err != nil {
		t.Fatal(err)
	}
	st, err := s.Enable(ctx)
	if err != nil || !st.Enabled || st.Interval != 4*time.Hour {
		t.Fatalf("Enable = %+v, %v", st, err)
	}
	st, err = s.SetInterval(ctx, time.Hour)
	if err != nil || !st.Enabled || st.Interval != time.Hour {
		t.Fatalf("SetInterval = %+v, %v", st, err)
	}
	st, err = s.Disable(ctx)
	if err != nil || st.Enabled || st.Interval != time.Hour {
		t.Errorf("Disable = %+v, %v", st, err)
	}
}
