package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dshills/lexwork/internal/logging"
)

type collector struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newCollector() *collector {
	return &collector{ch: make(chan Event, 16)}
}

func (c *collector) handle(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.ch <- ev
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) wait(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-c.ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func newWatcher(t *testing.T, debounce time.Duration) *Watcher {
	t.Helper()
	w, err := New(WithDebounce(debounce), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatchWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	other := filepath.Join(dir, "b.txt")
	writeFile(t, path, "one")
	writeFile(t, other, "one")

	w := newWatcher(t, 20*time.Millisecond)
	c := newCollector()
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	writeFile(t, other, "two")
	writeFile(t, path, "two")

	ev := c.wait(t)
	if ev.Path != path {
		t.Errorf("Path = %q, want %q", ev.Path, path)
	}
	if ev.Op != OpWrite && ev.Op != OpCreate {
		t.Errorf("Op = %v, want write", ev.Op)
	}
}

func TestDebounceCoalesces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, path, "0")

	w := newWatcher(t, 200*time.Millisecond)
	c := newCollector()
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		writeFile(t, path, string(rune('a'+i)))
	}
	c.wait(t)
	time.Sleep(400 * time.Millisecond)
	if n := c.count(); n != 1 {
		t.Errorf("got %d events, want 1", n)
	}
}

func TestAtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "old")

	w := newWatcher(t, 20*time.Millisecond)
	c := newCollector()
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	tmp := filepath.Join(dir, ".a.txt.swp")
	writeFile(t, tmp, "new")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	ev := c.wait(t)
	if ev.Path != path {
		t.Errorf("Path = %q, want %q", ev.Path, path)
	}
	if ev.Op == OpRemove {
		t.Errorf("Op = %v after rename onto file", ev.Op)
	}
}

func TestWatchErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "x")

	w := newWatcher(t, time.Millisecond)
	if err := w.Watch(filepath.Join(dir, "missing")); err != ErrPathNotExist {
		t.Errorf("Watch(missing) = %v, want ErrPathNotExist", err)
	}
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(path); err != ErrAlreadyWatching {
		t.Errorf("second Watch = %v, want ErrAlreadyWatching", err)
	}
	if got := w.WatchedFiles(); got != 1 {
		t.Errorf("WatchedFiles = %d, want 1", got)
	}
	if err := w.Unwatch(path); err != nil {
		t.Errorf("Unwatch: %v", err)
	}
	if err := w.Unwatch(path); err != ErrNotWatching {
		t.Errorf("second Unwatch = %v, want ErrNotWatching", err)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := w.Watch(path); err != ErrClosed {
		t.Errorf("Watch after Close = %v, want ErrClosed", err)
	}
}

func TestUnwatchedFileIsSilent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, path, "x")

	w := newWatcher(t, time.Millisecond)
	c := newCollector()
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	if err := w.Unwatch(path); err != nil {
		t.Fatal(err)
	}

	writeFile(t, path, "y")
	time.Sleep(100 * time.Millisecond)
	if n := c.count(); n != 0 {
		t.Errorf("got %d events after Unwatch", n)
	}
}

func TestOperationString(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpWrite, "write"},
		{OpCreate, "create"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Operation(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
