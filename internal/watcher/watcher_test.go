package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// collector gathers callback paths safely across goroutines.
type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcherHandlesDroppedFile(t *testing.T) {
	dir := t.TempDir()
	col := &collector{}
	w := NewWatcher([]string{dir}, []string{".txt"}, col.add, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "dropped.txt")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return len(col.snapshot()) >= 1 }) {
		t.Fatal("callback never fired for dropped file")
	}
	if got := col.snapshot()[0]; got != path {
		t.Errorf("callback path = %q, want %q", got, path)
	}
}

func TestWatcherFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	col := &collector{}
	w := NewWatcher([]string{dir}, []string{".pdf"}, col.add, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if got := col.snapshot(); len(got) != 0 {
		t.Errorf("non-matching extension triggered callback: %v", got)
	}
}

func TestWatcherDebouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	col := &collector{}
	w := NewWatcher([]string{dir}, nil, col.add, WithDebounce(150*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "large-upload.txt")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("partial write"), 0644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		time.Sleep(30 * time.Millisecond)
	}

	if !waitFor(t, 3*time.Second, func() bool { return len(col.snapshot()) >= 1 }) {
		t.Fatal("callback never fired")
	}
	time.Sleep(300 * time.Millisecond)
	if got := col.snapshot(); len(got) != 1 {
		t.Errorf("expected one debounced callback, got %d", len(got))
	}
}

func TestWatcherCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "drop")
	w := NewWatcher([]string{root}, nil, func(string) {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("missing root not created: %v", err)
	}
}

func TestSyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	pre := filepath.Join(dir, "already-there.md")
	if err := os.WriteFile(pre, []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skipped.bin"), []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	col := &collector{}
	w := NewWatcher([]string{dir}, []string{".md"}, col.add)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	w.SyncExistingFiles()
	got := col.snapshot()
	if len(got) != 1 || got[0] != pre {
		t.Errorf("sync paths = %v, want [%s]", got, pre)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path string
		exts []string
		want bool
	}{
		{"/drop/a.pdf", []string{".pdf"}, true},
		{"/drop/a.PDF", []string{".pdf"}, true},
		{"/drop/a.pdf", []string{"pdf"}, true},
		{"/drop/a.txt", []string{".pdf"}, false},
		{"/drop/a.anything", nil, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.exts); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.exts, got, tt.want)
		}
	}
}
