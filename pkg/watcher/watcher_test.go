package watcher

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) first() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[0]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
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

func TestDirWatcher_DebounceZero(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "table.html")

	if err := os.WriteFile(tmpFile, []byte("initial"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	rec := &recorder{}
	dw, err := New(tmpDir, []string{".html"}, 0, rec.record, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer dw.Close()
	dw.Start()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(tmpFile, []byte("changed"), 0644); err != nil {
		t.Fatalf("Failed to write to file: %v", err)
	}

	if !waitFor(t, time.Second, func() bool { return rec.count() > 0 }) {
		t.Fatal("Expected at least one callback")
	}
	if got := rec.first(); got != tmpFile {
		t.Errorf("Expected callback for %s, got %s", tmpFile, got)
	}
}

func TestDirWatcher_Debounce(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "form.html")

	if err := os.WriteFile(tmpFile, []byte("initial"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	rec := &recorder{}
	dw, err := New(tmpDir, []string{".html"}, 300*time.Millisecond, rec.record, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer dw.Close()
	dw.Start()

	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(tmpFile, []byte("change "+strconv.Itoa(i)), 0644); err != nil {
			t.Fatalf("Failed to write to file: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(700 * time.Millisecond)

	if got := rec.count(); got != 1 {
		t.Errorf("Expected 1 debounced callback, got %d", got)
	}
}

func TestDirWatcher_IgnoresOtherExtensions(t *testing.T) {
	tmpDir := t.TempDir()

	rec := &recorder{}
	dw, err := New(tmpDir, []string{".html"}, 0, rec.record, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer dw.Close()
	dw.Start()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := rec.count(); got != 0 {
		t.Errorf("Expected no callbacks for .txt files, got %d", got)
	}
}

func TestDirWatcher_UnchangedContent(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "layout.html")

	if err := os.WriteFile(tmpFile, []byte("same"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	rec := &recorder{}
	dw, err := New(tmpDir, []string{".html"}, 100*time.Millisecond, rec.record, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer dw.Close()
	dw.Start()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(tmpFile, []byte("same"), 0644); err != nil {
		t.Fatalf("Failed to write to file: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := rec.count(); got != 0 {
		t.Errorf("Expected no callback when content is unchanged, got %d", got)
	}
}

func TestDirWatcher_NoCallbackAfterClose(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "table.html")

	if err := os.WriteFile(tmpFile, []byte("initial"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	rec := &recorder{}
	dw, err := New(tmpDir, []string{".html"}, 50*time.Millisecond, rec.record, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	dw.Start()

	if err := os.WriteFile(tmpFile, []byte("changed"), 0644); err != nil {
		t.Fatalf("Failed to write to file: %v", err)
	}
	if err := dw.Close(); err != nil {
		t.Fatalf("Failed to close watcher: %v", err)
	}

	// a timer that already fired runs handleChange after Close
	dw.handleChange(tmpFile)
	time.Sleep(200 * time.Millisecond)

	if got := rec.count(); got != 0 {
		t.Errorf("Expected no callbacks after Close, got %d", got)
	}
}

func TestDirWatcher_MissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), nil, 0, func(string) {}, zerolog.Nop())
	if err == nil {
		t.Fatal("Expected error for missing directory")
	}
}
