package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWorkspace_Lifecycle(t *testing.T) {
	root := t.TempDir()

	ws, err := NewWorkspace(root, "speakfix-")
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}

	if filepath.Dir(ws.Dir()) != root {
		t.Errorf("Expected workspace under %s, got %s", root, ws.Dir())
	}

	path := ws.Path("upload.webm")
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatalf("Failed to write into workspace: %v", err)
	}

	if err := ws.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Errorf("Expected workspace to be removed, stat err = %v", err)
	}
	if err := ws.Cleanup(); err != nil {
		t.Errorf("Second Cleanup() error = %v", err)
	}
}

func TestWorkspace_PathStaysInside(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "speakfix-")
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	defer ws.Cleanup()

	tests := []string{"../../etc/passwd", "/abs/file.wav", "nested/dir/file.wav", "plain.wav"}
	for _, name := range tests {
		if got := filepath.Dir(ws.Path(name)); got != ws.Dir() {
			t.Errorf("Path(%q) escaped workspace: %s", name, ws.Path(name))
		}
	}
}

func TestSweepStale(t *testing.T) {
	root := t.TempDir()

	stale, err := NewWorkspace(root, "speakfix-")
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	fresh, err := NewWorkspace(root, "speakfix-")
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	other := filepath.Join(root, "unrelated")
	if err := os.Mkdir(other, 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	old := time.Now().Add(-2 * time.Hour)
	for _, dir := range []string{stale.Dir(), other} {
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatalf("Chtimes() error = %v", err)
		}
	}

	removed, err := SweepStale(root, "speakfix-", time.Hour)
	if err != nil {
		t.Fatalf("SweepStale() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed workspace, got %d", removed)
	}
	if _, err := os.Stat(stale.Dir()); !os.IsNotExist(err) {
		t.Error("Expected stale workspace to be removed")
	}
	if _, err := os.Stat(fresh.Dir()); err != nil {
		t.Error("Expected fresh workspace to remain")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("Expected unrelated directory to remain")
	}
}

func TestSweepStale_MissingRoot(t *testing.T) {
	removed, err := SweepStale(filepath.Join(t.TempDir(), "missing"), "speakfix-", time.Hour)
	if err != nil || removed != 0 {
		t.Errorf("Expected no-op for missing root, got %d, %v", removed, err)
	}
}
