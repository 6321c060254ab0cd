package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string) {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("org/example/lib/1.0/lib-1.0.jar")
	write("org/example/lib/1.0/lib-1.0.jar.sha1")
	write("org/example/lib/1.0/lib-1.0.jar.lastUpdated")

	count, err := clearDir(dir)
	if err != nil {
		t.Fatalf("clearDir error: %v", err)
	}
	if count != 3 {
		t.Errorf("removed %d files, want 3", count)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not emptied: %v", entries)
	}
}

func TestClearDirEmpty(t *testing.T) {
	count, err := clearDir(t.TempDir())
	if err != nil {
		t.Fatalf("clearDir error: %v", err)
	}
	if count != 0 {
		t.Errorf("removed %d files, want 0", count)
	}
}
