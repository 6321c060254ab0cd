package trust

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/quarrybuild/quarry/pkg/artifact"
)

func lib(version string) artifact.Artifact {
	return artifact.New(artifact.Coordinate{
		Group: "org.example", Name: "lib", Extension: "jar", Version: version,
	})
}

func TestSummaryFileSource(t *testing.T) {
	dir := t.TempDir()
	content := `# pinned checksums
abc123 org.example:lib::jar:1.0

def456 org.example:lib::jar:2.0
AAA999 org.example:lib::jar:1.0
`
	if err := os.WriteFile(filepath.Join(dir, "sha256.checksums"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	src := NewSummaryFileSource(dir, nil)

	sum, ok, err := src.TrustedChecksum(lib("1.0"), "sha256")
	if err != nil {
		t.Fatalf("TrustedChecksum: %v", err)
	}
	if !ok || sum != "aaa999" {
		t.Errorf("duplicate key must take the last entry lowercased, got %q ok=%v", sum, ok)
	}

	sum, ok, _ = src.TrustedChecksum(lib("2.0"), "sha256")
	if !ok || sum != "def456" {
		t.Errorf("lib 2.0 = %q ok=%v", sum, ok)
	}

	if _, ok, _ := src.TrustedChecksum(lib("3.0"), "sha256"); ok {
		t.Error("unknown artifact must miss")
	}
	if _, ok, _ := src.TrustedChecksum(lib("1.0"), "sha512"); ok {
		t.Error("missing algorithm file must miss, not fail")
	}
}

func TestSummaryFileSourceConcurrentFirstUse(t *testing.T) {
	dir := t.TempDir()
	content := "abc123 org.example:lib::jar:1.0\ndef456 org.example:lib::jar:2.0\n"
	if err := os.WriteFile(filepath.Join(dir, "sha256.checksums"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	// One source shared across transfer workers; the first lookups of an
	// algorithm race to populate the parse cache.
	src := NewSummaryFileSource(dir, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		version := "1.0"
		want := "abc123"
		if i%2 == 1 {
			version, want = "2.0", "def456"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sum, ok, err := src.TrustedChecksum(lib(version), "sha256")
			if err != nil {
				errs <- err
				return
			}
			if !ok || sum != want {
				errs <- fmt.Errorf("lib %s = %q ok=%v, want %q", version, sum, ok, want)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSparseDirSource(t *testing.T) {
	dir := t.TempDir()
	rel := "org/example/lib/1.0/lib-1.0.jar.sha256"
	if err := os.MkdirAll(filepath.Join(dir, filepath.Dir(rel)), 0755); err != nil {
		t.Fatal(err)
	}
	// sha256sum-style trailing filename must be stripped.
	if err := os.WriteFile(filepath.Join(dir, rel), []byte("CAFEBABE  lib-1.0.jar\n"), 0644); err != nil {
		t.Fatal(err)
	}

	src := NewSparseDirSource(dir, "", nil)
	sum, ok, err := src.TrustedChecksum(lib("1.0"), "sha256")
	if err != nil {
		t.Fatalf("TrustedChecksum: %v", err)
	}
	if !ok || sum != "cafebabe" {
		t.Errorf("sum = %q ok=%v", sum, ok)
	}

	if _, ok, _ := src.TrustedChecksum(lib("2.0"), "sha256"); ok {
		t.Error("missing file must miss")
	}
}

func TestSparseDirSourceRepositoryPrefix(t *testing.T) {
	dir := t.TempDir()
	rel := "central/org/example/lib/1.0/lib-1.0.jar.sha256"
	if err := os.MkdirAll(filepath.Join(dir, filepath.Dir(rel)), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, rel), []byte("beef"), 0644); err != nil {
		t.Fatal(err)
	}

	prefixed := NewSparseDirSource(dir, "central", nil)
	if _, ok, _ := prefixed.TrustedChecksum(lib("1.0"), "sha256"); !ok {
		t.Error("prefixed source must find the repository-scoped file")
	}
	plain := NewSparseDirSource(dir, "", nil)
	if _, ok, _ := plain.TrustedChecksum(lib("1.0"), "sha256"); ok {
		t.Error("unprefixed source must not see repository-scoped files")
	}
}

func TestFirstTrusted(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sha256.checksums"),
		[]byte("feed org.example:lib::jar:1.0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	empty := NewSparseDirSource(t.TempDir(), "", nil)
	summary := NewSummaryFileSource(dir, nil)

	sum, ok, err := FirstTrusted([]Source{empty, summary}, lib("1.0"), "sha256")
	if err != nil {
		t.Fatalf("FirstTrusted: %v", err)
	}
	if !ok || sum != "feed" {
		t.Errorf("sum = %q ok=%v", sum, ok)
	}
}
