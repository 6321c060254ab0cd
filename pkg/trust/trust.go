// Package trust provides out-of-band checksum sources. A trusted checksum
// is one the operator pinned locally, independent of what a repository
// reports next to the artifact, so a compromised or corrupted mirror cannot
// vouch for its own content.
//
// Two source shapes are supported: a summary file per algorithm holding one
// line per artifact, and a sparse directory mirroring the repository layout
// with one small checksum file per artifact.
package trust

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/repo"
)

// Source yields trusted checksums for artifacts.
type Source interface {
	// TrustedChecksum returns the trusted checksum of the artifact for the
	// given algorithm (e.g. "sha256"), or ok=false when the source holds
	// none. Checksums are lowercase hex.
	TrustedChecksum(a artifact.Artifact, algorithm string) (string, bool, error)
}

// SummaryFileSource reads checksums from one summary file per algorithm,
// named <algorithm>.checksums inside a base directory. Each line is
// "<checksum> <artifact-id>"; blank lines and lines starting with '#' are
// skipped. When an artifact id appears more than once the last entry wins.
//
// Files are parsed once on first use per algorithm and cached for the
// lifetime of the source. A source is shared by concurrent transfer
// workers, so the cache is guarded.
type SummaryFileSource struct {
	base   string
	logger *log.Logger

	mu     sync.Mutex
	parsed map[string]map[string]string // algorithm -> artifact id -> checksum
}

// NewSummaryFileSource creates a source over the given directory. logger
// may be nil.
func NewSummaryFileSource(base string, logger *log.Logger) *SummaryFileSource {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &SummaryFileSource{
		base:   base,
		logger: logger,
		parsed: make(map[string]map[string]string),
	}
}

// TrustedChecksum implements Source. It is safe for concurrent use.
func (s *SummaryFileSource) TrustedChecksum(a artifact.Artifact, algorithm string) (string, bool, error) {
	s.mu.Lock()
	table, ok := s.parsed[algorithm]
	if !ok {
		var err error
		table, err = s.parse(algorithm)
		if err != nil {
			s.mu.Unlock()
			return "", false, err
		}
		s.parsed[algorithm] = table
	}
	s.mu.Unlock()

	sum, ok := table[a.Coordinate.ID()]
	return sum, ok, nil
}

func (s *SummaryFileSource) parse(algorithm string) (map[string]string, error) {
	path := filepath.Join(s.base, algorithm+".checksums")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		checksum, id, found := strings.Cut(line, " ")
		if !found {
			s.logger.Warn("malformed checksum line skipped",
				"file", path, "line", lineNo)
			continue
		}
		id = strings.TrimSpace(id)
		if prev, dup := table[id]; dup && prev != checksum {
			s.logger.Warn("duplicate trusted checksum, last entry wins",
				"file", path, "artifact", id)
		}
		table[id] = strings.ToLower(checksum)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// SparseDirSource reads checksums from a directory tree mirroring the
// repository layout: the checksum of group/name/version/file.jar for
// algorithm sha256 lives at group/name/version/file.jar.sha256 under the
// base directory. With a repository id set, paths are additionally
// prefixed by that id, keeping per-origin trust separate.
type SparseDirSource struct {
	base         string
	repositoryID string
	layout       repo.Layout
}

// NewSparseDirSource creates a source over base. repositoryID may be empty;
// layout defaults to the standard layout when nil.
func NewSparseDirSource(base, repositoryID string, layout repo.Layout) *SparseDirSource {
	if layout == nil {
		layout = repo.DefaultLayout{}
	}
	return &SparseDirSource{base: base, repositoryID: repositoryID, layout: layout}
}

// TrustedChecksum implements Source.
func (s *SparseDirSource) TrustedChecksum(a artifact.Artifact, algorithm string) (string, bool, error) {
	rel := s.layout.ArtifactPath(a) + "." + algorithm
	if s.repositoryID != "" {
		rel = filepath.Join(s.repositoryID, rel)
	}
	data, err := os.ReadFile(filepath.Join(s.base, rel))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// The file holds the hex digest, possibly followed by a filename the
	// way sha256sum writes it.
	sum, _, _ := strings.Cut(strings.TrimSpace(string(data)), " ")
	if sum == "" {
		return "", false, nil
	}
	return strings.ToLower(sum), true, nil
}

// FirstTrusted queries sources in order and returns the first checksum any
// of them holds for the artifact and algorithm.
func FirstTrusted(sources []Source, a artifact.Artifact, algorithm string) (string, bool, error) {
	for _, src := range sources {
		sum, ok, err := src.TrustedChecksum(a, algorithm)
		if err != nil {
			return "", false, err
		}
		if ok {
			return sum, true, nil
		}
	}
	return "", false, nil
}
