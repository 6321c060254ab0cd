// Package transport moves bytes between a remote repository and the local
// machine. A Transport speaks one URL scheme and addresses resources by
// repository-relative path; the transfer layer above it owns temp files,
// checksum validation and worker scheduling.
package transport

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	qerrors "github.com/quarrybuild/quarry/pkg/errors"
	"github.com/quarrybuild/quarry/pkg/repo"
)

// Checksums maps an algorithm name (e.g. "sha256") to the lowercase hex
// digest the transport observed for a downloaded resource, when the remote
// side advertises any.
type Checksums map[string]string

// Progress is called as bytes arrive with the running total. Returning
// false cancels the transfer; the cancellation surfaces as a CANCELLED
// error on that one task.
type Progress func(written int64) bool

// Transport accesses resources of one remote repository.
type Transport interface {
	// Peek checks that the resource exists without downloading it.
	Peek(ctx context.Context, path string) error
	// Get streams the resource into w. progress may be nil.
	Get(ctx context.Context, path string, w io.Writer, progress Progress) (Checksums, error)
	// Put uploads size bytes from r to the resource path.
	Put(ctx context.Context, path string, r io.Reader, size int64) error
}

// New creates the transport matching the repository's URL scheme.
func New(r repo.Remote) (Transport, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrCodeInvalidConfig, err, "repository %s URL", r.ID)
	}
	switch u.Scheme {
	case "file":
		return NewFileTransport(u.Path), nil
	case "http", "https":
		return NewHTTPTransport(strings.TrimSuffix(r.URL, "/")), nil
	default:
		return nil, qerrors.New(qerrors.ErrCodeInvalidConfig,
			"repository %s: unsupported URL scheme %q", r.ID, u.Scheme)
	}
}

// retryableError marks a transient failure worth another attempt.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// retry runs fn up to attempts times with doubling delay, retrying only
// errors marked retryable. Other errors return immediately.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !errors.As(err, new(*retryableError)) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// copyWithProgress copies r to w, reporting the running total after each
// chunk. A progress callback returning false aborts with a CANCELLED error.
func copyWithProgress(ctx context.Context, w io.Writer, r io.Reader, progress Progress) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, qerrors.Wrap(qerrors.ErrCodeCancelled, err, "transfer interrupted")
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if progress != nil && !progress(written) {
				return written, qerrors.New(qerrors.ErrCodeCancelled, "transfer cancelled by listener")
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
