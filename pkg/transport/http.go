package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	qerrors "github.com/quarrybuild/quarry/pkg/errors"
)

const (
	httpAttempts   = 3
	httpRetryDelay = 500 * time.Millisecond
)

// HTTPTransport serves an http(s) repository. Transient failures (network
// errors, 5xx, 429) are retried with exponential backoff; a 404 maps to
// NOT_FOUND and is final.
type HTTPTransport struct {
	base   string
	client *http.Client
}

// NewHTTPTransport creates a transport for the given base URL (no trailing
// slash).
func NewHTTPTransport(base string) *HTTPTransport {
	return &HTTPTransport{
		base:   base,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (t *HTTPTransport) url(path string) string {
	return t.base + "/" + strings.TrimPrefix(path, "/")
}

// statusError maps an HTTP response status to the error taxonomy, marking
// retryable statuses.
func statusError(path string, status int) error {
	switch {
	case status == http.StatusNotFound:
		return qerrors.New(qerrors.ErrCodeNotFound, "%s not found", path)
	case status == http.StatusTooManyRequests || status >= 500:
		return &retryableError{err: qerrors.New(qerrors.ErrCodeTransfer,
			"%s: unexpected status %d", path, status)}
	default:
		return qerrors.New(qerrors.ErrCodeTransfer, "%s: unexpected status %d", path, status)
	}
}

// Peek implements Transport with a HEAD request.
func (t *HTTPTransport) Peek(ctx context.Context, path string) error {
	err := retry(ctx, httpAttempts, httpRetryDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, t.url(path), nil)
		if err != nil {
			return qerrors.Wrap(qerrors.ErrCodeTransfer, err, "head %s", path)
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return &retryableError{err: qerrors.Wrap(qerrors.ErrCodeTransfer, err, "head %s", path)}
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return statusError(path, resp.StatusCode)
		}
		return nil
	})
	return unwrapRetryable(err)
}

// Get implements Transport. Checksums advertised via X-Checksum-* response
// headers are reported back for validation.
func (t *HTTPTransport) Get(ctx context.Context, path string, w io.Writer, progress Progress) (Checksums, error) {
	var checksums Checksums
	err := retry(ctx, httpAttempts, httpRetryDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url(path), nil)
		if err != nil {
			return qerrors.Wrap(qerrors.ErrCodeTransfer, err, "get %s", path)
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return &retryableError{err: qerrors.Wrap(qerrors.ErrCodeTransfer, err, "get %s", path)}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return statusError(path, resp.StatusCode)
		}

		checksums = headerChecksums(resp.Header)
		if _, err := copyWithProgress(ctx, w, resp.Body, progress); err != nil {
			if qerrors.GetCode(err) == qerrors.ErrCodeCancelled {
				return err
			}
			// A broken body mid-stream is transient, but the caller's
			// writer already has partial content. The transfer layer
			// restarts into a fresh temp file, so signal non-retryable
			// here and let the outer pipeline decide.
			return qerrors.Wrap(qerrors.ErrCodeTransfer, err, "read body of %s", path)
		}
		return nil
	})
	if err != nil {
		return nil, unwrapRetryable(err)
	}
	return checksums, nil
}

// Put implements Transport.
func (t *HTTPTransport) Put(ctx context.Context, path string, r io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.url(path), r)
	if err != nil {
		return qerrors.Wrap(qerrors.ErrCodeTransfer, err, "put %s", path)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return qerrors.Wrap(qerrors.ErrCodeTransfer, err, "put %s", path)
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	default:
		return qerrors.New(qerrors.ErrCodeTransfer, "put %s: unexpected status %d", path, resp.StatusCode)
	}
}

// headerChecksums collects X-Checksum-<Algo> headers the way repository
// managers advertise digests alongside content.
func headerChecksums(h http.Header) Checksums {
	var sums Checksums
	for _, algo := range []string{"sha512", "sha256", "sha1", "md5"} {
		if v := h.Get(fmt.Sprintf("X-Checksum-%s", strings.ToUpper(algo[:1])+algo[1:])); v != "" {
			if sums == nil {
				sums = make(Checksums)
			}
			sums[algo] = strings.ToLower(v)
		}
	}
	return sums
}

// unwrapRetryable strips the retry marker so callers see the typed error.
func unwrapRetryable(err error) error {
	if r, ok := err.(*retryableError); ok {
		return r.err
	}
	return err
}

var _ Transport = (*HTTPTransport)(nil)
