package transport

import (
	"context"
	"io"
	"os"
	"path/filepath"

	qerrors "github.com/quarrybuild/quarry/pkg/errors"
)

// FileTransport serves a file:// repository rooted at a local directory.
// Used for mirror directories and in tests.
type FileTransport struct {
	base string
}

// NewFileTransport creates a transport over the given base directory.
func NewFileTransport(base string) *FileTransport {
	return &FileTransport{base: base}
}

func (t *FileTransport) resolve(path string) string {
	return filepath.Join(t.base, filepath.FromSlash(path))
}

// Peek implements Transport.
func (t *FileTransport) Peek(_ context.Context, path string) error {
	info, err := os.Stat(t.resolve(path))
	if os.IsNotExist(err) {
		return qerrors.New(qerrors.ErrCodeNotFound, "%s not found", path)
	}
	if err != nil {
		return qerrors.Wrap(qerrors.ErrCodeTransfer, err, "stat %s", path)
	}
	if info.IsDir() {
		return qerrors.New(qerrors.ErrCodeNotFound, "%s is a directory", path)
	}
	return nil
}

// Get implements Transport. File repositories advertise no checksums.
func (t *FileTransport) Get(ctx context.Context, path string, w io.Writer, progress Progress) (Checksums, error) {
	f, err := os.Open(t.resolve(path))
	if os.IsNotExist(err) {
		return nil, qerrors.New(qerrors.ErrCodeNotFound, "%s not found", path)
	}
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrCodeTransfer, err, "open %s", path)
	}
	defer f.Close()

	if _, err := copyWithProgress(ctx, w, f, progress); err != nil {
		if qerrors.GetCode(err) != "" {
			return nil, err
		}
		return nil, qerrors.Wrap(qerrors.ErrCodeTransfer, err, "read %s", path)
	}
	return nil, nil
}

// Put implements Transport.
func (t *FileTransport) Put(ctx context.Context, path string, r io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return qerrors.Wrap(qerrors.ErrCodeCancelled, err, "upload %s", path)
	}
	dst := t.resolve(path)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return qerrors.Wrap(qerrors.ErrCodeTransfer, err, "create %s", filepath.Dir(dst))
	}
	f, err := os.Create(dst)
	if err != nil {
		return qerrors.Wrap(qerrors.ErrCodeTransfer, err, "create %s", path)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return qerrors.Wrap(qerrors.ErrCodeTransfer, err, "write %s", path)
	}
	return nil
}

var _ Transport = (*FileTransport)(nil)
