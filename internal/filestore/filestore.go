// Package filestore persists uploaded invoice bytes. The local backend keeps
// them in a directory; internal/s3storage provides a MinIO backend with the
// same contract.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store saves, opens and deletes stored files by handle. The handle is what
// ends up in Invoice.FilePath.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(ctx context.Context, handle string) error
}

// ErrNotExist is returned by Open for unknown handles.
var ErrNotExist = errors.New("stored file does not exist")

// UniqueName builds a collision-free name such as 1717243200000-<uuid>.pdf.
func UniqueName(now time.Time, ext string) string {
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), uuid.NewString(), ext)
}

// Local stores files under a single directory.
type Local struct {
	dir string
}

var _ Store = (*Local)(nil)

// NewLocal creates dir if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: abs}, nil
}

// Dir returns the absolute storage directory.
func (l *Local) Dir() string { return l.dir }

// Save copies r into a new file. Existing files are never overwritten.
func (l *Local) Save(_ context.Context, name string, r io.Reader, size int64, _ string) (string, error) {
	path, err := l.resolve(name)
	if err != nil {
		return "", err
	}
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	written, err := io.Copy(dst, r)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("short write: %d of %d bytes", written, size)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// Open returns the stored file.
func (l *Local) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	path, err := l.resolve(filepath.Base(handle))
	if err != nil {
		return nil, err
	}
	if path != filepath.Clean(handle) {
		return nil, ErrNotExist
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	return f, err
}

// Delete removes the stored file. Missing files are not an error.
func (l *Local) Delete(_ context.Context, handle string) error {
	path, err := l.resolve(filepath.Base(handle))
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// resolve maps a bare file name into the storage directory.
func (l *Local) resolve(name string) (string, error) {
	if name == "" || name == "." || strings.ContainsAny(name, `/\`) || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(l.dir, name), nil
}
