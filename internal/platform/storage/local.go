package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

// Local stores files beneath a root directory.
type Local struct {
	root string
}

// NewLocal creates root if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("platform/storage: create %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

// Save implements Storage.
func (l *Local) Save(ctx context.Context, r io.Reader, filename, subdir string) (string, error) {
	return l.SaveAs(ctx, r, UniqueName(filename), subdir)
}

// SaveAs implements Storage.
func (l *Local) SaveAs(_ context.Context, r io.Reader, name, subdir string) (string, error) {
	rel, err := join(subdir, name)
	if err != nil {
		return "", err
	}
	full := l.full(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("platform/storage: mkdir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("platform/storage: create %s: %w", rel, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("platform/storage: write %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("platform/storage: close %s: %w", rel, err)
	}
	return rel, nil
}

// Open implements Storage.
func (l *Local) Open(_ context.Context, p string) (io.ReadCloser, error) {
	rel, err := cleanPath(p, false)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(l.full(rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("platform/storage: %s: %w", rel, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("platform/storage: open %s: %w", rel, err)
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("platform/storage: %s: %w", rel, shared.ErrNotFound)
	}
	return f, nil
}

// Delete implements Storage.
func (l *Local) Delete(_ context.Context, p string) (bool, error) {
	rel, err := cleanPath(p, false)
	if err != nil {
		return false, err
	}
	err = os.Remove(l.full(rel))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("platform/storage: delete %s: %w", rel, err)
	}
	return true, nil
}

// List implements Storage. Only regular files directly under subdir are
// returned.
func (l *Local) List(_ context.Context, subdir string) ([]string, error) {
	rel, err := cleanPath(subdir, true)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(l.full(rel))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("platform/storage: list %s: %w", rel, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Exists implements Storage.
func (l *Local) Exists(_ context.Context, p string) (bool, error) {
	rel, err := cleanPath(p, false)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(l.full(rel))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("platform/storage: stat %s: %w", rel, err)
	}
	return true, nil
}

func (l *Local) full(rel string) string {
	return filepath.Join(l.root, filepath.FromSlash(rel))
}
