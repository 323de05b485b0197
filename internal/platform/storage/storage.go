// Package storage saves uploaded files on local disk or in an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

// Storage persists opaque files addressed by slash-separated relative paths.
type Storage interface {
	// Save stores r under a generated name that keeps filename's extension
	// and returns the relative path.
	Save(ctx context.Context, r io.Reader, filename, subdir string) (string, error)
	// SaveAs stores r under name exactly.
	SaveAs(ctx context.Context, r io.Reader, name, subdir string) (string, error)
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	Delete(ctx context.Context, p string) (bool, error)
	List(ctx context.Context, subdir string) ([]string, error)
	Exists(ctx context.Context, p string) (bool, error)
}

// UniqueName returns a random file name with filename's extension.
func UniqueName(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if ext == "." {
		ext = ""
	}
	return uuid.NewString() + ext
}

// cleanPath validates a caller supplied relative path. Empty input is
// allowed only when allowRoot is set.
func cleanPath(p string, allowRoot bool) (string, error) {
	p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		if allowRoot {
			return "", nil
		}
		return "", fmt.Errorf("%w: path is required", shared.ErrValidation)
	}
	if !filepath.IsLocal(filepath.FromSlash(p)) || path.Clean(p) != p {
		return "", fmt.Errorf("%w: invalid path %q", shared.ErrValidation, p)
	}
	return p, nil
}

func join(subdir, name string) (string, error) {
	if strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("%w: invalid file name %q", shared.ErrValidation, name)
	}
	return cleanPath(path.Join(subdir, name), false)
}
