package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FS stores blobs as files under a root directory. References are paths
// relative to the root.
type FS struct {
	root string
}

func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root %s: %w", root, err)
	}
	return &FS{root: root}, nil
}

func (f *FS) Put(_ context.Context, filename string, data []byte) (string, error) {
	ref := uuid.NewString() + "-" + sanitizeFilename(filename)
	path := filepath.Join(f.root, ref)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return ref, nil
}

func (f *FS) Get(_ context.Context, ref string) ([]byte, error) {
	path, err := f.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

func (f *FS) Delete(_ context.Context, ref string) error {
	path, err := f.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// resolve joins ref onto the root and rejects references that escape it.
func (f *FS) resolve(ref string) (string, error) {
	path := filepath.Join(f.root, filepath.Clean("/"+ref))
	if !strings.HasPrefix(path, f.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob reference %q", ref)
	}
	return path, nil
}

// sanitizeFilename keeps only characters safe for a filesystem name.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
