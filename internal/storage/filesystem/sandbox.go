// Package filesystem implements storage.ArtifactStore on the local filesystem.
package filesystem

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fjmerc/softvault/internal/storage"
)

// Sandbox confines all artifact I/O to one category directory.
type Sandbox struct {
	category string
	dir      string // resolved absolute category directory
}

var _ storage.ArtifactStore = (*Sandbox)(nil)

// NewSandbox resolves baseDir/category once and returns a sandbox rooted there.
// The directory does not need to exist yet.
func NewSandbox(baseDir, category string) (*Sandbox, error) {
	if baseDir == "" {
		return nil, storage.NewStorageErrorWithMessage("NewSandbox", category, storage.ErrInvalidFilename, "base directory cannot be empty")
	}

	dir, err := resolvePath(filepath.Join(baseDir, category))
	if err != nil {
		return nil, storage.NewStorageError("NewSandbox", category, err)
	}

	return &Sandbox{
		category: category,
		dir:      dir,
	}, nil
}

// Category returns the category this sandbox serves.
func (s *Sandbox) Category() string {
	return s.category
}

// Dir returns the resolved category directory.
func (s *Sandbox) Dir() string {
	return s.dir
}

// Resolve maps a caller supplied filename to an absolute path inside the
// category directory. Syntactic rejections never touch the filesystem.
func (s *Sandbox) Resolve(rawFilename string) (string, error) {
	if rawFilename == "" ||
		strings.Contains(rawFilename, "..") ||
		strings.ContainsAny(rawFilename, "/\\\x00") {
		return "", storage.ErrInvalidFilename
	}

	joined := filepath.Join(s.dir, rawFilename)
	candidate, err := resolvePath(joined)
	if err != nil {
		// A link that cannot be followed, such as a loop, can never be shown
		// to stay inside the category directory
		if info, lerr := os.Lstat(joined); errors.Is(err, syscall.ELOOP) ||
			(lerr == nil && info.Mode()&os.ModeSymlink != 0) {
			slog.Warn("unresolvable symlink in category directory",
				"category", s.category,
				"filename", rawFilename,
				"error", err,
			)
			return "", storage.ErrPathEscape
		}
		return "", storage.NewStorageError("Resolve", rawFilename, err)
	}

	// Must start with dir + separator; the category directory itself is not a file
	if !strings.HasPrefix(candidate, s.dir+string(filepath.Separator)) {
		slog.Warn("path escape attempt",
			"category", s.category,
			"filename", rawFilename,
		)
		return "", storage.ErrPathEscape
	}

	// A dangling symlink would survive resolution unchanged and let a write
	// land wherever it points
	if info, err := os.Lstat(candidate); err == nil && info.Mode()&os.ModeSymlink != 0 {
		slog.Warn("dangling symlink in category directory",
			"category", s.category,
			"filename", rawFilename,
		)
		return "", storage.ErrPathEscape
	}

	return candidate, nil
}

// EnsureDir creates the category directory and its parents.
func (s *Sandbox) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return storage.NewStorageError("EnsureDir", s.dir, err)
	}
	return nil
}

// WriteFile creates or truncates path and copies r into it.
func (s *Sandbox) WriteFile(path string, r io.Reader) (int64, error) {
	if err := s.checkPath(path); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, storage.NewStorageError("WriteFile", filepath.Base(path), err)
	}

	written, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(path)
		return written, storage.NewStorageError("WriteFile", filepath.Base(path), err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return written, storage.NewStorageError("WriteFile", filepath.Base(path), err)
	}

	slog.Debug("artifact written",
		"category", s.category,
		"filename", filepath.Base(path),
		"size", written,
	)

	return written, nil
}

// Stat returns the size of the regular file at path.
func (s *Sandbox) Stat(path string) (int64, error) {
	if err := s.checkPath(path); err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, storage.NewStorageError("Stat", filepath.Base(path), err)
	}
	if info.IsDir() {
		return 0, storage.NewStorageErrorWithMessage("Stat", filepath.Base(path), os.ErrNotExist, "not a regular file")
	}

	return info.Size(), nil
}

// ReadFile returns the whole file at path.
func (s *Sandbox) ReadFile(path string) ([]byte, error) {
	if err := s.checkPath(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, storage.NewStorageError("ReadFile", filepath.Base(path), err)
	}
	return data, nil
}

// checkPath guards the I/O methods against paths that did not come from Resolve.
func (s *Sandbox) checkPath(path string) error {
	if !strings.HasPrefix(path, s.dir+string(filepath.Separator)) {
		return storage.ErrPathEscape
	}
	return nil
}

// resolvePath returns the absolute, cleaned form of p with symlinks evaluated
// for the longest prefix that exists. Missing trailing components are
// appended unchanged.
func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	current := abs
	rest := ""
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(current), rest)
		current = parent
	}
}
