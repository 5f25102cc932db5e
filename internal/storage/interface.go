// Package storage defines the artifact storage abstraction used by the upload
// and serve handlers. Every artifact lives in exactly one category directory
// and is addressed by a bare filename that must be resolved before any I/O.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Artifact categories. Each maps to a subdirectory of a base upload root.
const (
	CategorySoftware      = "software"
	CategoryProductImages = "images/products"
	CategoryPreviews      = "previews"
)

var (
	// ErrInvalidFilename is returned when a caller supplied filename is
	// rejected before touching the filesystem (empty, separators, "..").
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrPathEscape is returned when a filename passed the syntactic checks
	// but resolved outside its category directory (for example through a
	// symlink). It wraps ErrInvalidFilename.
	ErrPathEscape = fmt.Errorf("%w: resolved path escapes category directory", ErrInvalidFilename)

	// ErrNotExist is returned when a resolved artifact does not exist.
	ErrNotExist = os.ErrNotExist
)

// ArtifactStore is a sandbox rooted at a single category directory.
// Paths accepted by the I/O methods must come from Resolve.
type ArtifactStore interface {
	// Category returns the category this store serves.
	Category() string

	// Dir returns the resolved absolute category directory.
	Dir() string

	// Resolve maps a raw filename to an absolute path inside Dir.
	Resolve(rawFilename string) (string, error)

	// EnsureDir creates the category directory if missing. Idempotent.
	EnsureDir() error

	// WriteFile creates or truncates path and streams r into it.
	// A partially written file is removed on error.
	WriteFile(path string, r io.Reader) (int64, error)

	// Stat returns the size of the file at path. Missing files yield an
	// error matching ErrNotExist.
	Stat(path string) (int64, error)

	// ReadFile returns the whole content of the file at path.
	ReadFile(path string) ([]byte, error)
}

// StorageError represents errors from storage operations with additional context.
type StorageError struct {
	Op      string // Operation that failed (e.g., "WriteFile", "Stat")
	Path    string // Path or filename involved
	Err     error  // Underlying error
	Message string // Human-readable message
}

func (e *StorageError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Path != "" {
		return e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the given details.
func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// NewStorageErrorWithMessage creates a new StorageError with a custom message.
func NewStorageErrorWithMessage(op, path string, err error, message string) *StorageError {
	return &StorageError{
		Op:      op,
		Path:    path,
		Err:     err,
		Message: message,
	}
}

// IsNotExist reports whether err means the artifact is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
