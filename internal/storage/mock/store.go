// Package mock provides an in-memory storage.ArtifactStore for testing.
// It allows handler tests to run without filesystem operations and to inject failures.
package mock

import (
	"bytes"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/fjmerc/softvault/internal/storage"
)

// ArtifactStore is an in-memory implementation of storage.ArtifactStore.
type ArtifactStore struct {
	mu sync.RWMutex

	category string
	dir      string
	files    map[string][]byte // resolved path -> content

	// EscapeNames lists filenames that Resolve reports as escaping the
	// category directory, simulating a symlink pointing elsewhere.
	EscapeNames map[string]bool

	// Error injection for testing
	ResolveError   error
	EnsureDirError error
	WriteError     error
	StatError      error
	ReadError      error

	// Call tracking
	EnsureDirCalls int
	WriteCalls     int
	ReadCalls      int
}

var _ storage.ArtifactStore = (*ArtifactStore)(nil)

// NewArtifactStore creates an empty mock store for the given category.
func NewArtifactStore(category string) *ArtifactStore {
	return &ArtifactStore{
		category:    category,
		dir:         "/mock/" + category,
		files:       make(map[string][]byte),
		EscapeNames: make(map[string]bool),
	}
}

// Reset clears files, errors and counters.
func (s *ArtifactStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = make(map[string][]byte)
	s.EscapeNames = make(map[string]bool)
	s.ResolveError = nil
	s.EnsureDirError = nil
	s.WriteError = nil
	s.StatError = nil
	s.ReadError = nil
	s.EnsureDirCalls = 0
	s.WriteCalls = 0
	s.ReadCalls = 0
}

// AddFile stores content under filename for test setup.
func (s *ArtifactStore) AddFile(filename string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[path.Join(s.dir, filename)] = bytes.Clone(content)
}

// GetFile returns the content stored under filename (for test assertions).
func (s *ArtifactStore) GetFile(filename string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.files[path.Join(s.dir, filename)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(content), true
}

// FileCount returns the number of stored files.
func (s *ArtifactStore) FileCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func (s *ArtifactStore) Category() string { return s.category }

func (s *ArtifactStore) Dir() string { return s.dir }

func (s *ArtifactStore) Resolve(rawFilename string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ResolveError != nil {
		return "", s.ResolveError
	}
	if rawFilename == "" ||
		strings.Contains(rawFilename, "..") ||
		strings.ContainsAny(rawFilename, "/\\\x00") {
		return "", storage.ErrInvalidFilename
	}
	if s.EscapeNames[rawFilename] {
		return "", storage.ErrPathEscape
	}
	return path.Join(s.dir, rawFilename), nil
}

func (s *ArtifactStore) EnsureDir() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.EnsureDirCalls++
	return s.EnsureDirError
}

func (s *ArtifactStore) WriteFile(p string, r io.Reader) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.WriteCalls++
	if s.WriteError != nil {
		return 0, storage.NewStorageError("WriteFile", path.Base(p), s.WriteError)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return int64(len(data)), storage.NewStorageError("WriteFile", path.Base(p), err)
	}
	s.files[p] = data
	return int64(len(data)), nil
}

func (s *ArtifactStore) Stat(p string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StatError != nil {
		return 0, storage.NewStorageError("Stat", path.Base(p), s.StatError)
	}
	content, ok := s.files[p]
	if !ok {
		return 0, storage.NewStorageError("Stat", path.Base(p), os.ErrNotExist)
	}
	return int64(len(content)), nil
}

func (s *ArtifactStore) ReadFile(p string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ReadCalls++
	if s.ReadError != nil {
		return nil, storage.NewStorageError("ReadFile", path.Base(p), s.ReadError)
	}
	content, ok := s.files[p]
	if !ok {
		return nil, storage.NewStorageError("ReadFile", path.Base(p), os.ErrNotExist)
	}
	return bytes.Clone(content), nil
}
