// Package testing provides an in-memory fake Linux host that satisfies
// sshutil.SSHClient, for exercising provisioning logic without a network.
package testing

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	errNotFound = errors.New("file not found")
	errExists   = errors.New("file exists")
)

// entry is one path in the fake filesystem.
type entry struct {
	dir  bool
	data []byte
	mode os.FileMode
}

// MockFS is the fake host's filesystem: regular files with permission bits,
// and directories. Paths are cleaned before use.
type MockFS struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewMockFS returns a filesystem holding only "/".
func NewMockFS() *MockFS {
	return &MockFS{entries: map[string]*entry{"/": {dir: true, mode: 0755}}}
}

func (fs *MockFS) lookup(path string) *entry {
	return fs.entries[filepath.Clean(path)]
}

// Mkdir creates one directory, failing if anything exists at path (mkdir
// without -p).
func (fs *MockFS) Mkdir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.lookup(path) != nil {
		return errExists
	}
	fs.entries[filepath.Clean(path)] = &entry{dir: true, mode: 0755}
	return nil
}

// MkdirAll creates path and its parents (mkdir -p).
func (fs *MockFS) MkdirAll(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mkdirAll(filepath.Clean(path))
	return nil
}

// mkdirAll expects fs.mu held.
func (fs *MockFS) mkdirAll(path string) {
	for p := path; p != "/" && p != "."; p = filepath.Dir(p) {
		if e, ok := fs.entries[p]; ok && e.dir {
			return
		}
		fs.entries[p] = &entry{dir: true, mode: 0755}
	}
}

// WriteFile replaces the content of path, creating its directory. A new
// file gets mode 0644; an existing one keeps its mode.
func (fs *MockFS) WriteFile(path string, content []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = filepath.Clean(path)
	if e, ok := fs.entries[path]; ok {
		if e.dir {
			return errExists
		}
		e.data = content
		return nil
	}
	fs.mkdirAll(filepath.Dir(path))
	fs.entries[path] = &entry{data: content, mode: 0644}
	return nil
}

// Chmod sets the permission bits of an existing file.
func (fs *MockFS) Chmod(path string, mode os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	e := fs.lookup(path)
	if e == nil || e.dir {
		return errNotFound
	}
	e.mode = mode
	return nil
}

// IsExecutable reports whether path is a file with an execute bit set.
func (fs *MockFS) IsExecutable(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	e := fs.lookup(path)
	return e != nil && !e.dir && e.mode&0111 != 0
}

// ReadFile returns the content of a file.
func (fs *MockFS) ReadFile(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	e := fs.lookup(path)
	if e == nil || e.dir {
		return nil, errNotFound
	}
	return e.data, nil
}

// Remove deletes path and everything under it (rm -rf). Removing a missing
// path is not an error.
func (fs *MockFS) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = filepath.Clean(path)
	if path == "/" {
		return errors.New("refusing to remove /")
	}
	prefix := path + "/"
	for p := range fs.entries {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(fs.entries, p)
		}
	}
	return nil
}

// Exists reports whether anything exists at path.
func (fs *MockFS) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.lookup(path) != nil
}

// IsDir reports whether path is a directory.
func (fs *MockFS) IsDir(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	e := fs.lookup(path)
	return e != nil && e.dir
}

// IsFile reports whether path is a regular file.
func (fs *MockFS) IsFile(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	e := fs.lookup(path)
	return e != nil && !e.dir
}
