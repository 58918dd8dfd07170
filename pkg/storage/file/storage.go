// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-certslot.
//
// go-certslot is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package file provides a directory-backed storage.Backend. Each key maps
// to a file below the root directory.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-certslot/pkg/storage"
)

const (
	// Default directory permissions (owner rwx only)
	defaultDirPerms = 0700

	keysFilePerms   = 0600 // slots/*/keys/* = owner rw only
	publicFilePerms = 0644 // certificates and public keys
	defaultPerms    = 0600
)

// FileStorage stores objects as files below rootDir.
type FileStorage struct {
	mu      sync.RWMutex
	rootDir string
	closed  bool
}

// New creates rootDir if needed and returns a backend rooted there.
func New(rootDir string) (*FileStorage, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("file storage: root directory cannot be empty")
	}
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("file storage: %w", err)
	}
	if err := os.MkdirAll(abs, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("file storage: failed to create root directory: %w", err)
	}
	return &FileStorage{rootDir: abs}, nil
}

// Root returns the absolute root directory.
func (f *FileStorage) Root() string {
	return f.rootDir
}

func (f *FileStorage) Get(key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path, err := f.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("file storage: failed to read %q: %w", key, err)
	}
	return data, nil
}

func (f *FileStorage) Put(key string, value []byte, opts *storage.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create directory for %q: %w", key, err)
	}

	// Write to a temp file and rename so readers never see a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("file storage: failed to write %q: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage: failed to write %q: %w", key, err)
	}
	if err := tmp.Chmod(permissions(key, opts)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage: failed to set mode on %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file storage: failed to write %q: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("file storage: failed to write %q: %w", key, err)
	}
	return nil
}

func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("file storage: failed to delete %q: %w", key, err)
	}
	return nil
}

func (f *FileStorage) List(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, storage.ErrClosed
	}

	keys := make([]string, 0)
	err := filepath.WalkDir(f.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(f.rootDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to list keys: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

func (f *FileStorage) Exists(key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path, err := f.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("file storage: failed to check %q: %w", key, err)
	}
	return true, nil
}

// Close marks the backend closed. Files stay on disk.
func (f *FileStorage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// resolve maps key to an absolute path below rootDir. Caller holds f.mu.
func (f *FileStorage) resolve(key string) (string, error) {
	if f.closed {
		return "", storage.ErrClosed
	}
	if err := validateStorageKey(key); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidID, err)
	}
	return filepath.Join(f.rootDir, filepath.FromSlash(key)), nil
}

func validateStorageKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("key contains null byte")
	}
	if strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		return fmt.Errorf("key cannot be an absolute path")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("key contains path traversal attempt")
		}
	}
	return nil
}

func permissions(key string, opts *storage.Options) fs.FileMode {
	if opts != nil && opts.Permissions != 0 {
		return opts.Permissions
	}
	if strings.Contains(key, "/keys/") {
		return keysFilePerms
	}
	if strings.HasSuffix(key, ".der") || strings.HasSuffix(key, ".spki") {
		return publicFilePerms
	}
	return defaultPerms
}

var _ storage.Backend = (*FileStorage)(nil)
