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

// Package memory provides a map-backed storage.Backend for tests and
// ephemeral slots.
package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-certslot/pkg/storage"
)

// Storage is an in-memory storage.Backend. Values are copied on the way in
// and out.
type Storage struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New returns an empty in-memory backend.
func New() *Storage {
	return &Storage{
		data: make(map[string][]byte),
	}
}

func (s *Storage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	value, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *Storage) Put(key string, value []byte, _ *storage.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	if key == "" {
		return storage.ErrInvalidID
	}

	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *Storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	if _, exists := s.data[key]; !exists {
		return storage.ErrNotFound
	}

	delete(s.data, key)
	return nil
}

func (s *Storage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	keys := make([]string, 0)
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Storage) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, storage.ErrClosed
	}

	_, exists := s.data[key]
	return exists, nil
}

// Len returns the number of stored objects.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close drops all data. Further calls return storage.ErrClosed.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = nil
	return nil
}

var _ storage.Backend = (*Storage)(nil)
