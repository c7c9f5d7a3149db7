// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package mem implements the kv.KeyValueAccess contract in memory.
// It backs the test suites of the higher layers and doubles as an
// embedded scratch container. Scoped handles hold a per-path RWMutex,
// giving the same shared-read / exclusive-write discipline as the
// filesystem backend's advisory locks.
package mem

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ctrueden/n5/kv"
)

// Store is an in-memory KeyValueAccess. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]struct{}
	locks map[string]*sync.RWMutex
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		files: make(map[string][]byte),
		dirs:  make(map[string]struct{}),
		locks: make(map[string]*sync.RWMutex),
	}
}

func (s *Store) Normalize(path string) string { return kv.Normalize(path) }

func (s *Store) Compose(components ...string) string { return kv.Compose(components...) }

func (s *Store) Components(path string) []string { return kv.Components(path) }

func (s *Store) Parent(path string) (string, bool) { return kv.Parent(path) }

func (s *Store) Relativize(path, base string) (string, bool) { return kv.Relativize(path, base) }

// pathLock returns the RWMutex guarding one path, creating it on
// first use. Locks are never removed; the map is bounded by the set
// of paths ever locked.
func (s *Store) pathLock(path string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[path] = l
	}
	return l
}

func isRoot(path string) bool {
	return path == "" || path == kv.Separator
}

func (s *Store) Exists(path string) bool {
	return s.IsFile(path) || s.IsDirectory(path)
}

func (s *Store) IsDirectory(path string) bool {
	if isRoot(path) {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.dirs[path]
	return ok
}

func (s *Store) IsFile(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

func (s *Store) LockForReading(path string) (kv.LockedChannel, error) {
	l := s.pathLock(path)
	l.RLock()

	s.mu.Lock()
	data, ok := s.files[path]
	s.mu.Unlock()
	if !ok {
		l.RUnlock()
		return nil, fmt.Errorf("%s does not exist", path)
	}

	snapshot := make([]byte, len(data))
	copy(snapshot, data)
	return &readChannel{store: s, lock: l, data: snapshot}, nil
}

func (s *Store) LockForWriting(path string) (kv.LockedChannel, error) {
	l := s.pathLock(path)
	l.Lock()

	s.mu.Lock()
	if parent, ok := kv.Parent(path); ok {
		s.createDirectoriesLocked(parent)
	}
	existing := make([]byte, len(s.files[path]))
	copy(existing, s.files[path])
	s.mu.Unlock()

	return &writeChannel{store: s, lock: l, path: path, existing: existing}, nil
}

func (s *Store) ListDirectories(path string) ([]string, error) {
	if !s.IsDirectory(path) {
		return nil, fmt.Errorf("%s is not a directory", path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for d := range s.dirs {
		if name, ok := childName(d, path); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *Store) List(path string) ([]string, error) {
	if !s.IsDirectory(path) {
		return nil, fmt.Errorf("%s is not a directory", path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for d := range s.dirs {
		if name, ok := childName(d, path); ok {
			seen[name] = struct{}{}
		}
	}
	for f := range s.files {
		if name, ok := childName(f, path); ok {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names, nil
}

// childName reports whether candidate is an immediate child of path,
// and if so returns its name.
func childName(candidate, path string) (string, bool) {
	rel, ok := kv.Relativize(candidate, path)
	if !ok || rel == "" || strings.Contains(rel, kv.Separator) {
		return "", false
	}
	return rel, true
}

func (s *Store) CreateDirectories(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createDirectoriesLocked(path)
	return nil
}

func (s *Store) createDirectoriesLocked(path string) {
	for p := path; !isRoot(p); {
		s.dirs[p] = struct{}{}
		parent, ok := kv.Parent(p)
		if !ok {
			break
		}
		p = parent
	}
}

// Delete removes the path recursively. Deleting a non-existent path
// is a no-op.
func (s *Store) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	delete(s.dirs, path)
	if isRoot(path) {
		s.files = make(map[string][]byte)
		s.dirs = make(map[string]struct{})
		return nil
	}
	prefix := path + kv.Separator
	for f := range s.files {
		if strings.HasPrefix(f, prefix) {
			delete(s.files, f)
		}
	}
	for d := range s.dirs {
		if strings.HasPrefix(d, prefix) {
			delete(s.dirs, d)
		}
	}
	return nil
}

type readChannel struct {
	store *Store
	lock  *sync.RWMutex
	data  []byte
	done  bool
}

func (c *readChannel) Reader() (io.Reader, error) {
	return bytes.NewReader(c.data), nil
}

func (c *readChannel) Writer() (io.Writer, error) {
	return nil, fmt.Errorf("locked for reading only")
}

func (c *readChannel) Close() error {
	if !c.done {
		c.done = true
		c.lock.RUnlock()
	}
	return nil
}

type writeChannel struct {
	store    *Store
	lock     *sync.RWMutex
	path     string
	existing []byte
	buf      *bytes.Buffer
	done     bool
}

func (c *writeChannel) Reader() (io.Reader, error) {
	return bytes.NewReader(c.existing), nil
}

func (c *writeChannel) Writer() (io.Writer, error) {
	if c.buf == nil {
		c.buf = &bytes.Buffer{}
	}
	return c.buf, nil
}

// Close commits the written contents. If Writer was never called the
// resource is still created (empty) when it did not exist, matching
// the contract that LockForWriting creates its target.
func (c *writeChannel) Close() error {
	if c.done {
		return nil
	}
	c.done = true

	c.store.mu.Lock()
	if c.buf != nil {
		c.store.files[c.path] = c.buf.Bytes()
	} else if _, ok := c.store.files[c.path]; !ok {
		c.store.files[c.path] = nil
	}
	c.store.mu.Unlock()

	c.lock.Unlock()
	return nil
}
