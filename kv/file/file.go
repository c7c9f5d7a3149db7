// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

// Package file implements the kv.KeyValueAccess contract on the local
// filesystem. Scoped read/write handles carry BSD advisory locks
// (flock), so independent processes opening the same container
// serialize their attribute rewrites the same way threads within one
// process do.
package file

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"github.com/ctrueden/n5/kv"
)

// Store is a filesystem-backed KeyValueAccess. The zero value is
// ready to use.
type Store struct{}

// New returns a filesystem-backed KeyValueAccess.
func New() *Store {
	return &Store{}
}

func (s *Store) Normalize(path string) string { return kv.Normalize(path) }

func (s *Store) Compose(components ...string) string { return kv.Compose(components...) }

func (s *Store) Components(path string) []string { return kv.Components(path) }

func (s *Store) Parent(path string) (string, bool) { return kv.Parent(path) }

func (s *Store) Relativize(path, base string) (string, bool) { return kv.Relativize(path, base) }

func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *Store) IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (s *Store) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// LockForReading opens the file at path and takes a shared advisory
// lock on it. The lock is released by Close.
func (s *Store) LockForReading(path string) (kv.LockedChannel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking %s for reading: %w", path, err)
	}
	return &lockedFile{file: f}, nil
}

// LockForWriting creates the file at path (and any missing parent
// directories) if absent, and takes an exclusive advisory lock on it.
// The lock is released by Close.
func (s *Store) LockForWriting(path string) (kv.LockedChannel, error) {
	if parent, ok := kv.Parent(path); ok {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("creating parent of %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking %s for writing: %w", path, err)
	}
	return &lockedFile{file: f, writable: true}, nil
}

func (s *Store) ListDirectories(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (s *Store) List(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *Store) CreateDirectories(path string) error {
	return os.MkdirAll(path, 0o755)
}

// Delete removes path recursively. A non-existent path is a no-op.
func (s *Store) Delete(path string) error {
	err := os.RemoveAll(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// lockedFile is a scoped handle on one file, holding an advisory
// flock until Close. Writer truncates before the first write so a
// rewrite fully replaces the previous contents.
type lockedFile struct {
	file      *os.File
	writable  bool
	truncated bool
}

func (l *lockedFile) Reader() (io.Reader, error) {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return l.file, nil
}

func (l *lockedFile) Writer() (io.Writer, error) {
	if !l.writable {
		return nil, fmt.Errorf("%s: locked for reading only", l.file.Name())
	}
	if !l.truncated {
		if err := l.file.Truncate(0); err != nil {
			return nil, err
		}
		if _, err := l.file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		l.truncated = true
	}
	return l.file, nil
}

func (l *lockedFile) Close() error {
	// Closing the descriptor drops the flock.
	return l.file.Close()
}
