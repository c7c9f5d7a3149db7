// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import "io"

// KeyValueAccess is the minimal storage contract an N5 container
// needs. Implementations exist for the local filesystem (kv/file) and
// for memory (kv/mem); object-store implementations plug in the same
// way.
//
// Every method taking a path expects it in normalized form as
// produced by Normalize. Predicates (Exists, IsDirectory, IsFile)
// have no side effects.
type KeyValueAccess interface {
	// Normalize returns the canonical form of path. All paths
	// pointing to the same location normalize to the same string.
	Normalize(path string) string

	// Compose joins path components with the backend's separator.
	// Empty components are skipped.
	Compose(components ...string) string

	// Components splits a path into its components.
	Components(path string) []string

	// Parent returns the parent of path. ok is false if the path has
	// no parent.
	Parent(path string) (parent string, ok bool)

	// Relativize expresses path relative to base. ok is false if path
	// is not under base.
	Relativize(path, base string) (relative string, ok bool)

	// Exists reports whether the path exists in any form.
	Exists(path string) bool

	// IsDirectory reports whether the path is a directory-like node.
	IsDirectory(path string) bool

	// IsFile reports whether the path is a regular resource.
	IsFile(path string) bool

	// LockForReading acquires a shared scoped handle on the resource
	// at path. The caller must Close the handle on every exit path;
	// the handle is not meant to be kept around.
	LockForReading(path string) (LockedChannel, error)

	// LockForWriting acquires an exclusive scoped handle on the
	// resource at path, creating it and any missing parent
	// directories if absent. The caller must Close the handle on
	// every exit path.
	LockForWriting(path string) (LockedChannel, error)

	// ListDirectories returns the names of the immediate
	// directory-like children of path. No ordering is guaranteed.
	ListDirectories(path string) ([]string, error)

	// List returns the names of all immediate children of path.
	// No ordering is guaranteed.
	List(path string) ([]string, error)

	// CreateDirectories creates the directory at path and all parents
	// along the way. Idempotent: concurrent duplicate invocations for
	// the same or nested paths must neither fail nor corrupt state.
	CreateDirectories(path string) error

	// Delete removes the path, recursively if it is a directory.
	// Deleting a non-existent path is a no-op, not an error.
	Delete(path string) error
}

// LockedChannel is a scoped handle on one backend resource, acquired
// through LockForReading or LockForWriting. The handle holds whatever
// lock the backend provides (an advisory file lock, an in-process
// mutex) until Close releases it.
type LockedChannel interface {
	// Reader returns a reader over the resource's current contents.
	Reader() (io.Reader, error)

	// Writer returns a writer that replaces the resource's contents.
	// Only valid on handles from LockForWriting.
	Writer() (io.Writer, error)

	// Close releases the lock and commits any written contents.
	Close() error
}
