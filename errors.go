// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package n5

import (
	"errors"
	"fmt"
)

// ErrIncompatibleVersion is returned by OpenReader and OpenWriter
// when the container's stored format version has a different major
// component than Current. The open fails before any mutation; the
// container must not be used.
var ErrIncompatibleVersion = errors.New("incompatible container version")

// ErrNotExist is returned by mutations whose target path must already
// exist, such as SetAttributes on a never-created group. It is a
// precondition failure, distinct from the non-error "absent" results
// of GetAttributes and ReadBlock.
var ErrNotExist = errors.New("path does not exist")

// StoreError wraps a backend failure with the container operation and
// group path it occurred on. Callers dispatch with errors.Is/As on
// the wrapped cause; the operation and path are diagnostics.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("n5: %s %q: %v", e.Op, "/", e.Err)
	}
	return fmt.Sprintf("n5: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Path: path, Err: err}
}
