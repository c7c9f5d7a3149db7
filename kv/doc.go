// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package kv defines the key-value access contract that every N5
// storage backend must provide.
//
// The contract is a deliberately small subset of filesystem-style
// primitives (path arithmetic, existence tests, scoped read/write
// locks, directory creation, recursive delete, and child listing) so
// that backends without a real filesystem underneath (object stores,
// in-memory fakes) can implement it without emulating one.
//
// All operations take normalized paths. Callers normalize once at the
// API boundary (see [KeyValueAccess.Normalize]) and pass the result
// down; implementations make no further normalization effort.
//
// The package also provides the canonical slash-separated path
// helpers ([Normalize], [Compose], [Parent], [Relativize],
// [Components]) that the shipped backends share. A backend whose
// native path syntax is slash-separated can delegate its path methods
// to these directly.
package kv
