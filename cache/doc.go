// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache holds the in-memory mirror of an N5 container's
// metadata tree: per-path entries recording dataset-ness, the
// attribute document, and the set of immediate child names, each
// lazily populated from the container on first use.
//
// The cache is the one piece of process-wide mutable shared state in
// an open container, and its locking is deliberately two-level. An
// outer lock scoped to the whole entry map guards structural
// operations: the check-and-insert when a path is first cached, and
// the prefix invalidation when a subtree is deleted. Everything else
// (attribute loads, dataset-flag derivation, children-set updates)
// runs under finer per-entry and per-set locks, so unrelated subtrees
// never serialize against each other. Backend I/O is never issued
// while the outer lock is held, with one deliberate exception: the
// backend delete inside [Cache.Remove], which must be atomic with the
// prefix invalidation from a concurrent reader's point of view.
//
// Entry state is an explicit three-way tag. A path missing from the
// map entirely means "unknown, ask the backend". An entry in the
// absent state means "confirmed not to exist" and is answered without
// touching the backend. Reaching the absent state always requires an
// explicit backend check or deletion, never an assumption, and an
// absent entry turns present again only through [Cache.InsertGroup],
// the creation call that also performs the backend mutation.
package cache
