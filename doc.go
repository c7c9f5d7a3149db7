// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package n5 reads and writes N5 containers: hierarchies of groups
// and chunked n-dimensional datasets with JSON attribute documents,
// stored through an abstract key-value backend.
//
// A container is opened with OpenReader or OpenWriter over any
// kv.KeyValueAccess implementation (kv/file for the local filesystem,
// kv/mem for memory). Groups and datasets are addressed by normalized
// group paths; each node owns one attribute document, and datasets
// additionally own one resource per data block, addressed by grid
// position.
//
// With Config.CacheMetadata enabled, reads are served from an
// in-memory mirror of the hierarchy that every write through the same
// handle keeps consistent. The cache never outlives its handle and
// never sees mutations made by other processes; disable caching when
// external writers touch the container concurrently.
package n5
