// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import "strings"

// Separator is the path separator used by the canonical helpers and
// by every shipped backend.
const Separator = "/"

// Normalize returns the canonical form of a slash-separated path:
// redundant separators and "." components are removed, ".."
// components consume their preceding component, and any trailing
// separator is dropped. A leading separator is preserved, so absolute
// paths stay absolute. The normalized root is "/" for absolute input
// and "" for relative input.
func Normalize(path string) string {
	absolute := strings.HasPrefix(path, Separator)

	var components []string
	for _, c := range strings.Split(path, Separator) {
		switch c {
		case "", ".":
		case "..":
			if len(components) > 0 {
				components = components[:len(components)-1]
			}
		default:
			components = append(components, c)
		}
	}

	joined := strings.Join(components, Separator)
	if absolute {
		return Separator + joined
	}
	return joined
}

// Compose joins components with the separator and normalizes the
// result. Empty components are skipped, so composing with a root
// path ("" or "/") does not introduce duplicate separators.
func Compose(components ...string) string {
	return Normalize(strings.Join(components, Separator))
}

// Components splits a normalized path into its non-empty components.
// The root path has no components.
func Components(path string) []string {
	var components []string
	for _, c := range strings.Split(path, Separator) {
		if c != "" {
			components = append(components, c)
		}
	}
	return components
}

// Parent returns the parent of a normalized path. ok is false for the
// root path, which has no parent.
func Parent(path string) (string, bool) {
	if path == "" || path == Separator {
		return "", false
	}
	i := strings.LastIndex(path, Separator)
	switch i {
	case -1:
		return "", true
	case 0:
		return Separator, true
	default:
		return path[:i], true
	}
}

// BaseName returns the last component of a normalized path, or ""
// for the root path.
func BaseName(path string) string {
	if i := strings.LastIndex(path, Separator); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Relativize expresses a normalized path relative to a normalized
// base. ok is false if path is not under base. Relativizing a path
// against itself yields "".
func Relativize(path, base string) (string, bool) {
	if path == base {
		return "", true
	}
	prefix := base + Separator
	if base == "" || base == Separator {
		prefix = base
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	return strings.TrimPrefix(path[len(prefix):], Separator), true
}
