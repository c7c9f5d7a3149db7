// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package n5

import (
	"strings"

	"github.com/ctrueden/n5/kv"
)

// NormalizeGroupPath returns the canonical form of a group or dataset
// path: separators collapsed, "." and ".." resolved, no leading or
// trailing separator. The container root normalizes to "". All cache
// keys and backend compositions are built from this form, so "/a/b",
// "a//b/" and "a/./b" address the same node.
func NormalizeGroupPath(path string) string {
	return strings.TrimPrefix(kv.Normalize(path), kv.Separator)
}

// NormalizeAttributePath returns the canonical dotted form of an
// attribute path inside a node's document: "/" separators become ".",
// and an "[i]" index suffix becomes a ".i" element. The empty path
// and "/" both address the whole document and normalize to "".
//
//	NormalizeAttributePath("/foo/bar")    == "foo.bar"
//	NormalizeAttributePath("foo[2]/baz")  == "foo.2.baz"
func NormalizeAttributePath(path string) string {
	var parts []string
	for _, component := range strings.Split(path, "/") {
		if component == "" {
			continue
		}
		component = strings.ReplaceAll(component, "[", ".")
		component = strings.ReplaceAll(component, "]", "")
		if component = strings.Trim(component, "."); component != "" {
			parts = append(parts, component)
		}
	}
	return strings.Join(parts, ".")
}
