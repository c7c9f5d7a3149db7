// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package n5

import (
	"fmt"
	"strconv"
	"strings"
)

// VersionKey is the reserved root attribute holding the container's
// format version as a "major.minor.patch" string.
const VersionKey = "n5"

// Current is the container format version this library writes.
var Current = Version{Major: 2, Minor: 5, Patch: 1}

// Version is an N5 container format version. Two versions are
// compatible iff they share the same major component; minor and patch
// are forward-tolerant.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a "major.minor.patch" string. Missing minor or
// patch components default to zero; a non-numeric or empty major
// component is an error.
func ParseVersion(s string) (Version, error) {
	parts := strings.SplitN(s, ".", 3)
	var v Version
	var err error
	if v.Major, err = strconv.Atoi(parts[0]); err != nil {
		return Version{}, fmt.Errorf("version %q: %w", s, err)
	}
	if len(parts) > 1 {
		if v.Minor, err = strconv.Atoi(parts[1]); err != nil {
			return Version{}, fmt.Errorf("version %q: %w", s, err)
		}
	}
	if len(parts) > 2 {
		if v.Patch, err = strconv.Atoi(parts[2]); err != nil {
			return Version{}, fmt.Errorf("version %q: %w", s, err)
		}
	}
	return v, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible reports whether a container stamped with v can be
// handled by an implementation at version other.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}
