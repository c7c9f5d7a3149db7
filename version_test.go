// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package n5

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{in: "2.5.1", want: Version{2, 5, 1}},
		{in: "2.5", want: Version{2, 5, 0}},
		{in: "2", want: Version{2, 0, 0}},
		{in: "99.0.0", want: Version{99, 0, 0}},
		{in: "", wantErr: true},
		{in: "two.five", wantErr: true},
		{in: "2.x.1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseVersion(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVersion(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestVersionString(t *testing.T) {
	if got := (Version{2, 5, 1}).String(); got != "2.5.1" {
		t.Errorf("String() = %q, want %q", got, "2.5.1")
	}
}

func TestVersionCompatible(t *testing.T) {
	if !(Version{2, 0, 0}).Compatible(Version{2, 9, 9}) {
		t.Error("same major should be compatible")
	}
	if (Version{99, 0, 0}).Compatible(Current) {
		t.Error("different major should be incompatible")
	}
}
