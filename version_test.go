// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"testing"

	"github.com/tidwall/gjson"
)

// TestVersionAtLeast tests version comparisons
func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		name    string
		version Version
		major   int
		minor   int
		patch   int
		want    bool
	}{
		{name: "equal", version: Version{2, 1, 13}, major: 2, minor: 1, patch: 13, want: true},
		{name: "newer patch", version: Version{2, 1, 14}, major: 2, minor: 1, patch: 13, want: true},
		{name: "older patch", version: Version{2, 1, 12}, major: 2, minor: 1, patch: 13, want: false},
		{name: "newer minor older patch", version: Version{2, 2, 0}, major: 2, minor: 1, patch: 13, want: true},
		{name: "newer major", version: Version{3, 0, 0}, major: 2, minor: 1, patch: 13, want: true},
		{name: "older major newer minor", version: Version{1, 9, 99}, major: 2, minor: 1, patch: 13, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.version.AtLeast(tt.major, tt.minor, tt.patch)
			if got != tt.want {
				t.Errorf("%s.AtLeast(%d,%d,%d) = %v, want %v",
					tt.version, tt.major, tt.minor, tt.patch, got, tt.want)
			}
		})
	}
}

// TestVersionString tests string rendering
func TestVersionString(t *testing.T) {
	if got := (Version{2, 1, 13}).String(); got != "2.1.13" {
		t.Errorf("Expected 2.1.13, got %s", got)
	}
}

// TestParseVersion tests decoding of the version probe payload
func TestParseVersion(t *testing.T) {
	data := gjson.Parse(`{"major_version": 2, "minor_version": 1, "patch_version": 13}`)
	version, err := parseVersion(data)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if version != (Version{2, 1, 13}) {
		t.Errorf("Expected 2.1.13, got %s", version)
	}
}

// TestParseVersionMalformed tests rejection of unrecognized payloads
func TestParseVersionMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty object", raw: `{}`},
		{name: "missing patch", raw: `{"major_version": 2, "minor_version": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseVersion(gjson.Parse(tt.raw)); err == nil {
				t.Fatal("Expected error")
			}
		})
	}
}
