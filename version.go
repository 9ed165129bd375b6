// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Version is a product software version as reported by the device
type Version struct {
	Major int
	Minor int
	Patch int
}

// String returns the dotted version string
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v is the given version or newer
func (v Version) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// parseVersion decodes the version probe payload. The device reports the
// components as separate numeric fields.
func parseVersion(data gjson.Result) (Version, error) {
	major := data.Get("major_version")
	minor := data.Get("minor_version")
	patch := data.Get("patch_version")
	if !major.Exists() || !minor.Exists() || !patch.Exists() {
		return Version{}, fmt.Errorf("safe: unrecognized version payload: %s", data.Raw)
	}

	return Version{
		Major: int(major.Int()),
		Minor: int(minor.Int()),
		Patch: int(patch.Int()),
	}, nil
}
