// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"fmt"
	"strings"
)

// REST URL sections exposed by the SAFe framework
const (
	// SectionAPI serves CRUD and method calls against live objects
	SectionAPI = "api"

	// SectionDoc serves the machine-readable specification
	SectionDoc = "doc"

	// SectionConfig serves the device configuration archive
	SectionConfig = "config"
)

// restPrefix is the common prefix of every SAFe REST URL
const restPrefix = "/SAFe/sng_rest/"

// URLBuilder renders SAFe REST URLs of the form
//
//	/SAFe/sng_rest/<section>/<method>/<object path>
//
// Object model building defers path construction to runtime: the path and
// method of a call are not known until a caller navigates to a proxy. The
// builder is a small functional structure that accumulates path segments and
// renders URLs on demand. Join returns a copy, so builders can be shared
// freely between proxies without aliasing.
type URLBuilder struct {
	base     string
	segments []string
}

// NewURLBuilder constructs a URLBuilder for a device, deriving the base URL
// from the scheme, host and port.
func NewURLBuilder(scheme, host string, port int) URLBuilder {
	return URLBuilder{
		base: fmt.Sprintf("%s://%s:%d%s", scheme, host, port, restPrefix),
	}
}

// Join returns a new URLBuilder with the given segments appended. The
// receiver is not modified.
func (b URLBuilder) Join(segments ...string) URLBuilder {
	joined := make([]string, 0, len(b.segments)+len(segments))
	joined = append(joined, b.segments...)
	joined = append(joined, segments...)
	return URLBuilder{base: b.base, segments: joined}
}

// Segments returns a copy of the accumulated path segments
func (b URLBuilder) Segments() []string {
	segments := make([]string, len(b.segments))
	copy(segments, b.segments)
	return segments
}

// Path returns the accumulated object path as a slash-joined string. This is
// the entity path used as the change-set key for staged writes.
func (b URLBuilder) Path() string {
	return strings.Join(b.segments, "/")
}

// URL renders a URL for the given section and method. The method may be
// empty for section-level requests (for example fetching the specification
// from the doc section). Extra path segments are appended after the
// accumulated object path.
//
// Example:
//
//	b := safe.NewURLBuilder("http", "192.168.1.1", 80).Join("sip", "profile")
//	b.URL(safe.SectionAPI, "retrieve", "my_profile")
//	// http://192.168.1.1:80/SAFe/sng_rest/api/retrieve/sip/profile/my_profile
func (b URLBuilder) URL(section, method string, path ...string) string {
	segments := make([]string, 0, 2+len(b.segments)+len(path))
	segments = append(segments, section)
	if method != "" {
		segments = append(segments, method)
	}
	segments = append(segments, b.segments...)
	segments = append(segments, path...)
	return b.base + strings.Join(segments, "/")
}
