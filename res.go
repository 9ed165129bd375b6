// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"github.com/tidwall/gjson"
)

// Mimetypes returned by the SAFe REST API
const (
	// MimetypeJSON is the regular response envelope
	MimetypeJSON = "application/json"

	// MimetypeGzip is returned for configuration archives and downloads
	MimetypeGzip = "application/x-gzip"
)

// Res represents a SAFe REST response
//
// JSON responses use a common envelope of the form
//
//	{"status": true, "data": ...}
//
// with the payload under "data". Binary responses (configuration archives,
// file downloads) carry their payload in Content instead.
type Res struct {
	// StatusCode is the HTTP status code
	StatusCode int

	// Mimetype is the response content type
	Mimetype string

	// Raw is the JSON response body; empty for binary responses
	Raw string

	// Content is the binary response body; nil for JSON responses
	Content []byte
}

// Data returns the "data" field of the response envelope
//
// Returns a zero gjson.Result for binary responses or when the field is
// absent.
//
// Example:
//
//	res, err := client.Get(ctx, builder, "list")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, key := range res.Data().Array() {
//	    fmt.Println(key.String())
//	}
func (r Res) Data() gjson.Result {
	if r.Raw == "" {
		return gjson.Result{}
	}
	return gjson.Get(r.Raw, "data")
}

// OK reports whether the device flagged the operation as successful
//
// For JSON responses this is the envelope's "status" field; for binary
// responses any non-empty payload counts as success.
func (r Res) OK() bool {
	if r.Mimetype == MimetypeJSON {
		return gjson.Get(r.Raw, "status").Bool()
	}
	return len(r.Content) > 0
}

// GetValue retrieves a value from the response body using a gjson path
//
// Example paths:
//   - "data" - the payload
//   - "data.sip-ip" - one field of a retrieved object
//   - "data.#" - number of elements in a list response
//
// Returns gjson.Result which can be converted to specific types:
//   - result.String() for string values
//   - result.Int() for integer values
//   - result.Array() for array values
func (r Res) GetValue(path string) gjson.Result {
	if r.Raw == "" {
		return gjson.Result{}
	}
	return gjson.Get(r.Raw, path)
}

// JSON returns the raw response body. This is useful for debugging, logging,
// or custom parsing. Returns an empty string for binary responses.
func (r Res) JSON() string {
	return r.Raw
}
