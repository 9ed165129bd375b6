// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/sjson"
)

// Body provides a fluent interface for building JSON payloads using sjson
// for path-based manipulation.
//
// The Body builder tracks errors internally to enable method chaining while
// providing error checking through String() or Err() methods.
//
// Example:
//
//	body := safe.Body{}.
//	    Set("sip-ip", "10.0.0.5").
//	    Set("sip-port", 5060).
//	    Set("display-name", "branch office")
//
//	payload, err := body.String()
//	if err != nil {
//	    log.Fatal(err)
//	}
type Body struct {
	// str contains the JSON string being built
	str string
	// err tracks the first error encountered during building
	err error
}

// Set sets a value at the specified JSON path and returns a new Body
//
// The path uses sjson dot notation for nested fields. The value can be any
// type that sjson supports (string, number, bool, etc.).
//
// If an error occurs, the error is stored and returned by String() or Err().
// Once an error occurs, all subsequent operations are no-ops that preserve
// the error.
//
// Returns the Body for method chaining.
func (b Body) Set(path string, value any) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.Set(b.str, path, value)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Set(%q): %w", path, err)}
	}
	return Body{str: result, err: nil}
}

// SetAll sets every entry of the given map on the body, in sorted key order
// so the resulting JSON is deterministic.
//
// Keys are treated as literal field names: dots and wildcards have no sjson
// path meaning, so wire tokens such as "dns/1" stay single fields.
//
// Example:
//
//	body := safe.Body{}.SetAll(map[string]any{
//	    "sip-ip":   "10.0.0.5",
//	    "sip-port": 5060,
//	})
//
// Returns the Body for method chaining.
func (b Body) SetAll(fields map[string]any) Body {
	if b.err != nil {
		return b
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		result, err := sjson.Set(b.str, escapeFieldName(key), fields[key])
		if err != nil {
			return Body{str: b.str, err: fmt.Errorf("SetAll(%q): %w", key, err)}
		}
		b.str = result
	}
	return b
}

// escapeFieldName escapes sjson path metacharacters so a wire token is
// written as a single literal key
func escapeFieldName(name string) string {
	var builder strings.Builder
	builder.Grow(len(name))
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '.', '*', '?', '\\', '|', '#', '@':
			builder.WriteByte('\\')
		}
		builder.WriteByte(name[i])
	}
	return builder.String()
}

// Delete removes a value at the specified JSON path and returns a new Body
//
// If an error occurs, the error is stored and returned by String() or Err().
//
// Returns the Body for method chaining.
func (b Body) Delete(path string) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.Delete(b.str, path)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Delete(%q): %w", path, err)}
	}
	return Body{str: result, err: nil}
}

// String returns the JSON string representation and any error encountered
// during building
//
// Example:
//
//	body := safe.Body{}.Set("display-name", "trunk1")
//	payload, err := body.String()
//	if err != nil {
//	    log.Fatal(err)
//	}
func (b Body) String() (string, error) {
	return b.str, b.err
}

// Err returns any error that occurred during the building process
//
// This method allows checking for errors without retrieving the string value.
func (b Body) Err() error {
	return b.err
}

// Res returns the JSON string for further processing with gjson
//
// If an error occurred during building, this returns an empty string. Use
// Err() or String() to check for errors.
func (b Body) Res() string {
	if b.err != nil {
		return ""
	}
	return b.str
}

// Bytes returns the JSON byte slice representation and any error encountered
// during building
func (b Body) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return []byte(b.str), nil
}
