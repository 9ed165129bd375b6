// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// MalformedSpecError indicates the device specification could not be
// interpreted as a well-formed tree. No partial object model is built when
// this error is returned; the specification version is unusable.
type MalformedSpecError struct {
	// Path locates the offending node within the specification tree
	Path []string

	// Reason is a human-readable description of the problem
	Reason string
}

// Error implements the error interface
func (e *MalformedSpecError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("safe: malformed specification at %s: %s", strings.Join(e.Path, "/"), e.Reason)
	}
	return fmt.Sprintf("safe: malformed specification: %s", e.Reason)
}

// BuildError indicates the object model could not be built from a parsed
// specification, either because two distinct schema tokens sanitize to the
// same member name or because a node references an undeclared operation kind.
// This signals a genuinely incompatible schema version and is fatal for the
// handle.
type BuildError struct {
	// Path locates the offending node within the specification tree
	Path []string

	// Reason is a human-readable description of the problem
	Reason string
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("safe: build failed at %s: %s", strings.Join(e.Path, "/"), e.Reason)
	}
	return fmt.Sprintf("safe: build failed: %s", e.Reason)
}

// UnknownAttributeError indicates a caller referenced an attribute or child
// name that is absent from the declared schema of an object. It is always
// detected locally, before any network call.
type UnknownAttributeError struct {
	// Object is the schema tag of the object being accessed
	Object string

	// Name is the unknown member name as given by the caller
	Name string
}

// Error implements the error interface
func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("safe: object %q has no attribute %q", e.Object, e.Name)
}

// UnknownMethodError indicates a caller invoked a method name that is absent
// from the declared schema of an object. It is always detected locally,
// before any network call.
type UnknownMethodError struct {
	// Object is the schema tag of the object being accessed
	Object string

	// Name is the unknown method name as given by the caller
	Name string
}

// Error implements the error interface
func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("safe: object %q has no method %q", e.Object, e.Name)
}

// MissingRequiredFieldError indicates a create call did not supply every
// attribute the schema marks as required. The check runs locally, before the
// request is forwarded to the device. Field values are not validated; value
// constraints are the device's responsibility.
type MissingRequiredFieldError struct {
	// Object is the schema tag of the collection being created into
	Object string

	// Fields lists the missing required field names (wire tokens), in
	// schema declaration order
	Fields []string
}

// Error implements the error interface
func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("safe: create %q: missing required fields: %s", e.Object, strings.Join(e.Fields, ", "))
}

// APIError is an opaque pass-through of an error reported by the device or
// its REST transport. The message preserves the device's own diagnostic
// detail verbatim, including precondition violations this library does not
// itself understand (for example "entity is in use").
type APIError struct {
	// StatusCode is the HTTP status code of the failed request, or 0 when
	// the failure happened below the HTTP layer
	StatusCode int

	// Message is the device-reported error text
	Message string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Reason describes one cause reported by the device for a failed
// configuration apply.
type Reason struct {
	// Name is the display name of the offending object, if reported
	Name string

	// Object is the schema type of the offending object
	Object string

	// Description is the device's explanation
	Description string

	// Module is the module the offending object belongs to
	Module string

	// URL points at the device page for the offending object, if reported
	URL string
}

// String returns the device's explanation
func (r Reason) String() string {
	return r.Description
}

// CommitFailedError indicates the device rejected a configuration apply and
// reported one or more reasons.
type CommitFailedError struct {
	// StatusCode is the HTTP status code of the failed request
	StatusCode int

	// Reasons lists the device-reported causes
	Reasons []Reason
}

// Error implements the error interface
func (e *CommitFailedError) Error() string {
	descriptions := make([]string, len(e.Reasons))
	for i, reason := range e.Reasons {
		descriptions[i] = reason.Description
	}
	return "safe: apply changes failed: " + strings.Join(descriptions, "\n")
}

// StatusMessage describes one pending configuration change reported by the
// device's configuration status operation.
type StatusMessage struct {
	// Module is the module with pending changes
	Module string

	// Status is the action still required (for example "reload" or "restart")
	Status string

	// Description is a human-readable summary
	Description string
}

// String combines the status and description
func (s StatusMessage) String() string {
	return s.Status + " " + s.Description
}

// CommitIncompleteError indicates a commit workflow finished but the device
// still reports modified, unapplied configuration.
type CommitIncompleteError struct {
	// Messages lists the changes still pending on the device
	Messages []StatusMessage
}

// Error implements the error interface
func (e *CommitIncompleteError) Error() string {
	messages := make([]string, len(e.Messages))
	for i, message := range e.Messages {
		messages[i] = message.String()
	}
	return "safe: failed to apply all changes: " + strings.Join(messages, "\n")
}

// parseAPIError interprets a JSON error payload returned by the device.
//
// Beware the bizarre formatting of error messages. The error field can be,
// infuriatingly, one of several possible shapes:
//
//   - an actual, raw, unwrapped error message
//   - an error key with a raw message
//   - an error key with a list of strings that need to be joined
//   - an error key holding an object with a "message" or "msg" key
//   - an error key holding nested objects mapping paths to messages
//   - an error key holding apply-failure reasons or checklist items
//
// Apply failures are returned as *CommitFailedError carrying the reported
// reasons; everything else becomes an *APIError with the device's message
// preserved verbatim.
func parseAPIError(statusCode int, body string) error {
	data := gjson.Parse(body)

	// A bare string body is itself the error message
	if data.Type == gjson.String {
		return &APIError{StatusCode: statusCode, Message: data.String()}
	}

	errField := data.Get("error")
	var message string

	switch {
	case errField.IsArray():
		parts := []string{}
		errField.ForEach(func(_, value gjson.Result) bool {
			parts = append(parts, value.String())
			return true
		})
		message = strings.Join(parts, "\n")

	case errField.IsObject():
		if reasons := errField.Get("reason"); reasons.IsArray() {
			return &CommitFailedError{StatusCode: statusCode, Reasons: parseReasons(reasons)}
		}
		if items := errField.Get("status.checklist.items"); items.IsArray() {
			return &CommitFailedError{StatusCode: statusCode, Reasons: parseReasons(items)}
		}

		obj := errField.Get("obj")
		message = errField.Get("message").String()
		if message == "" {
			message = errField.Get("msg").String()
		}
		if message == "" {
			message = strings.Join(flattenError(errField, ""), "\n")
		} else if obj.IsArray() && len(obj.Array()) > 0 {
			first := obj.Array()[0]
			message = fmt.Sprintf("In use by %s '%s'",
				first.Get("obj_type").String(), first.Get("obj_name").String())
		}

	case errField.Exists():
		message = errField.String()
	}

	if message == "" {
		message = errField.Raw
	}

	name := data.Get("name").String()
	switch {
	case message == "Conflict":
		message = fmt.Sprintf("The key '%s' conflicts with the system", name)
	case name != "":
		message = fmt.Sprintf("Error for %s: %s", name, message)
	}

	return &APIError{StatusCode: statusCode, Message: message}
}

// parseReasons converts a device reason list into Reason values
func parseReasons(reasons gjson.Result) []Reason {
	parsed := []Reason{}
	reasons.ForEach(func(_, reason gjson.Result) bool {
		parsed = append(parsed, Reason{
			Name:        reason.Get("obj_name").String(),
			Object:      reason.Get("obj_type").String(),
			Description: reason.Get("description").String(),
			Module:      reason.Get("module").String(),
			URL:         reason.Get("url").String(),
		})
		return true
	})
	return parsed
}

// flattenError walks a nested error object and renders one "path: message"
// line per leaf, preserving document order.
func flattenError(errField gjson.Result, parent string) []string {
	messages := []string{}
	errField.ForEach(func(key, value gjson.Result) bool {
		fullPath := key.String()
		if parent != "" {
			fullPath = parent + "/" + fullPath
		}
		if value.IsObject() {
			messages = append(messages, flattenError(value, fullPath)...)
			return true
		}
		text := value.String()
		if text == "" {
			text = "unknown error"
		}
		messages = append(messages, fullPath+": "+text)
		return true
	})
	return messages
}
