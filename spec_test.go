// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"errors"
	"testing"
)

// testSpec is a trimmed device specification with the shapes the parser has
// to handle: nested objects, attribute rules, extra methods and array-form
// descriptions.
const testSpec = `{
	"sip": {
		"name": "SIP",
		"description": ["Session Initiation", "Protocol"],
		"object": {
			"profile": {
				"name": "SIP Profile",
				"class": {
					"sip-ip": {"type": "text", "label": "SIP IP", "rules": "required|valid_ip"},
					"sip-port": {"type": "text", "label": "SIP Port", "rules": "integer"},
					"display-name": {"type": "text", "label": "Display Name"}
				},
				"methods": {
					"create": {"name": "Create", "request": "POST"},
					"retrieve": {"name": "Retrieve", "request": "GET"},
					"update": {"name": "Update", "request": "POST"},
					"delete": {"name": "Delete", "request": "POST"},
					"list": {"name": "List", "request": "GET"},
					"start": {"name": "Start", "request": "POST"},
					"status": {"name": "Status", "request": "GET"}
				}
			}
		},
		"methods": {
			"retrieve": {"name": "Retrieve", "request": "GET"},
			"update": {"name": "Update", "request": "POST"}
		}
	},
	"nsc": {
		"name": "NSC",
		"object": {
			"configuration": {
				"name": "Configuration",
				"singleton": true,
				"methods": {
					"retrieve": {"name": "Retrieve", "request": "GET"},
					"update": {"name": "Update", "request": "POST"},
					"status": {"name": "Status", "request": "GET"},
					"smartapply": {"name": "Smart Apply", "request": "POST"}
				}
			},
			"service": {
				"name": "Service",
				"singleton": true,
				"methods": {
					"retrieve": {"name": "Retrieve", "request": "GET"},
					"update": {"name": "Update", "request": "POST"},
					"start": {"name": "Start", "request": "POST"},
					"stop": {"name": "Stop", "request": "POST"}
				}
			}
		}
	}
}`

// TestParseSpec tests parsing of a well-formed specification
func TestParseSpec(t *testing.T) {
	root, warnings, err := ParseSpec([]byte(testSpec))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("Expected no warnings, got: %v", warnings)
	}

	if len(root.Children) != 2 {
		t.Fatalf("Expected 2 modules, got %d", len(root.Children))
	}

	sip := root.Children[0]
	if sip.Tag != "sip" {
		t.Errorf("Expected first module sip, got %s", sip.Tag)
	}
	if !sip.Singleton {
		t.Error("Expected top-level module to be a singleton")
	}
	if sip.Description != "Session Initiation\nProtocol" {
		t.Errorf("Expected joined description, got %q", sip.Description)
	}

	if len(sip.Children) != 1 {
		t.Fatalf("Expected 1 child of sip, got %d", len(sip.Children))
	}
	profile := sip.Children[0]
	if profile.Tag != "profile" {
		t.Errorf("Expected child profile, got %s", profile.Tag)
	}
	if profile.Singleton {
		t.Error("Expected profile to be a collection type")
	}
	if !profile.IsObject() {
		t.Error("Expected profile to be an object (retrieve+update)")
	}
}

// TestParseSpecAttributes tests attribute definitions and the required rule
func TestParseSpecAttributes(t *testing.T) {
	root, _, err := ParseSpec([]byte(testSpec))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	profile := root.Children[0].Children[0]
	if len(profile.Attributes) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(profile.Attributes))
	}

	tests := []struct {
		name     string
		index    int
		wantName string
		wantReq  bool
	}{
		{name: "sip-ip is required", index: 0, wantName: "sip-ip", wantReq: true},
		{name: "sip-port is optional", index: 1, wantName: "sip-port", wantReq: false},
		{name: "display-name is optional", index: 2, wantName: "display-name", wantReq: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := profile.Attributes[tt.index]
			if attr.Name != tt.wantName {
				t.Errorf("Expected attribute %s, got %s", tt.wantName, attr.Name)
			}
			if attr.Required != tt.wantReq {
				t.Errorf("Expected required=%v for %s", tt.wantReq, attr.Name)
			}
		})
	}
}

// TestParseSpecMethods tests method declarations
func TestParseSpecMethods(t *testing.T) {
	root, _, err := ParseSpec([]byte(testSpec))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	profile := root.Children[0].Children[0]
	start, ok := profile.Method("start")
	if !ok {
		t.Fatal("Expected start method to be declared")
	}
	if start.Request != "POST" {
		t.Errorf("Expected start to be POST, got %s", start.Request)
	}

	if _, ok := profile.Method("reboot"); ok {
		t.Error("Expected reboot to be undeclared")
	}
}

// TestParseSpecSkipsUnknownShapes tests that unrecognized subtrees produce
// warnings instead of failing the parse
func TestParseSpecSkipsUnknownShapes(t *testing.T) {
	spec := `{
		"sip": {
			"name": "SIP",
			"object": {
				"profile": {
					"name": "Profile",
					"methods": {
						"retrieve": {"name": "Retrieve", "request": "GET"},
						"update": {"name": "Update", "request": "POST"}
					}
				},
				"broken": 42
			}
		},
		"junk": "not an object"
	}`

	root, warnings, err := ParseSpec([]byte(spec))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(root.Children) != 1 {
		t.Fatalf("Expected 1 module, got %d", len(root.Children))
	}
	if len(root.Children[0].Children) != 1 {
		t.Fatalf("Expected 1 child under sip, got %d", len(root.Children[0].Children))
	}

	if len(warnings) != 2 {
		t.Fatalf("Expected 2 warnings, got %d: %v", len(warnings), warnings)
	}
	if warnings[0].Path[len(warnings[0].Path)-1] != "broken" {
		t.Errorf("Expected first warning for broken, got %v", warnings[0])
	}
	if warnings[1].Path[0] != "junk" {
		t.Errorf("Expected second warning for junk, got %v", warnings[1])
	}
}

// TestParseSpecMalformed tests rejection of input that is not a JSON object
// tree
func TestParseSpecMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty input", raw: ""},
		{name: "invalid json", raw: `{"sip":`},
		{name: "root is an array", raw: `["sip"]`},
		{name: "root is a scalar", raw: `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseSpec([]byte(tt.raw))
			if err == nil {
				t.Fatal("Expected error")
			}
			var malformed *MalformedSpecError
			if !errors.As(err, &malformed) {
				t.Errorf("Expected MalformedSpecError, got %T: %v", err, err)
			}
		})
	}
}
