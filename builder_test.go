// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"errors"
	"strings"
	"testing"
)

// buildTestSchema parses and builds the shared test specification
func buildTestSchema(t *testing.T) *Schema {
	t.Helper()
	root, _, err := ParseSpec([]byte(testSpec))
	if err != nil {
		t.Fatalf("ParseSpec failed: %v", err)
	}
	schema, err := Build(root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return schema
}

// TestBuildMemberTables tests sanitized member name derivation
func TestBuildMemberTables(t *testing.T) {
	schema := buildTestSchema(t)

	sip, ok := schema.root.children["sip"]
	if !ok {
		t.Fatal("Expected sip module in root children")
	}
	profile, ok := sip.children["profile"]
	if !ok {
		t.Fatal("Expected profile under sip")
	}

	wantAttrs := []string{"sip_ip", "sip_port", "display_name"}
	if len(profile.attrNames) != len(wantAttrs) {
		t.Fatalf("Expected %d attributes, got %d", len(wantAttrs), len(profile.attrNames))
	}
	for i, want := range wantAttrs {
		if profile.attrNames[i] != want {
			t.Errorf("Expected attribute %s at %d, got %s", want, i, profile.attrNames[i])
		}
	}

	// CRUD verbs get dedicated methods, only extras become callables
	wantExtras := []string{"start", "status"}
	if len(profile.extraNames) != len(wantExtras) {
		t.Fatalf("Expected extras %v, got %v", wantExtras, profile.extraNames)
	}
	for i, want := range wantExtras {
		if profile.extraNames[i] != want {
			t.Errorf("Expected extra %s at %d, got %s", want, i, profile.extraNames[i])
		}
	}

	if len(profile.required) != 1 || profile.required[0] != "sip-ip" {
		t.Errorf("Expected required [sip-ip], got %v", profile.required)
	}
}

// TestBuildAttrWire tests sanitized and wire-token attribute resolution
func TestBuildAttrWire(t *testing.T) {
	schema := buildTestSchema(t)
	profile := schema.root.children["sip"].children["profile"]

	tests := []struct {
		name     string
		lookup   string
		wantWire string
		wantOK   bool
	}{
		{name: "sanitized name", lookup: "sip_ip", wantWire: "sip-ip", wantOK: true},
		{name: "wire token accepted", lookup: "sip-ip", wantWire: "sip-ip", wantOK: true},
		{name: "unknown name", lookup: "bogus", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, ok := profile.attrWire(tt.lookup)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && wire != tt.wantWire {
				t.Errorf("Expected wire %s, got %s", tt.wantWire, wire)
			}
		})
	}
}

// TestBuildOriginalName tests reverse lookup across member categories
func TestBuildOriginalName(t *testing.T) {
	schema := buildTestSchema(t)
	sip := schema.root.children["sip"]
	profile := sip.children["profile"]

	tests := []struct {
		name      string
		schema    *nodeSchema
		sanitized string
		want      string
		wantOK    bool
	}{
		{name: "attribute", schema: profile, sanitized: "sip_ip", want: "sip-ip", wantOK: true},
		{name: "extra method", schema: profile, sanitized: "start", want: "start", wantOK: true},
		{name: "child", schema: sip, sanitized: "profile", want: "profile", wantOK: true},
		{name: "unknown", schema: profile, sanitized: "nope", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.schema.originalName(tt.sanitized)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Errorf("Expected original %s, got %s", tt.want, got)
			}
		})
	}
}

// TestBuildCollision tests that colliding sanitized names abort the build
func TestBuildCollision(t *testing.T) {
	spec := `{
		"mod": {
			"name": "Module",
			"object": {
				"thing": {
					"name": "Thing",
					"class": {
						"a-b": {"type": "text"},
						"a.b": {"type": "text"}
					},
					"methods": {
						"retrieve": {"name": "Retrieve", "request": "GET"},
						"update": {"name": "Update", "request": "POST"}
					}
				}
			}
		}
	}`

	root, _, err := ParseSpec([]byte(spec))
	if err != nil {
		t.Fatalf("ParseSpec failed: %v", err)
	}

	_, err = Build(root)
	if err == nil {
		t.Fatal("Expected build to fail on collision")
	}

	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Expected BuildError, got %T: %v", err, err)
	}

	// The error names both colliding tokens and the shared result
	for _, token := range []string{"a-b", "a.b", "a_b"} {
		if !strings.Contains(buildErr.Reason, token) {
			t.Errorf("Expected reason to mention %q, got: %s", token, buildErr.Reason)
		}
	}
}

// TestBuildUnknownRequestKind tests rejection of extra methods with request
// kinds other than GET or POST
func TestBuildUnknownRequestKind(t *testing.T) {
	spec := `{
		"mod": {
			"name": "Module",
			"methods": {
				"weird": {"name": "Weird", "request": "PATCH"}
			}
		}
	}`

	root, _, err := ParseSpec([]byte(spec))
	if err != nil {
		t.Fatalf("ParseSpec failed: %v", err)
	}

	_, err = Build(root)
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Expected BuildError, got %T: %v", err, err)
	}
	if !strings.Contains(buildErr.Reason, "weird") {
		t.Errorf("Expected reason to mention the method, got: %s", buildErr.Reason)
	}
}

// TestBuildNilRoot tests rejection of a missing tree
func TestBuildNilRoot(t *testing.T) {
	_, err := Build(nil)
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Expected BuildError, got %T: %v", err, err)
	}
}
