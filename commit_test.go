// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/tidwall/gjson"
)

// testSpecStepwise is a specification for firmware without smartapply: the
// commit workflow has to fall back to reload or stop/apply/start.
const testSpecStepwise = `{
	"sip": {
		"name": "SIP",
		"object": {
			"profile": {
				"name": "SIP Profile",
				"class": {
					"sip-ip": {"type": "text", "rules": "required"},
					"sip-port": {"type": "text"}
				},
				"methods": {
					"create": {"name": "Create", "request": "POST"},
					"retrieve": {"name": "Retrieve", "request": "GET"},
					"update": {"name": "Update", "request": "POST"},
					"delete": {"name": "Delete", "request": "POST"},
					"list": {"name": "List", "request": "GET"}
				}
			}
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
					"reload": {"name": "Reload", "request": "POST"},
					"apply": {"name": "Apply", "request": "POST"}
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

// TestChangeSetStaging tests ordering and last-write-wins semantics
func TestChangeSetStaging(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())
	profiles := navigateProfiles(t, client)

	external := profiles.Item("external")
	internal := profiles.Item("internal")

	if err := external.SetAttr("sip-port", 5080); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := internal.SetAttr("sip-ip", "10.0.0.9"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := external.SetAttr("sip-port", 5090); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Re-staging does not reorder entities
	pending := client.Pending()
	if len(pending) != 2 || pending[0] != "sip/profile/external" || pending[1] != "sip/profile/internal" {
		t.Errorf("Expected first-staged order, got %v", pending)
	}

	staged := client.changes.staged("sip/profile/external")
	if got := staged["sip-port"]; got != 5090 {
		t.Errorf("Expected last write 5090, got %v", got)
	}
}

// commitServer mocks the device side of the commit workflow and records the
// API requests it serves
type commitServer struct {
	t *testing.T

	// calls records "METHOD path" in arrival order
	calls []string

	// statusPayloads are returned by consecutive status requests
	statusPayloads []string

	// updateBodies records the payloads of update requests
	updateBodies []string
}

func (s *commitServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls = append(s.calls, r.Method+" "+r.URL.Path)

	switch {
	case r.URL.Path == "/SAFe/sng_rest/api/status/nsc/configuration":
		payload := `{"modified":false}`
		if len(s.statusPayloads) > 0 {
			payload = s.statusPayloads[0]
			s.statusPayloads = s.statusPayloads[1:]
		}
		writeEnvelope(w, payload)
	case r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			s.updateBodies = append(s.updateBodies, string(body))
		}
		writeEnvelope(w, `{}`)
	default:
		s.t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

// TestCommitSmartApply tests the single-step apply on newer firmware
func TestCommitSmartApply(t *testing.T) {
	server := &commitServer{t: t}
	client := newTestClient(t, server)
	profiles := navigateProfiles(t, client)

	profile := profiles.Item("external")
	if err := profile.SetAttr("sip-port", 5080); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := client.Commit(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	want := []string{
		"POST /SAFe/sng_rest/api/update/sip/profile/external",
		"POST /SAFe/sng_rest/api/smartapply/nsc/configuration",
		"GET /SAFe/sng_rest/api/status/nsc/configuration",
	}
	if len(server.calls) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, server.calls)
	}
	for i, call := range want {
		if server.calls[i] != call {
			t.Errorf("Expected call %d to be %s, got %s", i, call, server.calls[i])
		}
	}

	if len(server.updateBodies) != 1 {
		t.Fatalf("Expected 1 update body, got %d", len(server.updateBodies))
	}
	if got := gjson.Get(server.updateBodies[0], "sip-port").Int(); got != 5080 {
		t.Errorf("Expected staged value in update, got: %s", server.updateBodies[0])
	}

	if got := client.Pending(); len(got) != 0 {
		t.Errorf("Expected empty change-set after commit, got %v", got)
	}
	if profile.State() == StateDirty {
		t.Error("Expected proxy no longer dirty after commit")
	}
}

// TestCommitReload tests the fallback reload path on older firmware
func TestCommitReload(t *testing.T) {
	server := &commitServer{t: t, statusPayloads: []string{
		`{"modified":true,"can_reload":true}`,
		`{"modified":false}`,
	}}
	client := newTestClient(t, server, SpecFromBytes([]byte(testSpecStepwise)))

	if err := client.Commit(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	want := []string{
		"GET /SAFe/sng_rest/api/status/nsc/configuration",
		"POST /SAFe/sng_rest/api/reload/nsc/configuration",
		"GET /SAFe/sng_rest/api/status/nsc/configuration",
	}
	if fmt.Sprint(server.calls) != fmt.Sprint(want) {
		t.Errorf("Expected calls %v, got %v", want, server.calls)
	}
}

// TestCommitRestart tests the stop/apply/start sequence when a reload cannot
// cover the pending changes
func TestCommitRestart(t *testing.T) {
	server := &commitServer{t: t, statusPayloads: []string{
		`{"modified":true,"can_reload":false}`,
		`{"modified":false}`,
	}}
	client := newTestClient(t, server, SpecFromBytes([]byte(testSpecStepwise)))

	if err := client.Commit(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	want := []string{
		"GET /SAFe/sng_rest/api/status/nsc/configuration",
		"POST /SAFe/sng_rest/api/stop/nsc/service",
		"POST /SAFe/sng_rest/api/apply/nsc/configuration",
		"POST /SAFe/sng_rest/api/start/nsc/service",
		"GET /SAFe/sng_rest/api/status/nsc/configuration",
	}
	if fmt.Sprint(server.calls) != fmt.Sprint(want) {
		t.Errorf("Expected calls %v, got %v", want, server.calls)
	}
}

// TestCommitIncomplete tests that leftover modified state is an error
func TestCommitIncomplete(t *testing.T) {
	server := &commitServer{t: t, statusPayloads: []string{
		`{"modified":true,"restart":{"items":[{"module":"sip","status":"restart","description":"profile changed"}]}}`,
	}}
	client := newTestClient(t, server)

	err := client.Commit(context.Background())
	var incompleteErr *CommitIncompleteError
	if !errors.As(err, &incompleteErr) {
		t.Fatalf("Expected CommitIncompleteError, got %T: %v", err, err)
	}
	if len(incompleteErr.Messages) != 1 {
		t.Fatalf("Expected 1 pending message, got %d", len(incompleteErr.Messages))
	}
	if incompleteErr.Messages[0].Module != "sip" {
		t.Errorf("Expected module sip, got %s", incompleteErr.Messages[0].Module)
	}
}

// TestCommitFlushFailureKeepsChanges tests that a rejected update leaves the
// failing entity staged
func TestCommitFlushFailureKeepsChanges(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", MimetypeJSON)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid value"}`)
	})
	client := newTestClient(t, handler)
	profiles := navigateProfiles(t, client)

	if err := profiles.Item("external").SetAttr("sip-port", 99999); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	err := client.Commit(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}

	if got := client.Pending(); len(got) != 1 {
		t.Errorf("Expected failing entity to stay staged, got %v", got)
	}
}

// TestChangelog tests pending-change reporting without applying
func TestChangelog(t *testing.T) {
	server := &commitServer{t: t, statusPayloads: []string{
		`{"modified":true,
		  "reload":{"items":[{"module":"sip","status":"reload","description":"profile changed"}]},
		  "restart":{"items":[{"module":"nsc","status":"restart","description":"core changed"}]}}`,
	}}
	client := newTestClient(t, server)

	messages, err := client.Changelog(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if messages[0].Module != "sip" || messages[0].Status != "reload" {
		t.Errorf("Expected sip reload first, got %+v", messages[0])
	}
	if messages[1].Module != "nsc" || messages[1].Status != "restart" {
		t.Errorf("Expected nsc restart second, got %+v", messages[1])
	}
}

// TestParseStatusMessages tests both status payload generations
func TestParseStatusMessages(t *testing.T) {
	t.Run("sectioned format", func(t *testing.T) {
		data := gjson.Parse(`{
			"modified": true,
			"reload": {"items": [{"module": "sip", "status": "reload", "description": "profile changed"}]},
			"apply": {"items": [{"module": "dns", "description": "server changed"}]}
		}`)

		messages := parseStatusMessages(data)
		if len(messages) != 2 {
			t.Fatalf("Expected 2 messages, got %d", len(messages))
		}
		if messages[0].Status != "reload" || messages[0].Description != "profile changed" {
			t.Errorf("Unexpected first message: %+v", messages[0])
		}
		// Missing status falls back to the section name
		if messages[1].Status != "apply" {
			t.Errorf("Expected section fallback apply, got %s", messages[1].Status)
		}
	})

	t.Run("flat legacy format", func(t *testing.T) {
		data := gjson.Parse(`{
			"modified": true,
			"reloadable": {
				"sip": {"configuration": "changed"},
				"dns": {"configuration": "changed"}
			}
		}`)

		messages := parseStatusMessages(data)
		if len(messages) != 2 {
			t.Fatalf("Expected 2 messages, got %d", len(messages))
		}
		if messages[0].Module != "sip" || messages[0].Status != "changed" {
			t.Errorf("Unexpected first message: %+v", messages[0])
		}
		if messages[0].Description != "sip" {
			t.Errorf("Expected description defaulted to module, got %s", messages[0].Description)
		}
	})

	t.Run("clean status", func(t *testing.T) {
		if got := parseStatusMessages(gjson.Parse(`{"modified": false}`)); len(got) != 0 {
			t.Errorf("Expected no messages, got %v", got)
		}
	})
}
