// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"testing"
	"time"
)

// TestOptions tests that functional options apply to the client
func TestOptions(t *testing.T) {
	logger := NewDefaultLogger(LogLevelError)
	client, err := NewClient("device",
		Token("secret"),
		Scheme("https"),
		Port(8443),
		VerifyCertificate(false),
		ConnectTimeout(5*time.Second),
		OperationTimeout(10*time.Second),
		MaxRetries(5),
		BackoffMinDelay(2*time.Second),
		BackoffMaxDelay(30*time.Second),
		BackoffDelayFactor(3),
		WithLogger(logger),
		WithPrettyPrintLogs(false),
	)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if client.token != "secret" {
		t.Error("Expected token to be set")
	}
	if client.Scheme != "https" || client.Port != 8443 {
		t.Errorf("Expected https:8443, got %s:%d", client.Scheme, client.Port)
	}
	if client.VerifyCertificate {
		t.Error("Expected certificate verification disabled")
	}
	if client.ConnectTimeout != 5*time.Second || client.OperationTimeout != 10*time.Second {
		t.Error("Expected timeouts applied")
	}
	if client.MaxRetries != 5 {
		t.Errorf("Expected 5 retries, got %d", client.MaxRetries)
	}
	if client.logger != logger {
		t.Error("Expected custom logger applied")
	}
	if client.prettyPrintLogs {
		t.Error("Expected pretty printing disabled")
	}
}

// TestWithLoggerNil tests that a nil logger keeps the default
func TestWithLoggerNil(t *testing.T) {
	client, err := NewClient("device", WithLogger(nil))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if client.logger == nil {
		t.Error("Expected default logger kept for nil argument")
	}
}

// TestTimeoutModifier tests the per-request timeout modifier
func TestTimeoutModifier(t *testing.T) {
	req := &Req{}
	Timeout(30 * time.Second)(req)
	if req.Timeout != 30*time.Second {
		t.Errorf("Expected 30s, got %v", req.Timeout)
	}
}
