// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import "time"

// Client configuration options using the functional options pattern

// Token sets the API key used for authentication
//
// The token is sent with every request in the X-API-KEY header. Tokens are
// provisioned on the device's web interface.
func Token(token string) func(*Client) {
	return func(c *Client) {
		c.token = token
	}
}

// Scheme sets the URL scheme, "http" or "https" (default: "http")
func Scheme(scheme string) func(*Client) {
	return func(c *Client) {
		c.Scheme = scheme
	}
}

// Port sets the REST port (default: 80)
func Port(port int) func(*Client) {
	return func(c *Client) {
		c.Port = port
	}
}

// VerifyCertificate enables or disables TLS certificate verification for
// https connections (default: true)
//
// WARNING: Disabling certificate verification makes the connection
// vulnerable to Man-in-the-Middle attacks. Only use this in testing
// environments where security is not a concern.
//
// Example:
//
//	client, _ := safe.NewClient("192.168.1.1",
//	    safe.Token("secret"),
//	    safe.Scheme("https"),
//	    safe.VerifyCertificate(false))  // Insecure, use only for testing
func VerifyCertificate(verify bool) func(*Client) {
	return func(c *Client) {
		c.VerifyCertificate = verify
	}
}

// ConnectTimeout sets the connection timeout (default: 30s)
func ConnectTimeout(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.ConnectTimeout = duration
	}
}

// OperationTimeout sets the per-request timeout (default: 15s)
func OperationTimeout(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.OperationTimeout = duration
	}
}

// MaxRetries sets the maximum number of retry attempts for transient errors
// (default: 3)
func MaxRetries(retries int) func(*Client) {
	return func(c *Client) {
		c.MaxRetries = retries
	}
}

// BackoffMinDelay sets the minimum backoff delay (default: 1s)
func BackoffMinDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMinDelay = duration
	}
}

// BackoffMaxDelay sets the maximum backoff delay (default: 60s)
func BackoffMaxDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMaxDelay = duration
	}
}

// BackoffDelayFactor sets the backoff multiplication factor (default: 2.0)
func BackoffDelayFactor(factor float64) func(*Client) {
	return func(c *Client) {
		c.BackoffDelayFactor = factor
	}
}

// SpecFromBytes supplies the device specification directly instead of
// fetching it from the doc section on first use
//
// This is useful for offline work against a dumped specification, and for
// pinning a known specification version regardless of what the device
// serves.
//
// Example:
//
//	raw, _ := os.ReadFile("nsc-2.2.json")
//	client, _ := safe.NewClient("192.168.1.1",
//	    safe.Token("secret"),
//	    safe.SpecFromBytes(raw))
func SpecFromBytes(raw []byte) func(*Client) {
	return func(c *Client) {
		c.specSource = raw
	}
}

// WithLogger configures a custom logger for the client
//
// By default, the client uses NoOpLogger which discards all log messages.
// Use this option to enable logging with DefaultLogger or a custom logger.
//
// All JSON content logged at Debug level is automatically redacted to remove
// sensitive data (passwords, secrets, keys, tokens).
//
// Example:
//
//	logger := safe.NewDefaultLogger(safe.LogLevelInfo)
//	client, _ := safe.NewClient("192.168.1.1",
//	    safe.Token("secret"),
//	    safe.WithLogger(logger))
func WithLogger(logger Logger) func(*Client) {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrettyPrintLogs enables/disables JSON pretty printing in logs
//
// When enabled, JSON content in debug logs is formatted for better
// readability. This only affects Debug-level log output. Disabling pretty
// printing can improve performance when high-frequency operations are
// logged.
func WithPrettyPrintLogs(enabled bool) func(*Client) {
	return func(c *Client) {
		c.prettyPrintLogs = enabled
	}
}

// Request modifiers for individual operations

// Timeout returns a request modifier that sets a custom timeout for the
// operation.
//
// This timeout takes precedence over the context deadline and the client's
// OperationTimeout. Use this to set operation-specific timeouts that differ
// from the client's default.
//
// The timeout priority model is:
//  1. Request-specific timeout (this modifier) - highest priority
//  2. Context deadline (if already set) - medium priority
//  3. Client.OperationTimeout - fallback default
//
// Example:
//
//	res, err := client.Get(ctx, builder, "retrieve", nil,
//	    safe.Timeout(30*time.Second))
func Timeout(duration time.Duration) func(*Req) {
	return func(req *Req) {
		req.Timeout = duration
	}
}
