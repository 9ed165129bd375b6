// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Default client configuration values
const (
	DefaultPort               = 80
	DefaultScheme             = "http"
	DefaultMaxRetries         = 3
	DefaultBackoffMinDelay    = 1 * time.Second
	DefaultBackoffMaxDelay    = 60 * time.Second
	DefaultBackoffDelayFactor = 2
	DefaultConnectTimeout     = 30 * time.Second
	DefaultOperationTimeout   = 15 * time.Second
	DefaultVerifyCertificate  = true
	DefaultPrettyPrintLogs    = true
)

// Security limits for JSON processing and logging
const (
	MaxJSONSizeForLogging = 1 * 1024 * 1024 // 1MB limit to prevent ReDoS attacks
	MaxSensitiveFields    = 1000            // Max redaction operations to prevent DoS
)

// Logging message constants
const (
	JSONTooLargeMessage     = "[JSON TOO LARGE FOR LOGGING]"
	JSONTooManySensitiveMsg = "[JSON CONTAINS TOO MANY SENSITIVE FIELDS]"
)

// TransientStatusCodes lists the HTTP status codes that trigger automatic
// retry with exponential backoff
//
// These are typically caused by temporary conditions such as rate limiting,
// a restarting service behind the REST frontend, or an overloaded device.
// Client errors (4xx other than 429) are permanent by definition and are
// never retried.
var TransientStatusCodes = []int{
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// defaultRedactionPatterns contains regex patterns for redacting sensitive
// data in logs
var defaultRedactionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"password"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"secret"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"key"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"community"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"token"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"auth"\s*:\s*"[^"]*"`),
}

// Client represents a connection to a SAFe device
//
// One client owns exactly one object model: the device specification is
// fetched, parsed and built once, on the first call to Root, and shared
// read-only by every proxy navigated from it. Staged attribute writes are
// tracked per client in a change-set that Commit flushes and applies.
type Client struct {
	// httpClient executes REST requests
	httpClient *http.Client

	// mu synchronizes access to the lazily built object model and version
	mu sync.RWMutex

	// Connection parameters
	Host   string
	Port   int
	Scheme string
	token  string // unexported for security

	// TLS options
	VerifyCertificate bool

	// Timeout configuration
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration

	// Retry configuration
	MaxRetries         int
	BackoffMinDelay    time.Duration
	BackoffMaxDelay    time.Duration
	BackoffDelayFactor float64

	// base renders REST URLs for this device
	base URLBuilder

	// specSource optionally supplies the specification offline
	specSource []byte

	// Object model, built once per client
	schema   *Schema
	root     *Object
	warnings []ParseWarning

	// version is probed lazily from the device
	version    Version
	hasVersion bool

	// changes is the per-handle change-set of staged attribute writes
	changes *changeSet

	// Logging configuration
	logger            Logger
	prettyPrintLogs   bool
	redactionPatterns []*regexp.Regexp
}

// NewClient creates a new SAFe client for the given device hostname
//
// The client validates its configuration but performs NO network activity:
// the specification download, parse and object model build happen lazily on
// the first call to Root.
//
// Example:
//
//	client, err := safe.NewClient(
//	    "192.168.1.1",
//	    safe.Token("secret"),
//	    safe.Scheme("https"),
//	    safe.MaxRetries(5),
//	)
//	if err != nil {
//	    log.Fatal(err)  // Configuration error
//	}
//
//	root, err := client.Root(ctx)  // Fetch + parse + build
//
// Returns a configured Client or an error if configuration validation fails.
func NewClient(host string, opts ...func(*Client)) (*Client, error) {
	client := &Client{
		Host:               host,
		Port:               DefaultPort,
		Scheme:             DefaultScheme,
		VerifyCertificate:  DefaultVerifyCertificate,
		ConnectTimeout:     DefaultConnectTimeout,
		OperationTimeout:   DefaultOperationTimeout,
		MaxRetries:         DefaultMaxRetries,
		BackoffMinDelay:    DefaultBackoffMinDelay,
		BackoffMaxDelay:    DefaultBackoffMaxDelay,
		BackoffDelayFactor: DefaultBackoffDelayFactor,
		logger:             &NoOpLogger{},
		prettyPrintLogs:    DefaultPrettyPrintLogs,
		redactionPatterns:  defaultRedactionPatterns,
		changes:            newChangeSet(),
	}

	for _, opt := range opts {
		opt(client)
	}

	if err := client.validateConfig(); err != nil {
		return nil, err
	}

	client.base = NewURLBuilder(client.Scheme, client.Host, client.Port)

	transport := &http.Transport{}
	if client.Scheme == "https" && !client.VerifyCertificate {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // Explicit, documented opt-in
	}
	client.httpClient = &http.Client{
		Transport: transport,
		Timeout:   client.ConnectTimeout,
	}

	client.logger.Info(context.Background(), "SAFe client created",
		"host", client.Host,
		"port", client.Port,
		"scheme", client.Scheme,
		"specification", map[bool]string{true: "supplied", false: "lazy"}[client.specSource != nil])

	return client, nil
}

// validateConfig validates client configuration before any use
//
// Validates:
//   - Host is not empty
//   - Scheme is http or https
//   - Port range (1-65535)
//   - Positive timeouts
//   - Retry params (MaxRetries >= 0, BackoffMaxDelay > BackoffMinDelay > 0)
//   - BackoffDelayFactor >= 1.0
//
// Returns an error if validation fails.
func (c *Client) validateConfig() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("invalid scheme: %q (must be http or https)", c.Scheme)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got: %v", c.ConnectTimeout)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive, got: %v", c.OperationTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got: %d", c.MaxRetries)
	}
	if c.BackoffMinDelay <= 0 {
		return fmt.Errorf("backoff min delay must be positive, got: %v", c.BackoffMinDelay)
	}
	if c.BackoffMaxDelay <= c.BackoffMinDelay {
		return fmt.Errorf("backoff max delay (%v) must be greater than min delay (%v)",
			c.BackoffMaxDelay, c.BackoffMinDelay)
	}
	if c.BackoffDelayFactor < 1.0 {
		return fmt.Errorf("backoff delay factor must be >= 1.0, got: %f", c.BackoffDelayFactor)
	}

	if c.Scheme == "http" {
		c.logger.Warn(context.Background(), "TLS disabled - connection is not encrypted",
			"host", c.Host,
			"recommendation", "Use https for production devices")
	}
	if c.Scheme == "https" && !c.VerifyCertificate {
		c.logger.Warn(context.Background(), "certificate verification disabled",
			"host", c.Host,
			"recommendation", "Use only in testing environments")
	}
	if c.token == "" {
		c.logger.Warn(context.Background(), "no API token configured",
			"host", c.Host,
			"message", "device may reject requests")
	}

	return nil
}

// Root returns the root proxy of the device's object model
//
// On the first call the client fetches the specification from the device's
// doc section (or uses the bytes supplied via SpecFromBytes), parses it,
// builds the schema, and constructs the root proxy. Subsequent calls and all
// navigation from the root reuse the built model without re-fetching or
// re-parsing.
//
// Parse warnings (skipped specification subtrees) are logged at Warn level
// and retained; see Warnings.
//
// Example:
//
//	root, err := client.Root(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sip, err := root.Child("sip")
func (c *Client) Root(ctx context.Context) (*Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.root != nil {
		return c.root, nil
	}

	raw := c.specSource
	if raw == nil {
		c.logger.Info(ctx, "retrieving specification from device", "host", c.Host)
		res, err := c.do(ctx, http.MethodGet, c.base.URL(SectionDoc, ""), "", nil)
		if err != nil {
			return nil, fmt.Errorf("root: failed to fetch specification: %w", err)
		}
		raw = []byte(res.Raw)
	}

	node, warnings, err := ParseSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}
	for _, warning := range warnings {
		c.logger.Warn(ctx, "specification subtree skipped",
			"path", strings.Join(warning.Path, "/"),
			"reason", warning.Reason)
	}

	schema, err := Build(node)
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}

	c.warnings = warnings
	c.schema = schema
	c.root = newObject(c, schema.root, c.base, "")

	c.logger.Info(ctx, "object model built",
		"host", c.Host,
		"modules", len(node.Children),
		"warnings", len(warnings))

	return c.root, nil
}

// Warnings returns the parse warnings recorded while building the object
// model. Returns nil before the first successful Root call.
func (c *Client) Warnings() []ParseWarning {
	c.mu.RLock()
	defer c.mu.RUnlock()

	warnings := make([]ParseWarning, len(c.warnings))
	copy(warnings, c.warnings)
	return warnings
}

// Version returns the product version of the device
//
// The version is probed once (retrieve nsc/version) and cached for the
// lifetime of the client. It gates features that newer firmware added, such
// as server-side search filters.
func (c *Client) Version(ctx context.Context) (Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasVersion {
		return c.version, nil
	}

	res, err := c.do(ctx, http.MethodGet, c.base.URL(SectionAPI, VerbRetrieve, "nsc", "version"), "", nil)
	if err != nil {
		return Version{}, fmt.Errorf("version: %w", err)
	}

	version, err := parseVersion(res.Data())
	if err != nil {
		return Version{}, fmt.Errorf("version: %w", err)
	}

	c.version = version
	c.hasVersion = true

	c.logger.Debug(ctx, "device version probed",
		"host", c.Host,
		"version", version.String())

	return version, nil
}

// Config downloads the device configuration archive from the config section
//
// The response carries a gzip archive in Res.Content.
func (c *Client) Config(ctx context.Context) (Res, error) {
	res, err := c.do(ctx, http.MethodGet, c.base.URL(SectionConfig, ""), "", nil)
	if err != nil {
		return res, fmt.Errorf("config: %w", err)
	}
	return res, nil
}

// Get performs a GET call for the given verb against an object path
//
// The builder carries the object path; extra path segments (for example a
// collection member key) are appended after it. This is the raw escape hatch
// under the proxy layer; most callers should navigate proxies instead.
func (c *Client) Get(ctx context.Context, builder URLBuilder, verb string, path []string, mods ...func(*Req)) (Res, error) {
	req := &Req{}
	for _, mod := range mods {
		mod(req)
	}
	return c.do(ctx, http.MethodGet, builder.URL(SectionAPI, verb, path...), "", req)
}

// Post performs a POST call for the given verb against an object path
//
// The body must be a JSON document (may be empty for bodyless verbs such as
// delete). See Get for the path convention.
func (c *Client) Post(ctx context.Context, builder URLBuilder, verb string, path []string, body string, mods ...func(*Req)) (Res, error) {
	req := &Req{}
	for _, mod := range mods {
		mod(req)
	}
	return c.do(ctx, http.MethodPost, builder.URL(SectionAPI, verb, path...), body, req)
}

// Upload posts a multipart archive upload for an object path
//
// Used by the upload verb some nodes declare (certificate stores, media
// files). The payload is sent as the "archive" form file.
func (c *Client) Upload(ctx context.Context, builder URLBuilder, filename string, payload []byte, mods ...func(*Req)) (Res, error) {
	req := &Req{}
	for _, mod := range mods {
		mod(req)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("archive", filename)
	if err != nil {
		return Res{}, fmt.Errorf("upload: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return Res{}, fmt.Errorf("upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Res{}, fmt.Errorf("upload: %w", err)
	}

	return c.doRaw(ctx, http.MethodPost, builder.URL(SectionAPI, VerbUpload), buf.Bytes(), writer.FormDataContentType(), req)
}

// do executes a JSON REST request with retry
func (c *Client) do(ctx context.Context, httpMethod, rawURL, body string, req *Req) (Res, error) {
	contentType := ""
	if httpMethod == http.MethodPost {
		contentType = MimetypeJSON
	}
	return c.doRaw(ctx, httpMethod, rawURL, []byte(body), contentType, req)
}

// doRaw executes one REST request with transient-error retry and unpacks the
// response envelope
//
// Transient failures (network errors and the status codes listed in
// TransientStatusCodes) are retried up to MaxRetries times with exponential
// backoff. Permanent device errors are decoded with parseAPIError and
// surfaced verbatim.
func (c *Client) doRaw(ctx context.Context, httpMethod, rawURL string, body []byte, contentType string, req *Req) (Res, error) {
	if req == nil {
		req = &Req{}
	}

	if err := checkContextCancellation(ctx); err != nil {
		return Res{}, err
	}

	// Total timeout budget covering every retry attempt
	totalTimeout := c.calculateTotalTimeout()
	ctx, parentCancel := context.WithTimeout(ctx, totalTimeout)
	defer parentCancel()

	c.logger.Debug(ctx, "REST request",
		"method", httpMethod,
		"url", rawURL,
		"body", c.prepareJSONForLogging(string(body)))

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if err := checkContextCancellation(ctx); err != nil {
			return Res{}, fmt.Errorf("request canceled: %w", err)
		}

		attemptCtx, attemptCancel := c.createAttemptContext(ctx, req)
		httpReq, err := http.NewRequestWithContext(attemptCtx, httpMethod, rawURL, bytes.NewReader(body))
		if err != nil {
			attemptCancel()
			return Res{}, fmt.Errorf("failed to create request: %w", err)
		}
		if c.token != "" {
			httpReq.Header.Set("X-API-KEY", c.token)
		}
		if contentType != "" {
			httpReq.Header.Set("Content-Type", contentType)
		}

		resp, lastErr = c.httpClient.Do(httpReq) //nolint:bodyclose // closed after the retry loop or below

		transient := false
		if lastErr != nil {
			// Network-level failure, worth retrying
			transient = true
		} else if isTransientStatus(resp.StatusCode) {
			transient = true
			lastErr = &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
			_ = resp.Body.Close() //nolint:errcheck // response is being discarded
			resp = nil
		}

		attemptCancel()

		if !transient {
			lastErr = nil
			break
		}
		if attempt >= c.MaxRetries {
			break
		}

		backoff := c.Backoff(attempt)
		c.logger.Warn(ctx, "transient error, retrying",
			"method", httpMethod,
			"url", rawURL,
			"attempt", attempt+1,
			"max_retries", c.MaxRetries,
			"backoff", backoff,
			"error", lastErr.Error())

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return Res{}, fmt.Errorf("request canceled during backoff: %w", ctx.Err())
		}
	}

	if lastErr != nil {
		c.logger.Error(ctx, "REST request failed",
			"method", httpMethod,
			"url", rawURL,
			"error", lastErr.Error())
		return Res{}, fmt.Errorf("request failed: %w", lastErr)
	}

	defer resp.Body.Close() //nolint:errcheck // read side only

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Res{}, fmt.Errorf("failed to read response: %w", err)
	}

	mimetype := resp.Header.Get("Content-Type")
	if idx := strings.IndexByte(mimetype, ';'); idx >= 0 {
		mimetype = strings.TrimSpace(mimetype[:idx])
	}

	if resp.StatusCode >= 400 {
		if mimetype == MimetypeJSON {
			apiErr := parseAPIError(resp.StatusCode, string(payload))
			c.logger.Error(ctx, "device reported error",
				"method", httpMethod,
				"url", rawURL,
				"status", resp.StatusCode,
				"error", apiErr.Error())
			return Res{}, apiErr
		}
		return Res{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s for url: %s", resp.Status, rawURL),
		}
	}

	res := Res{StatusCode: resp.StatusCode, Mimetype: mimetype}
	switch mimetype {
	case MimetypeJSON:
		res.Raw = string(payload)
	case MimetypeGzip:
		res.Content = payload
	default:
		return Res{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unsupported content type: %q", mimetype),
		}
	}

	c.logger.Debug(ctx, "REST response",
		"method", httpMethod,
		"url", rawURL,
		"status", resp.StatusCode,
		"mimetype", mimetype,
		"body", c.prepareJSONForLogging(res.Raw))

	return res, nil
}

// isTransientStatus reports whether an HTTP status code should trigger retry
func isTransientStatus(code int) bool {
	for _, transient := range TransientStatusCodes {
		if code == transient {
			return true
		}
	}
	return false
}

// Backoff calculates the backoff delay for a retry attempt using exponential
// backoff with jitter
//
// The formula is: delay = min(minDelay * (factor ^ attempt) + jitter, maxDelay)
// where jitter is a cryptographically secure random value in [0, delay * 0.1].
//
// If crypto/rand fails, falls back to timestamp-based jitter to prevent a
// thundering herd.
//
// Returns the duration to wait before retrying.
func (c *Client) Backoff(attempt int) time.Duration {
	delay := float64(c.BackoffMinDelay) * math.Pow(c.BackoffDelayFactor, float64(attempt))

	if math.IsInf(delay, 1) || delay > float64(c.BackoffMaxDelay) {
		delay = float64(c.BackoffMaxDelay)
	}

	jitterMax := int64(delay * 0.1)
	if jitterMax > 0 {
		var jitterBytes [8]byte
		if _, err := rand.Read(jitterBytes[:]); err == nil {
			//nolint:gosec // G115: explicitly masked to prevent overflow
			jitterVal := int64(binary.BigEndian.Uint64(jitterBytes[:]) & 0x7FFFFFFFFFFFFFFF)
			delay += float64(jitterVal % jitterMax)
		} else {
			timestamp := time.Now().UnixNano()
			delay += float64((timestamp%jitterMax + jitterMax) % jitterMax)
		}
	}

	return time.Duration(delay)
}

// calculateTotalTimeout calculates the total timeout for all retry attempts
//
// Formula: OperationTimeout + sum(Backoff(0), ..., Backoff(MaxRetries))
func (c *Client) calculateTotalTimeout() time.Duration {
	totalBackoff := time.Duration(0)
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		totalBackoff += c.Backoff(attempt)
	}
	return c.OperationTimeout + totalBackoff
}

// checkContextCancellation checks if context is canceled or deadline exceeded
//
// This is a non-blocking check used before retry attempts to avoid wasted
// work.
func checkContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// createAttemptContext creates a context for a single retry attempt
//
// Timeout priority model:
//  1. Request-specific timeout (req.Timeout > 0) - highest priority
//  2. Existing context deadline - medium priority
//  3. Client default timeout (c.OperationTimeout) - fallback
//
// The caller must call the returned cancel function after the attempt
// completes.
func (c *Client) createAttemptContext(ctx context.Context, req *Req) (context.Context, context.CancelFunc) {
	if req.Timeout > 0 {
		return context.WithTimeout(ctx, req.Timeout)
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.OperationTimeout)
}

// prepareJSONForLogging redacts sensitive data and formats JSON for logging
//
// Size and sensitive-field count limits prevent regex-based DoS during
// redaction of malicious or malformed input.
//
// Returns the processed JSON string safe for logging.
func (c *Client) prepareJSONForLogging(jsonStr string) string {
	if jsonStr == "" {
		return ""
	}
	if len(jsonStr) > MaxJSONSizeForLogging {
		return JSONTooLargeMessage
	}

	sensitiveCount := strings.Count(jsonStr, `"password"`) +
		strings.Count(jsonStr, `"secret"`) +
		strings.Count(jsonStr, `"key"`) +
		strings.Count(jsonStr, `"community"`) +
		strings.Count(jsonStr, `"token"`) +
		strings.Count(jsonStr, `"auth"`)
	if sensitiveCount > MaxSensitiveFields {
		return JSONTooManySensitiveMsg
	}

	redacted := c.redactSensitiveData(jsonStr)

	if c.prettyPrintLogs {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(redacted), "", "  "); err == nil {
			return buf.String()
		}
	}

	return redacted
}

// redactSensitiveData replaces sensitive data in JSON with [REDACTED]
func (c *Client) redactSensitiveData(json string) string {
	replacements := []string{
		`"password":"[REDACTED]"`,
		`"secret":"[REDACTED]"`,
		`"key":"[REDACTED]"`,
		`"community":"[REDACTED]"`,
		`"token":"[REDACTED]"`,
		`"auth":"[REDACTED]"`,
	}

	result := json
	for i, pattern := range c.redactionPatterns {
		result = pattern.ReplaceAllString(result, replacements[i])
	}

	return result
}
