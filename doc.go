// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package safe provides a simple, fluent API for interacting with Sangoma
// session border controllers running the SAFe framework via their REST API.
//
// The SAFe framework publishes a machine-readable specification describing
// every configurable object on the device (SIP profiles, trunks, network
// settings, etc.). This library downloads that specification once per client,
// parses it into an abstract syntax tree, and builds a navigable object model
// on top of it. Callers then walk the model through proxy objects that
// materialize their fields lazily and forward CRUD operations to the device.
//
// # Quick Start
//
// Create a client and navigate the object model:
//
//	client, err := safe.NewClient(
//	    "192.168.1.1",
//	    safe.Token("secret"),
//	    safe.Scheme("https"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Fetch, parse and build the specification (happens once per client)
//	ctx := context.Background()
//	root, err := client.Root(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Navigate to the SIP profile collection
//	sip, err := root.Child("sip")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	profiles, err := sip.Collection("profile")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Lazy attribute access on a single profile
//	profile := profiles.Item("my_profile")
//	ip, err := profile.GetAttr(ctx, "sip_ip") // wire name "sip-ip"
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("SIP IP:", ip.String())
//
// # Name Sanitization
//
// Schema identifiers may contain characters that are not valid member names
// (for example "sip-ip" or "dns/1"). Every name exposed on a proxy is derived
// from exactly one schema token by Sanitize. The original wire token can
// always be recovered with OriginalName; CRUD calls on the wire always use
// the original token, never the sanitized form.
//
// # Staged Changes and Commit
//
// Attribute writes are staged locally and tracked in a per-client change-set.
// Commit pushes the staged deltas to the device and applies them using the
// product's own transaction workflow:
//
//	if err := profile.SetAttr("sip_port", 5080); err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Commit(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Handling
//
// Caller mistakes (unknown attributes or methods, missing required fields)
// are detected locally before any network round-trip. Errors reported by the
// device are surfaced verbatim as *APIError; the library never reinterprets
// them. Transient HTTP failures are retried automatically with exponential
// backoff:
//
//	client, err := safe.NewClient(
//	    "192.168.1.1",
//	    safe.Token("secret"),
//	    safe.MaxRetries(5),
//	    safe.BackoffMinDelay(1*time.Second),
//	    safe.BackoffMaxDelay(60*time.Second),
//	)
//
// # Thread Safety
//
// The parsed specification and the built schema are immutable and safely
// shared by all proxies of one client. Individual proxy field caches are not
// synchronized; the object model assumes cooperative, single-threaded use per
// client handle. Callers requiring concurrent proxy access must add their own
// per-instance exclusion.
//
// # References
//
//   - gjson: https://github.com/tidwall/gjson
//   - sjson: https://github.com/tidwall/sjson
package safe
