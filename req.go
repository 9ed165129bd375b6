// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import "time"

// Req represents a REST request modifier
//
// This struct is used to apply request-specific options via functional
// modifiers. Operation parameters (verbs, paths, payloads) are passed
// directly to methods.
//
// Example:
//
//	// Retrieve with a custom timeout
//	value, err := profile.GetAttr(ctx, "sip_ip")
//	res, err := client.Get(ctx, builder, "retrieve", nil,
//	    safe.Timeout(30*time.Second))
type Req struct {
	// Timeout is the request-specific timeout
	// Overrides the client default timeout if set
	Timeout time.Duration
}
