// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import "strings"

// Sanitize converts a schema token into a safe member name by replacing every
// character outside the identifier alphabet (letters, digits, underscore)
// with an underscore. If the result would begin with a digit, an underscore
// is prefixed.
//
// Sanitize is deterministic and total for non-empty input: it always
// terminates, never fails, and a token containing only identifier characters
// maps to itself. The mapping is not guaranteed to be invertible (distinct
// tokens may sanitize to the same name); the schema builder detects such
// collisions and refuses to build, and each proxy retains the original token
// for reverse lookup via OriginalName.
//
// Example:
//
//	safe.Sanitize("sip-ip")   // "sip_ip"
//	safe.Sanitize("dns/1")    // "dns_1"
//	safe.Sanitize("2fa")      // "_2fa"
//	safe.Sanitize("profile")  // "profile"
func Sanitize(token string) string {
	var builder strings.Builder
	builder.Grow(len(token) + 1)

	for i, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				builder.WriteByte('_')
			}
			builder.WriteRune(r)
		default:
			builder.WriteByte('_')
		}
	}

	return builder.String()
}
