// Package redact masks credential-bearing values before they are persisted
// in a profile snapshot.
package redact

import (
	"net/http"
	"strings"
)

const mask = "***"

var sensitiveKeys = []string{"authorization", "cookie", "set-cookie", "proxy-authorization", "x-api-key", "access_token", "id_token", "session", "apikey"}

// Headers returns a copy of h with sensitive header values masked. The
// original headers are never mutated; profiles must not alias live request
// state.
func Headers(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := make(http.Header, len(h))
	for k, vals := range h {
		if isSensitiveKey(k) {
			out[k] = []string{mask}
			continue
		}
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func isSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if k == s {
			return true
		}
	}
	return false
}
