package usecase

import (
	"errors"
	"net"
	"net/http"
	"strings"
)

var errConflictingHeaders = errors.New("conflicting client ip headers")

// clientIP resolves the originating client address. X-Forwarded-For and
// X-Real-IP are trusted when present; if both are set and disagree the
// request is ambiguous and an error is returned so the caller can fall back
// to a sentinel instead of guessing.
func clientIP(r *http.Request) (string, error) {
	forwarded := firstForwarded(r.Header.Get("X-Forwarded-For"))
	realIP := strings.TrimSpace(r.Header.Get("X-Real-Ip"))

	if forwarded != "" && realIP != "" && forwarded != realIP {
		return "", errConflictingHeaders
	}
	if forwarded != "" {
		return forwarded, nil
	}
	if realIP != "" {
		return realIP, nil
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may already be a bare host in tests.
		if r.RemoteAddr != "" {
			return r.RemoteAddr, nil
		}
		return "", err
	}
	return host, nil
}

func firstForwarded(v string) string {
	if v == "" {
		return ""
	}
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
