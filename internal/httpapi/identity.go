package httpapi

import (
	"net"
	"net/http"
	"strings"
)

const maxAnonIDLen = 120

// resolveUserID picks the caller's identity for learning routes, in order:
// an explicit userId in the decoded body, the x-easeverse-user-id or
// x-user-id header, a userId query parameter, or a synthesized "anon:<ip>"
// identity truncated to maxAnonIDLen.
func resolveUserID(r *http.Request, bodyUserID string) string {
	if bodyUserID != "" {
		return bodyUserID
	}
	if h := r.Header.Get("x-easeverse-user-id"); h != "" {
		return h
	}
	if h := r.Header.Get("x-user-id"); h != "" {
		return h
	}
	if q := r.URL.Query().Get("userId"); q != "" {
		return q
	}
	id := "anon:" + clientIP(r)
	if len(id) > maxAnonIDLen {
		id = id[:maxAnonIDLen]
	}
	return id
}

// clientIP extracts the caller's address, preferring the first
// proxy-forwarded hop to RemoteAddr since the gateway typically sits
// behind a reverse proxy in production.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
