package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/easeverse/server/internal/apperr"
	"github.com/easeverse/server/internal/metrics"
)

// apiKeyFromRequest extracts a presented key from, in order: the x-api-key
// header, an Authorization: Bearer header, or the apiKey/token query
// parameters.
func apiKeyFromRequest(r *http.Request) string {
	if k := r.Header.Get("x-api-key"); k != "" {
		return k
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if k := r.URL.Query().Get("apiKey"); k != "" {
		return k
	}
	return r.URL.Query().Get("token")
}

func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAPIKey wraps next, rejecting requests whose presented key doesn't
// match secret. An empty secret means the route isn't gated.
func requireAPIKey(secret string, next http.HandlerFunc) http.HandlerFunc {
	if secret == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		presented := apiKeyFromRequest(r)
		if presented == "" || !constantTimeEquals(presented, secret) {
			metrics.AuthFailures.WithLabelValues(r.URL.Path).Inc()
			apperr.WriteHTTP(w, r, &apperr.AuthError{})
			return
		}
		next(w, r)
	}
}
