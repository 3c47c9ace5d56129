package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"strings"
)

// ControlAuth guards player control endpoints with a shared bearer token.
// An empty token disables the check.
type ControlAuth struct {
	digest []byte
}

// NewControlAuth creates a guard for token.
func NewControlAuth(token string) *ControlAuth {
	if token == "" {
		return &ControlAuth{}
	}
	return &ControlAuth{digest: tokenDigest(token)}
}

// Enabled reports whether requests must carry a token.
func (a *ControlAuth) Enabled() bool {
	return a.digest != nil
}

// Check reports whether r carries the configured token.
func (a *ControlAuth) Check(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return false
	}
	// Compare fixed-length digests so timing does not leak the length.
	return hmac.Equal(tokenDigest(token), a.digest)
}

// Middleware rejects requests without the token.
func (a *ControlAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Check(r) {
			RecordConnectionRejected("unauthorized")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="crawler"`)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   "unauthorized",
				"message": "Control token required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenDigest(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
