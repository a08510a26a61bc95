package server

import (
	"crypto/subtle"
	"net/http"
)

const (
	headerRoomKey  = "X-Room-Key"
	headerAdminKey = "X-Admin-Key"
)

// adminKeyMiddleware guards admin routes with the shared admin key. An empty
// key disables the routes entirely.
func adminKeyMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeError(w, http.StatusNotFound, "admin endpoints disabled")
				return
			}
			got := r.Header.Get(headerAdminKey)
			if subtle.ConstantTimeCompare([]byte(got), []byte(adminKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "admin key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// roomKeyFrom prefers a key sent in the body and falls back to the header.
func roomKeyFrom(r *http.Request, bodyKey string) string {
	if bodyKey != "" {
		return bodyKey
	}
	return r.Header.Get(headerRoomKey)
}
