package middleware

import (
	"net/http"

	"devportal/internal/httputil"
)

// Identity lifts the caller's user ID from the X-User-ID header into the
// request context. The gateway in front of this service authenticates the
// caller and stamps the header; handlers that need a user (the clipboard
// surface) reject requests where it is missing.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID := r.Header.Get("X-User-ID"); userID != "" {
				r = httputil.WithUserID(r, userID)
			}
			next.ServeHTTP(w, r)
		})
	}
}
