package server

import "net/http"

// withSecurityHeaders keeps token and key responses out of caches and frames.
func withSecurityHeaders(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Cache-Control", "no-store")
		hdr.Set("Pragma", "no-cache")
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "deny")
		h.ServeHTTP(w, r)
	})
}
