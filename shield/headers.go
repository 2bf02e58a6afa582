package shield

import "net/http"

// apiHeaders fit a JSON-only API on loopback: nothing in a response may be
// framed, sniffed, cached or loaded by a page.
var apiHeaders = map[string]string{
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"X-Frame-Options":         "DENY",
	"X-Content-Type-Options":  "nosniff",
	"Referrer-Policy":         "no-referrer",
	"Cache-Control":           "no-store",
}

// SecurityHeaders sets apiHeaders on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for k, v := range apiHeaders {
			h.Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
