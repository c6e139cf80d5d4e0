package cache

import (
	"bytes"
	"net/http"
)

// captureWriter records the response body and status so a 200 can be stored.
type captureWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *captureWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware caches GET responses keyed by the full request URI. Hits are
// served with X-Cache: HIT; only 200 responses are stored. Other methods
// pass through untouched.
func Middleware(c *LRU) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.RequestURI()
			if body, ok := c.Get(key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(body)
				return
			}

			capture := &captureWriter{ResponseWriter: w}
			capture.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(capture, r)

			if capture.statusCode == http.StatusOK {
				c.Set(key, capture.body.Bytes())
			}
		})
	}
}
