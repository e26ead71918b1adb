package metrics

import (
	"net/http"
	"strings"
	"time"
)

// UnmatchedRoute labels requests that no registered route accepted.
const UnmatchedRoute = "unmatched"

// RouteFunc names the route pattern a request will be served by. An empty
// result means the request matched no route.
type RouteFunc func(*http.Request) string

// ServeMuxRoute resolves routes through mux. Method prefixes of Go 1.22
// patterns are dropped since the method is its own label, and catchAll names
// the fallback pattern that should count as unmatched.
func ServeMuxRoute(mux *http.ServeMux, catchAll string) RouteFunc {
	return func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		if pattern == "" || pattern == catchAll {
			return ""
		}
		if _, path, ok := strings.Cut(pattern, " "); ok {
			return path
		}
		return pattern
	}
}

// ResponseRecorder captures the status code written by a handler. A handler
// that never calls WriteHeader reports 200.
type ResponseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rr *ResponseRecorder) Status() int {
	return rr.status
}

func (rr *ResponseRecorder) WriteHeader(status int) {
	if !rr.wroteHeader {
		rr.status = status
		rr.wroteHeader = true
	}
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *ResponseRecorder) Write(p []byte) (int, error) {
	rr.wroteHeader = true
	return rr.ResponseWriter.Write(p)
}

func (rr *ResponseRecorder) Flush() {
	if flusher, ok := rr.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rr *ResponseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}

// HTTPMiddleware counts and times requests by method, route pattern and
// status. The route is resolved before next runs so handlers that rewrite
// the request cannot change the label.
func HTTPMiddleware(recorder *Recorder, route RouteFunc, next http.Handler) http.Handler {
	if recorder == nil {
		recorder = Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route != nil {
			name = route(r)
		}
		rr := NewResponseRecorder(w)
		start := time.Now()
		next.ServeHTTP(rr, r)
		recorder.ObserveRequest(r.Method, name, rr.Status(), time.Since(start))
	})
}
