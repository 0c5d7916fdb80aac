// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes pass through normalizePath unchanged.
var staticRoutes = map[string]bool{
	"/":               true,
	"/search/experts": true,
	"/experts":        true,
	"/attributes":     true,
	"/health":         true,
	"/ready":          true,
	"/metrics":        true,
}

// normalizePath collapses ID segments into route patterns so metric label
// cardinality stays bounded: /experts/42 becomes /experts/{id}.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	// /experts/{id} and /experts/{id}/experiences
	if strings.HasPrefix(path, "/experts/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "experiences" {
			return "/experts/{id}/experiences"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/experts/{id}"
		}
	}

	// /experiences/{id} and /experiences/{id}/attributes
	if strings.HasPrefix(path, "/experiences/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "attributes" {
			return "/experiences/{id}/attributes"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/experiences/{id}"
		}
	}

	// /attributes/{id}
	if strings.HasPrefix(path, "/attributes/") {
		parts := strings.Split(path, "/")
		if len(parts) == 3 && parts[2] != "" {
			return "/attributes/{id}"
		}
	}

	// Unknown routes pass through unchanged.
	return path
}

// metricsResponseWriter captures status and size for instrumentation.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// HTTPMetrics records duration, size, and count for every request except the
// health probes, which would dominate the series without telling us anything.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := int64(0)
			if cl := r.Header.Get("Content-Length"); cl != "" {
				if size, err := strconv.ParseInt(cl, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
