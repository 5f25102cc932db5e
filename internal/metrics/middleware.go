package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.headerWritten {
		rw.statusCode = code
		rw.headerWritten = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.headerWritten = true
	return rw.ResponseWriter.Write(b)
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default to 200 if WriteHeader not called
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

// normalizePath maps URL paths to route patterns so filenames never become
// label values
func normalizePath(path string) string {
	switch {
	case path == "/health", path == "/health/live", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/admin/software/") && strings.HasSuffix(path, "/file"):
		return "/api/admin/software/:productId/file"
	case path == "/api/auth/login", path == "/api/auth/logout":
		return path

	case strings.HasPrefix(path, "/api/download/software/"):
		return "/api/download/software/:filename"
	case strings.HasPrefix(path, "/api/uploads/software/"):
		return "/api/uploads/software/:filename"
	case strings.HasPrefix(path, "/api/uploads/images/products/"):
		return "/api/uploads/images/products/:filename"
	case strings.HasPrefix(path, "/api/uploads/previews/"):
		return "/api/uploads/previews/:filename"

	default:
		return "/other"
	}
}
