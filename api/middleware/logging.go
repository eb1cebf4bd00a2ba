package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/order-refunds/pkg/logger"
)

// quietPrefixes are health check and scrape paths logged only when they fail.
var quietPrefixes = []string{"/health/", "/metrics"}

// Logging writes one access line per request once the response is done.
// Client errors and failures log at warn so refund rejections stand out.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			r = r.WithContext(ctx)

			meter := &accessMeter{ResponseWriter: w}
			next.ServeHTTP(meter, r)

			status := meter.statusCode()
			if status < http.StatusBadRequest && isQuiet(r.URL.Path) {
				return
			}

			fields := map[string]any{
				"status":      status,
				"bytes":       meter.written,
				"duration_ms": time.Since(started).Milliseconds(),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if route := rctx.RoutePattern(); route != "" {
					fields["route"] = route
				}
			}
			ctx = logg.WithFields(ctx, fields)

			if status >= http.StatusBadRequest {
				logg.Warn(ctx, "request.failed")
				return
			}
			logg.Info(ctx, "request.complete")
		})
	}
}

func isQuiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

type accessMeter struct {
	http.ResponseWriter
	status  int
	written int
}

func (m *accessMeter) WriteHeader(code int) {
	if m.status == 0 {
		m.status = code
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *accessMeter) Write(b []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(b)
	m.written += n
	return n, err
}

func (m *accessMeter) statusCode() int {
	if m.status == 0 {
		return http.StatusOK
	}
	return m.status
}
