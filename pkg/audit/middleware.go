package audit

import (
	"net/http"
	"strings"

	"github.com/opencanvass/canvassd/pkg/contextkeys"
	"github.com/opencanvass/canvassd/pkg/gate"
)

// Middleware records mutations and denied requests to a Trail. Successful
// reads are not recorded; they are covered by request logging and metrics.
type Middleware struct {
	trail Trail
}

func NewMiddleware(trail Trail) *Middleware {
	return &Middleware{trail: trail}
}

// responseWriter captures the status code written downstream.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if !m.shouldRecord(r, wrapped.statusCode) {
			return
		}

		ctx := r.Context()
		event := Event{
			Status:     statusFor(wrapped.statusCode),
			RequestID:  contextkeys.RequestID(ctx),
			Method:     r.Method,
			Path:       r.URL.Path,
			RemoteAddr: r.RemoteAddr,
			StatusCode: wrapped.statusCode,
		}
		if principal := gate.CallerPrincipal(ctx); principal != nil {
			event.Principal = principal.ID
			event.Username = principal.Username
		}
		event.Resource, event.ResourceID = resourceFromPath(r.URL.Path)
		if event.Status == EventStatusDenied {
			event.Type = EventTypeAccessDenied
		} else {
			event.Type = eventTypeFor(r.Method, strings.HasSuffix(r.URL.Path, "/batch"))
		}

		_ = m.trail.Record(ctx, event)
	})
}

func (m *Middleware) shouldRecord(r *http.Request, statusCode int) bool {
	// Login outcomes are recorded by the handler itself, with the
	// attempted username.
	if r.URL.Path == "/auth/login" {
		return false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return true
	}
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}

// resourceFromPath splits "/people/42" into ("people", "42"). Batch and
// collection paths yield an empty id.
func resourceFromPath(path string) (resource, id string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", ""
	}
	resource = parts[0]
	if len(parts) > 1 && parts[1] != "batch" {
		id = parts[1]
	}
	return resource, id
}
