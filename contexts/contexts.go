// Package contexts provides HTTP middleware that installs per-request
// values: a request ID, the response status, and a request-scoped
// logger.
package contexts

import (
	"context"
	"net/http"

	"github.com/theplant/tracekit/contexts/trace"
	"github.com/theplant/tracekit/log"
)

type key int

const statusKey key = iota

////////////////////////////////////////////////////////////

// WithRequestTrace tags the request context with an opaque request ID.
func WithRequestTrace(h http.Handler) http.Handler {
	return trace.WithRequestTrace(h)
}

func RequestTrace(c context.Context) (trace.ID, bool) {
	return trace.RequestTrace(c)
}

////////////////////////////////////////////////////////////

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WithHTTPStatus wraps the ResponseWriter so the response status is
// recoverable from the request context after the handler ran.
func WithHTTPStatus(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		sContext := context.WithValue(r.Context(), statusKey, sw)
		h.ServeHTTP(sw, r.WithContext(sContext))
	})
}

func HTTPStatus(c context.Context) (int, bool) {
	status := http.StatusOK // Default
	sw, ok := c.Value(statusKey).(*statusWriter)

	if ok && sw.status != 0 {
		status = sw.status
	}

	return status, ok
}

////////////////////////////////////////////////////////////

// WithLogger installs logger into the request context, tagged with the
// request ID when one was installed further out.
func WithLogger(logger log.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger // don't overwrite logger
			if traceID, ok := RequestTrace(ctx); ok {
				l = logger.With("req_id", traceID)
			}
			h.ServeHTTP(w, r.WithContext(log.Context(ctx, l)))
		})
	}
}

func Logger(c context.Context) (log.Logger, bool) {
	return log.FromContext(c)
}
