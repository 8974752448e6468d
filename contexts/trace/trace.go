// Package trace tags each HTTP request with an opaque request ID so
// log lines from one request can be grouped together. It predates the
// tracing package and remains for services that only want request IDs
// without sampling or span recording.
package trace

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type key int

const traceKey key = iota

// Opaque type for request ID.
type ID interface{}

func genTraceID() ID {
	return uuid.New().String()
}

func WithRequestTrace(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracedContext := context.WithValue(r.Context(), traceKey, genTraceID())
		h.ServeHTTP(w, r.WithContext(tracedContext))
	})
}

func RequestTrace(c context.Context) (ID, bool) {
	id, ok := c.Value(traceKey).(ID)
	return id, ok
}
