package server

import (
	"net/http"

	"github.com/theplant/tracekit/contexts"
	"github.com/theplant/tracekit/log"
)

// DefaultMiddleware is the standard request pipeline: every request
// gets a status-capturing writer, a request ID, a request-scoped
// logger, and runs inside a traced transaction that absorbs panics.
func DefaultMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return Compose(
		// Recovery should come before TraceRequest to set the status code to 500
		Recovery,
		TraceRequest,
		contexts.WithLogger(logger),
		contexts.WithRequestTrace,
		contexts.WithHTTPStatus,
	)
}

// Middleware represents the form of HTTP middleware constructors.
type Middleware func(http.Handler) http.Handler

// IdMiddleware passes the handler through untouched. Useful as a
// disabled branch when assembling a pipeline conditionally.
func IdMiddleware(h http.Handler) http.Handler {
	return h
}

// Compose provides a convenient way to chain the HTTP
// middleware functions.
//
// In short, it transforms
//
// `Middleware3(Middleware2(Middleware1(HttpHandler)))`
//
// to
//
// `Compose(Middleware1, Middleware2, Middleware3)(HttpHandler)`
//
// More details: https://github.com/theplant/hsm2-backend/pull/258#discussion_r70732260
func Compose(middlewares ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for _, m := range middlewares {
			h = m(h)
		}
		return h
	}
}
