package server

import (
	"context"
	"net/http"
)

type key int

const headerKey key = iota

// WithHeader stashes the ResponseWriter's header map in the request
// context, so code that only sees the context can still set response
// headers.
func WithHeader(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		newCtx := context.WithValue(ctx, headerKey, w.Header())
		h.ServeHTTP(w, r.WithContext(newCtx))
	})
}

// ForceHeader returns the response header map installed by WithHeader,
// panicking when the middleware is missing.
func ForceHeader(ctx context.Context) http.Header {
	h, ok := ctx.Value(headerKey).(http.Header)
	if !ok {
		panic("no header in context, please setup server.WithHeader middleware")
	}
	return h
}
