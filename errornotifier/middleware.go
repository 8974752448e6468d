package errornotifier

import (
	"context"
	"fmt"
	"net/http"

	ctxtrace "github.com/theplant/tracekit/contexts/trace"
	"github.com/theplant/tracekit/log"
	"github.com/theplant/tracekit/tracing"
)

type key int

const ctxKey key = iota

// Recover wraps an http.Handler to report all `panic`s to Airbrake.
func Recover(n Notifier) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			c := Context(req.Context(), n)
			err := NotifyOnPanic(n, req, func() {
				h.ServeHTTP(w, req.WithContext(c))
			})
			if err != nil {
				panic(err)
			}
		})
	}
}

// ForceContext extracts a notifier from the request context, falling
// back to a LogNotifier using the context's logger.
func ForceContext(c context.Context) Notifier {
	if c != nil {
		notifier, ok := c.Value(ctxKey).(Notifier)
		if ok {
			return notifier
		}
	}

	return NewLogNotifier(log.ForceContext(c))
}

// Context installs a given Error Notifier in the returned context
func Context(c context.Context, n Notifier) context.Context {
	return context.WithValue(c, ctxKey, n)
}

// NotifyOnPanic will notify Airbrake if function f panics, and will
// return the error that caused the panic (if any)
//
// This is for wrapping Goroutines to prevent panics from bringing
// down the whole application.
//
// The notification itself runs inside a span, so the report carries
// the trace and span ids of the request it happened under.
func NotifyOnPanic(n Notifier, req *http.Request, f func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		if e, ok := r.(error); !ok {
			err = fmt.Errorf("%v", r)
		} else {
			err = e
		}

		var ctx context.Context
		if req != nil {
			ctx = req.Context()
		} else {
			ctx = context.Background()
		}

		_ = tracing.TraceFunc(ctx, "errornotifier.NotifyOnPanic", func(ctx context.Context) error {
			tracing.AppendSpanKVs(ctx, tracing.InternalFuncKVs()...)

			notifyCtx := map[string]interface{}{}
			if ctxtraceID, ok := ctxtrace.RequestTrace(ctx); ok {
				notifyCtx["req_id"] = ctxtraceID
			}
			if span := tracing.SpanFromContext(ctx); span != nil {
				notifyCtx["trace_id"] = span.TraceID().String()
				notifyCtx["span_id"] = span.SpanID().String()
			}

			n.Notify(err, req, notifyCtx)

			return nil
		})
		return
	}()

	f()
	return
}
