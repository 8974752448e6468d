/*
Package tracing is the sampling decision engine and propagation layer
of a distributed-tracing client. StartTransaction starts a root span
and decides, from static rate, sampler hook or inherited upstream
decision, whether the transaction and its descendants are recorded and
exported. TraceHeaders serializes the active span for the
"sentry-trace" header so a downstream service continues the trace with
the same decision.

The decision is per transaction, hot-path safe and soft-failing: every
configuration problem degrades to "this transaction is not traced",
never to an error.
*/
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/theplant/tracekit/log"
)

type kvsContextKey struct{}

var activeKVsKey = kvsContextKey{}

// KVsFromContext returns the ambient key/value pairs that new spans
// pick up from ctx.
func KVsFromContext(ctx context.Context) []interface{} {
	kvs, _ := ctx.Value(activeKVsKey).([]interface{})
	return kvs
}

// ContextWithKVs stashes key/value pairs on the context; spans started
// under it inherit them.
func ContextWithKVs(ctx context.Context, keyvals ...interface{}) context.Context {
	if len(keyvals)%2 != 0 {
		log.ForceContext(ctx).Warn().Log("msg", fmt.Sprintf("missing key or value for span attributes: %q", keyvals))
	}

	existing := KVsFromContext(ctx)
	if existing != nil {
		merged := append([]interface{}{}, existing...)
		keyvals = append(merged, keyvals...)
	}

	return context.WithValue(ctx, activeKVsKey, keyvals)
}

type spanContextKey struct{}

var activeSpanKey = spanContextKey{}

// SpanFromContext returns the active span in ctx, nil when there is
// none.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(activeSpanKey).(*Span)
	return s
}

// TransactionFromContext returns the transaction owning the active
// span, nil when no span is active.
func TransactionFromContext(ctx context.Context) *Span {
	s := SpanFromContext(ctx)
	if s == nil {
		return nil
	}
	return s.Transaction()
}

func contextWithSpan(parent context.Context, s *Span) context.Context {
	return context.WithValue(parent, activeSpanKey, s)
}

// StartSpan starts a child of the active span in ctx, or a whole new
// transaction when no span is active, and returns the context carrying
// the new span.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return StartTransaction(ctx, name)
	}

	s := parent.StartChild(name)
	if ctxKVs := KVsFromContext(ctx); ctxKVs != nil {
		s.AppendKVs(ctxKVs...)
	}
	return contextWithSpan(ctx, s), s
}

// AppendSpanKVs attaches key/value pairs to the active span, if any.
func AppendSpanKVs(ctx context.Context, keyvals ...interface{}) {
	if len(keyvals)%2 != 0 {
		log.ForceContext(ctx).Warn().Log("msg", fmt.Sprintf("missing key or value for span attributes: %q", keyvals))
	}

	s := SpanFromContext(ctx)
	if s == nil {
		return
	}

	s.AppendKVs(keyvals...)
}

// EndSpan finishes the active span with err and logs it.
func EndSpan(ctx context.Context, err error) {
	s := SpanFromContext(ctx)
	if s == nil {
		return
	}

	s.RecordError(err)
	s.End()
	LogSpan(ctx, s)
}

// RecordPanic records an in-flight panic on the active span and lets
// it continue.
// 1. Call it before EndSpan or (*Span).End.
// 2. The call must be deferred.
func RecordPanic(ctx context.Context) {
	s := SpanFromContext(ctx)
	if s == nil {
		return
	}

	if !s.IsRecording() {
		return
	}

	if recovered := recover(); recovered != nil {
		defer panic(recovered)
		s.RecordPanic(recovered)
	}
}

// LogSpan writes the span as one structured log line through the
// context logger. Logging is unconditional; the sampling decision
// gates export, not diagnostics.
func LogSpan(ctx context.Context, s *Span) {
	var (
		l       = log.ForceContext(ctx)
		keyvals []interface{}
		dur     = s.Duration()
	)

	keyvals = append(keyvals,
		"ts", s.startTime.Format(time.RFC3339Nano),
		"trace.id", s.traceID,
		"span.id", s.spanID,
		"span.context", s.Name(),
		"span.dur_ms", dur.Milliseconds(),
	)

	if sampled := s.Sampled(); sampled.Decided() {
		keyvals = append(keyvals, "span.sampled", sampled.String())
	}
	if rate := s.SampleRate(); rate != nil {
		keyvals = append(keyvals, "span.sample_rate", rate)
	}

	if s.parentSpanID.IsValid() {
		keyvals = append(keyvals, "span.parent_id", s.parentSpanID)
	}

	s.mu.Lock()
	keyvals = append(keyvals, s.keyvals...)
	err, panicVal := s.err, s.panicVal
	s.mu.Unlock()

	if panicVal != nil {
		keyvals = append(keyvals,
			"msg", fmt.Sprintf("%s (%v) -> panic: %+v (%T)", s.Name(), dur, panicVal, panicVal),
			"span.panic", panicVal,
			"span.panic_type", errType(panicVal),
			"span.with_panic", 1,
			"span.with_err", 1,
		)
		l.Crit().Log(keyvals...)
		return
	}

	if err != nil {
		keyvals = append(keyvals,
			"msg", fmt.Sprintf("%s (%v) -> error: %+v (%T)", s.Name(), dur, err, err),
			"span.err", err,
			"span.err_type", errType(err),
			"span.with_err", 1,
		)
		l.Error().Log(keyvals...)
		return
	}

	keyvals = append(keyvals,
		"msg", fmt.Sprintf("%s (%v) -> success", s.Name(), dur),
	)
	l.Info().Log(keyvals...)
}

type causer interface {
	Cause() error
}

func errType(err interface{}) string {
	if c, ok := err.(causer); ok {
		return fmt.Sprintf("%T (%T)", c.Cause(), err)
	}
	return fmt.Sprintf("%T", err)
}
