package opentracer

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
	otlog "github.com/opentracing/opentracing-go/log"

	"github.com/theplant/tracekit/tracing"
)

// spanContext carries identity for propagation. span is set for live
// spans so children can attach to the owning transaction; extracted
// contexts carry identity only.
type spanContext struct {
	span  *tracing.Span
	trctx tracing.TransactionContext
}

func (c spanContext) ForeachBaggageItem(handler func(k, v string) bool) {}

func (c spanContext) traceParent() string {
	if c.span != nil {
		return c.span.TraceParent()
	}
	return c.trctx.TraceParent()
}

type span struct {
	tracer *Tracer
	ctx    context.Context
	span   *tracing.Span
}

func (s *span) Finish() {
	s.span.End()
	tracing.LogSpan(s.ctx, s.span)
}

func (s *span) FinishWithOptions(opts opentracing.FinishOptions) {
	for _, lr := range opts.LogRecords {
		s.LogFields(lr.Fields...)
	}
	s.Finish()
}

func (s *span) Context() opentracing.SpanContext {
	return spanContext{
		span: s.span,
		trctx: tracing.TransactionContext{
			TraceID:      s.span.TraceID(),
			ParentSpanID: s.span.SpanID(),
			Sampled:      s.span.Sampled(),
		},
	}
}

func (s *span) SetOperationName(operationName string) opentracing.Span {
	s.span.SetName(operationName)
	return s
}

func (s *span) SetTag(key string, value interface{}) opentracing.Span {
	s.span.AppendKVs(key, value)
	return s
}

// LogFields maps the conventional "error" field to the span's recorded
// error; everything else becomes span keyvals.
func (s *span) LogFields(fields ...otlog.Field) {
	for _, f := range fields {
		if err, ok := f.Value().(error); ok && f.Key() == "error" {
			s.span.RecordError(err)
			continue
		}
		s.span.AppendKVs(f.Key(), f.Value())
	}
}

func (s *span) LogKV(alternatingKeyValues ...interface{}) {
	kvs := make([]interface{}, 0, len(alternatingKeyValues))
	for i := 1; i < len(alternatingKeyValues); i += 2 {
		k, v := alternatingKeyValues[i-1], alternatingKeyValues[i]
		if err, ok := v.(error); ok && k == "error" {
			s.span.RecordError(err)
			continue
		}
		kvs = append(kvs, k, v)
	}
	if len(alternatingKeyValues)%2 != 0 {
		kvs = append(kvs, alternatingKeyValues[len(alternatingKeyValues)-1])
	}
	if len(kvs) > 0 {
		s.span.AppendKVs(kvs...)
	}
}

// Baggage is not propagated; the wire format has no room for it.
func (s *span) SetBaggageItem(restrictedKey, value string) opentracing.Span { return s }

func (s *span) BaggageItem(restrictedKey string) string { return "" }

func (s *span) Tracer() opentracing.Tracer { return s.tracer }

// Deprecated OpenTracing surface, kept to satisfy the interface.
func (s *span) LogEvent(event string) { s.LogKV("event", event) }

func (s *span) LogEventWithPayload(event string, payload interface{}) {
	s.LogKV("event", event, "payload", payload)
}

func (s *span) Log(data opentracing.LogData) {}
