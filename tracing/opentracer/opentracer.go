/*
Package opentracer exposes the tracing engine through the OpenTracing
API, so code instrumented against opentracing-go records spans and
propagates the sentry-trace header without being rewritten:

	opentracing.SetGlobalTracer(opentracer.New())

Spans started without a reference become transactions and go through
the sampling decision; ChildOf and FollowsFrom references become
children sharing their transaction's decision. Inject and Extract
speak the sentry-trace header over TextMap and HTTPHeaders carriers.
Baggage and the Binary format are not supported.
*/
package opentracer

import (
	"context"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/theplant/tracekit/tracing"
)

func New() *Tracer {
	return &Tracer{}
}

type Tracer struct{}

func (t *Tracer) StartSpan(operationName string, opts ...opentracing.StartSpanOption) opentracing.Span {
	var sso opentracing.StartSpanOptions
	for _, o := range opts {
		o.Apply(&sso)
	}

	s := t.startSpan(operationName, sso.References)
	for k, v := range sso.Tags {
		s.span.AppendKVs(k, v)
	}
	return s
}

func (t *Tracer) startSpan(name string, refs []opentracing.SpanReference) *span {
	for _, ref := range refs {
		if ref.Type != opentracing.ChildOfRef && ref.Type != opentracing.FollowsFromRef {
			continue
		}
		parent, ok := ref.ReferencedContext.(spanContext)
		if !ok {
			continue
		}

		// A live referenced span attaches the child to its own
		// transaction; an extracted context seeds a new transaction
		// that continues the upstream trace.
		if parent.span != nil {
			return &span{tracer: t, ctx: context.Background(), span: parent.span.StartChild(name)}
		}

		ctx, txn := tracing.StartTransaction(context.Background(), name,
			tracing.WithTransactionContext(parent.trctx),
		)
		return &span{tracer: t, ctx: ctx, span: txn}
	}

	ctx, txn := tracing.StartTransaction(context.Background(), name)
	return &span{tracer: t, ctx: ctx, span: txn}
}

func (t *Tracer) Inject(sm opentracing.SpanContext, format interface{}, carrier interface{}) error {
	sc, ok := sm.(spanContext)
	if !ok {
		return opentracing.ErrInvalidSpanContext
	}

	switch format {
	case opentracing.TextMap, opentracing.HTTPHeaders:
		writer, ok := carrier.(opentracing.TextMapWriter)
		if !ok {
			return opentracing.ErrInvalidCarrier
		}
		writer.Set(tracing.TraceHeader, sc.traceParent())
		return nil
	}
	return opentracing.ErrUnsupportedFormat
}

func (t *Tracer) Extract(format interface{}, carrier interface{}) (opentracing.SpanContext, error) {
	switch format {
	case opentracing.TextMap, opentracing.HTTPHeaders:
		reader, ok := carrier.(opentracing.TextMapReader)
		if !ok {
			return nil, opentracing.ErrInvalidCarrier
		}

		// HTTPHeadersCarrier hands keys back in canonical MIME form.
		var header string
		if err := reader.ForeachKey(func(key, val string) error {
			if strings.EqualFold(key, tracing.TraceHeader) {
				header = val
			}
			return nil
		}); err != nil {
			return nil, err
		}
		if header == "" {
			return nil, opentracing.ErrSpanContextNotFound
		}

		trctx, err := tracing.ParseTraceParent(header)
		if err != nil {
			return nil, opentracing.ErrSpanContextCorrupted
		}
		return spanContext{trctx: trctx}, nil
	}
	return nil, opentracing.ErrUnsupportedFormat
}
