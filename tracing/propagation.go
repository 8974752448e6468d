package tracing

import (
	"context"
	"errors"
	"strings"

	"github.com/theplant/tracekit/kerrs"
)

// TraceHeader is the propagation header carrying a span's identity and
// sampling decision across service boundaries.
const TraceHeader = "sentry-trace"

// ErrMalformedTraceParent reports a propagation value that does not
// match the wire grammar.
var ErrMalformedTraceParent = errors.New("malformed trace propagation value")

// TraceParent serializes the span for the TraceHeader value. Wire
// grammar: 32 hex chars of trace id and 16 of span id joined by "-",
// with a trailing "-1" or "-0" only once the sampling decision is
// known. Undecided spans propagate without the flag so the downstream
// side decides for itself.
func (s *Span) TraceParent() string {
	var b strings.Builder
	b.WriteString(s.traceID.String())
	b.WriteByte('-')
	b.WriteString(s.spanID.String())
	switch s.Sampled() {
	case SampledTrue:
		b.WriteString("-1")
	case SampledFalse:
		b.WriteString("-0")
	}
	return b.String()
}

// TraceParent serializes the inherited identity back to the wire form,
// ParentSpanID taking the span id field.
func (tc TransactionContext) TraceParent() string {
	var b strings.Builder
	b.WriteString(tc.TraceID.String())
	b.WriteByte('-')
	b.WriteString(tc.ParentSpanID.String())
	switch tc.Sampled {
	case SampledTrue:
		b.WriteString("-1")
	case SampledFalse:
		b.WriteString("-0")
	}
	return b.String()
}

// ParseTraceParent is the inverse of TraceParent: it reads the
// upstream span's identity into a TransactionContext whose
// ParentSpanID is the upstream span and whose Sampled carries the
// inherited decision. Surrounding whitespace is tolerated; anything
// violating the wire grammar is an error.
func ParseTraceParent(header string) (TransactionContext, error) {
	var trctx TransactionContext

	fields := strings.Split(strings.TrimSpace(header), "-")
	if len(fields) != 2 && len(fields) != 3 {
		return trctx, kerrs.Wrapv(ErrMalformedTraceParent, "parsing "+TraceHeader, "value", header)
	}

	traceID, err := TraceIDFromHex(fields[0])
	if err != nil {
		return trctx, kerrs.Wrapv(err, "parsing "+TraceHeader, "value", header)
	}
	spanID, err := SpanIDFromHex(fields[1])
	if err != nil {
		return trctx, kerrs.Wrapv(err, "parsing "+TraceHeader, "value", header)
	}
	trctx.TraceID = traceID
	trctx.ParentSpanID = spanID

	if len(fields) == 3 {
		switch fields[2] {
		case "1":
			trctx.Sampled = SampledTrue
		case "0":
			trctx.Sampled = SampledFalse
		default:
			return TransactionContext{}, kerrs.Wrapv(ErrMalformedTraceParent, "parsing "+TraceHeader, "value", header, "flag", fields[2])
		}
	}

	return trctx, nil
}

// TraceHeaders returns the propagation headers for the active span in
// ctx, through the registered extension: a single TraceHeader entry,
// or an empty map when no span is active (or no extension is
// registered). The result is safe to range over and attach to any
// outgoing request.
func TraceHeaders(ctx context.Context) map[string]string {
	if fn, ok := traceHeadersExtension(); ok {
		return fn(ctx)
	}
	return map[string]string{}
}

// traceHeaders is the default TraceHeadersOp extension. Read-only:
// propagation never mutates sampling state.
func traceHeaders(ctx context.Context) map[string]string {
	s := SpanFromContext(ctx)
	if s == nil {
		return map[string]string{}
	}
	return map[string]string{TraceHeader: s.TraceParent()}
}
