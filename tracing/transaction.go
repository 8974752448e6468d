package tracing

import (
	"context"
	"net/http"
	"time"

	"github.com/theplant/tracekit/log"
)

// TransactionContext seeds a new transaction with identity inherited
// from upstream. The zero value starts a fresh trace.
type TransactionContext struct {
	TraceID      TraceID
	ParentSpanID SpanID

	// Sampled is the upstream decision. The engine reads it through
	// the sampling context; a sampler hook may still override it.
	Sampled Sampled
}

type transactionOptions struct {
	trctx       TransactionContext
	continued   string
	samplingKVs map[string]interface{}
}

type TransactionOption func(*transactionOptions)

// ContinueFromRequest inherits trace identity and sampling decision
// from the request's propagation header, when present.
func ContinueFromRequest(r *http.Request) TransactionOption {
	return ContinueFromTrace(r.Header.Get(TraceHeader))
}

// ContinueFromTrace inherits trace identity and sampling decision from
// a propagation header value. A malformed value is dropped with a
// diagnostic and the transaction starts a fresh trace.
func ContinueFromTrace(header string) TransactionOption {
	return func(o *transactionOptions) {
		o.continued = header
	}
}

// WithTransactionContext seeds the transaction identity directly.
func WithTransactionContext(trctx TransactionContext) TransactionOption {
	return func(o *transactionOptions) {
		o.trctx = trctx
	}
}

// WithSamplingKVs merges extra facts into the sampling context handed
// to the sampler hook. Caller keys win over the built-in ones.
func WithSamplingKVs(kvs map[string]interface{}) TransactionOption {
	return func(o *transactionOptions) {
		if o.samplingKVs == nil {
			o.samplingKVs = make(map[string]interface{}, len(kvs))
		}
		for k, v := range kvs {
			o.samplingKVs[k] = v
		}
	}
}

// StartTransaction starts a traced transaction through the registered
// extension: a root span is constructed, the sampling decision made,
// and the span placed in the returned context.
//
// Without a registered extension (RegisterExtensions was never called)
// it degrades to an unsampled transaction plus a diagnostic, so
// callers never receive a nil span.
func StartTransaction(ctx context.Context, name string, opts ...TransactionOption) (context.Context, *Span) {
	if fn, ok := startTransactionExtension(); ok {
		return fn(ctx, name, opts...)
	}
	log.ForceContext(ctx).Warn().Log(
		"msg", "tracing extension "+StartTransactionOp+" is not registered, transaction will not be sampled",
		"span.context", name,
	)
	s := newTransactionSpan(ctx, name, applyTransactionOptions(ctx, nil, opts))
	s.setSampled(SampledFalse, nil)
	return contextWithSpan(ctx, s), s
}

func applyTransactionOptions(ctx context.Context, cfg *Config, opts []TransactionOption) *transactionOptions {
	o := &transactionOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.continued != "" {
		trctx, err := ParseTraceParent(o.continued)
		if err != nil {
			diagnosticLogger(ctx, cfg).Debug().Log(
				"msg", "ignoring malformed "+TraceHeader+" header",
				"header", o.continued,
			)
		} else {
			o.trctx = trctx
		}
	}
	return o
}

func newTransactionSpan(ctx context.Context, name string, o *transactionOptions) *Span {
	cfg := currentConfig()
	s := &Span{
		name:         name,
		traceID:      o.trctx.TraceID,
		spanID:       cfg.IDGenerator.NewSpanID(),
		parentSpanID: o.trctx.ParentSpanID,
		inherited:    o.trctx.Sampled,
		startTime:    time.Now(),
	}
	if !s.traceID.IsValid() {
		s.traceID = cfg.IDGenerator.NewTraceID()
	}
	s.transaction = s
	return s
}

// startTransaction is the default StartTransactionOp extension:
// construct the span, build the sampling context, merge caller KVs,
// decide, and install the span in the context.
func startTransaction(ctx context.Context, name string, opts ...TransactionOption) (context.Context, *Span) {
	cfg := currentConfig()
	o := applyTransactionOptions(ctx, cfg, opts)
	s := newTransactionSpan(ctx, name, o)

	sc := buildSamplingContext(ctx, s, o.samplingKVs)
	sample(ctx, cfg, s, sc)

	if ctxKVs := KVsFromContext(ctx); ctxKVs != nil {
		s.AppendKVs(ctxKVs...)
	}

	return contextWithSpan(ctx, s), s
}
