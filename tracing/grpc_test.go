package tracing

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func lookupKV(s *Span, key string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i < len(s.keyvals); i += 2 {
		if s.keyvals[i-1] == key {
			return s.keyvals[i]
		}
	}
	return nil
}

func TestUnaryClientInterceptorPropagates(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	var (
		header   string
		callSpan *Span
	)
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		callSpan = SpanFromContext(ctx)
		md, ok := metadata.FromOutgoingContext(ctx)
		if !ok {
			t.Fatalf("outgoing metadata should carry the trace")
		}
		values := md.Get(TraceHeader)
		if len(values) != 1 {
			t.Fatalf("expected one %s value, got %v", TraceHeader, values)
		}
		header = values[0]
		return nil
	}

	err := UnaryClientInterceptor()(context.Background(), "/greeter.Greeter/SayHello", nil, nil, nil, invoker)
	if err != nil {
		t.Fatalf("err should be nil")
	}
	if callSpan == nil {
		t.Fatalf("the invoker should run inside a span")
	}
	if callSpan.Name() != "greeter.Greeter.call(SayHello)" {
		t.Fatalf("unexpected span name %q", callSpan.Name())
	}

	trctx, err := ParseTraceParent(header)
	if err != nil {
		t.Fatalf("propagated header should parse: %v", err)
	}
	if trctx.TraceID != callSpan.TraceID() {
		t.Fatalf("propagated trace id %s does not match the span's %s", trctx.TraceID, callSpan.TraceID())
	}
	if trctx.ParentSpanID != callSpan.SpanID() {
		t.Fatalf("the server's parent must be the call span")
	}
	if trctx.Sampled != SampledTrue {
		t.Fatalf("the decision should travel with the header, got %q", header)
	}

	if got := lookupKV(callSpan, "grpc.code"); got != "OK" {
		t.Fatalf("grpc.code should be OK, got %v", got)
	}
}

func TestUnaryClientInterceptorRecordsCode(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	var callSpan *Span
	wantErr := status.Error(codes.Internal, "kaboom")
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		callSpan = SpanFromContext(ctx)
		return wantErr
	}

	err := UnaryClientInterceptor()(context.Background(), "/greeter.Greeter/SayHello", nil, nil, nil, invoker)
	if err != wantErr {
		t.Fatalf("the invoker error must pass through, got %v", err)
	}
	if got := lookupKV(callSpan, "grpc.code"); got != "Internal" {
		t.Fatalf("grpc.code should be Internal, got %v", got)
	}
	if callSpan.err != wantErr {
		t.Fatalf("the error should be recorded on the span")
	}
}

func TestStreamClientInterceptorPropagates(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	var header string
	streamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		md, ok := metadata.FromOutgoingContext(ctx)
		if ok {
			if values := md.Get(TraceHeader); len(values) == 1 {
				header = values[0]
			}
		}
		return nil, nil
	}

	_, err := StreamClientInterceptor()(context.Background(), &grpc.StreamDesc{}, nil, "/orders.Feed/Watch", streamer)
	if err != nil {
		t.Fatalf("err should be nil")
	}
	if _, err := ParseTraceParent(header); err != nil {
		t.Fatalf("propagated header should parse: %v", err)
	}
}

func TestUnaryServerInterceptorContinuesTrace(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: 0.0})

	parent := testTraceHex + "-" + testSpanHex + "-1"
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(TraceHeader, parent))

	var txn *Span
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		txn = TransactionFromContext(ctx)
		return "response", nil
	}

	resp, err := UnaryServerInterceptor()(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/greeter.Greeter/SayHello"}, handler)
	if err != nil {
		t.Fatalf("err should be nil")
	}
	if resp != "response" {
		t.Fatalf("the handler response must pass through, got %v", resp)
	}
	if txn == nil {
		t.Fatalf("the handler should run inside a transaction")
	}
	if txn.Name() != "greeter.Greeter.serve(SayHello)" {
		t.Fatalf("unexpected transaction name %q", txn.Name())
	}
	if txn.TraceID().String() != testTraceHex {
		t.Fatalf("the caller's trace should continue, got %s", txn.TraceID())
	}
	if txn.ParentSpanID().String() != testSpanHex {
		t.Fatalf("the caller's span should be the parent, got %s", txn.ParentSpanID())
	}
	if txn.Sampled() != SampledTrue {
		t.Fatalf("the caller's decision should win over the local rate")
	}
}

func TestUnaryServerInterceptorHonorsUpstreamDrop(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	parent := testTraceHex + "-" + testSpanHex + "-0"
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(TraceHeader, parent))

	var txn *Span
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		txn = TransactionFromContext(ctx)
		return nil, nil
	}

	if _, err := UnaryServerInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/greeter.Greeter/SayHello"}, handler); err != nil {
		t.Fatalf("err should be nil")
	}
	if txn.Sampled() != SampledFalse {
		t.Fatalf("the caller's drop should win over the local rate")
	}
	if len(txn.RecordedSpans()) != 0 {
		t.Fatalf("dropped transactions must not record spans")
	}
}

func TestUnaryServerInterceptorWithoutMetadata(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	var txn *Span
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		txn = TransactionFromContext(ctx)
		return nil, nil
	}

	if _, err := UnaryServerInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/greeter.Greeter/SayHello"}, handler); err != nil {
		t.Fatalf("err should be nil")
	}
	if !txn.TraceID().IsValid() {
		t.Fatalf("a fresh trace should be started")
	}
	if txn.ParentSpanID().IsValid() {
		t.Fatalf("a fresh trace has no parent")
	}
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }

func TestStreamServerInterceptorContinuesTrace(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: 0.0})

	parent := testTraceHex + "-" + testSpanHex + "-1"
	stream := &fakeServerStream{
		ctx: metadata.NewIncomingContext(context.Background(), metadata.Pairs(TraceHeader, parent)),
	}

	var txn *Span
	handler := func(srv interface{}, ss grpc.ServerStream) error {
		txn = TransactionFromContext(ss.Context())
		return nil
	}

	if err := StreamServerInterceptor()(nil, stream, &grpc.StreamServerInfo{FullMethod: "/orders.Feed/Watch"}, handler); err != nil {
		t.Fatalf("err should be nil")
	}
	if txn == nil {
		t.Fatalf("the handler's stream context should carry the transaction")
	}
	if txn.Name() != "orders.Feed.serve(Watch)" {
		t.Fatalf("unexpected transaction name %q", txn.Name())
	}
	if txn.TraceID().String() != testTraceHex {
		t.Fatalf("the caller's trace should continue, got %s", txn.TraceID())
	}
	if txn.Sampled() != SampledTrue {
		t.Fatalf("the caller's decision should win over the local rate")
	}
}
