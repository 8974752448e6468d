package tracing

import (
	"context"
	"fmt"
	"path"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryClientInterceptor traces outgoing unary calls and propagates
// the trace to the server through the call metadata.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, fullMethod string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) (err error) {
		service, method := parseGRPCFullMethod(fullMethod)
		ctx, _ = StartSpan(ctx, grpcCallName(service, method))
		defer func() {
			AppendSpanKVs(ctx, "grpc.code", status.Code(err).String())
			EndSpan(ctx, err)
		}()
		AppendSpanKVs(ctx, GRPCClientKVs(service, method)...)

		return invoker(injectTraceMetadata(ctx), fullMethod, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor traces outgoing streaming calls and
// propagates the trace to the server through the call metadata.
func StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, fullMethod string, streamer grpc.Streamer, opts ...grpc.CallOption) (cs grpc.ClientStream, err error) {
		service, method := parseGRPCFullMethod(fullMethod)
		ctx, _ = StartSpan(ctx, grpcCallName(service, method))
		defer func() {
			AppendSpanKVs(ctx, "grpc.code", status.Code(err).String())
			EndSpan(ctx, err)
		}()
		AppendSpanKVs(ctx, GRPCClientKVs(service, method)...)

		return streamer(injectTraceMetadata(ctx), desc, cc, fullMethod, opts...)
	}
}

func injectTraceMetadata(ctx context.Context) context.Context {
	for k, v := range TraceHeaders(ctx) {
		ctx = metadata.AppendToOutgoingContext(ctx, k, v)
	}
	return ctx
}

// continueOptions turns incoming call metadata into transaction
// options, inheriting the caller's trace when it sent one.
func continueOptions(ctx context.Context) []TransactionOption {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	values := md.Get(TraceHeader)
	if len(values) == 0 {
		return nil
	}
	return []TransactionOption{ContinueFromTrace(values[0])}
}

func GRPCClientKVs(service, method string) []interface{} {
	return []interface{}{
		"span.type", "grpc",
		"span.role", "client",
		"grpc.service", service,
		"grpc.method", method,
	}
}

func grpcCallName(service, method string) string {
	return fmt.Sprintf("%s.call(%s)", service, method)
}

// UnaryServerInterceptor starts a transaction per unary call,
// continuing the trace propagated in the call metadata.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		service, method := parseGRPCFullMethod(info.FullMethod)
		ctx, _ = StartTransaction(ctx, grpcServeName(service, method), continueOptions(ctx)...)
		defer func() {
			AppendSpanKVs(ctx, "grpc.code", status.Code(err).String())
			EndSpan(ctx, err)
		}()
		AppendSpanKVs(ctx, GRPCServerKVs(service, method)...)

		return handler(ctx, req)
	}
}

// StreamServerInterceptor starts a transaction per stream, continuing
// the trace propagated in the call metadata.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		service, method := parseGRPCFullMethod(info.FullMethod)
		ctx, _ := StartTransaction(stream.Context(), grpcServeName(service, method), continueOptions(stream.Context())...)
		defer func() {
			AppendSpanKVs(ctx, "grpc.code", status.Code(err).String())
			EndSpan(ctx, err)
		}()
		AppendSpanKVs(ctx, GRPCServerKVs(service, method)...)

		wrapped := grpc_middleware.WrapServerStream(stream)
		wrapped.WrappedContext = ctx

		return handler(srv, wrapped)
	}
}

func GRPCServerKVs(service, method string) []interface{} {
	return []interface{}{
		"span.type", "grpc",
		"span.role", "server",
		"grpc.service", service,
		"grpc.method", method,
	}
}

func grpcServeName(service, method string) string {
	return fmt.Sprintf("%s.serve(%s)", service, method)
}

func parseGRPCFullMethod(fullMethodString string) (service, method string) {
	return path.Dir(fullMethodString)[1:], path.Base(fullMethodString)
}
