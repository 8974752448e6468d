package tracing

import (
	"context"
	"net/http"
	"os"
)

// SamplingContext is the ephemeral, read-only bag of facts one
// sampling decision runs on. It is assembled immediately before the
// decision and never outlives it.
type SamplingContext struct {
	// ParentSampled is the upstream decision when the transaction
	// continues a propagated trace, SampledUndecided otherwise.
	ParentSampled Sampled

	// Request is a snapshot of the in-flight HTTP request, when the
	// server environment found one. Absence is not an error.
	Request *RequestInfo

	// Process is a snapshot of the running process, for worker and CLI
	// environments that have no request to describe where they run.
	Process *ProcessInfo

	// KVs carries caller-supplied extra context, merged last.
	KVs map[string]interface{}
}

// Reserved keys in caller-supplied sampling KVs. A caller value under
// one of these keys replaces the corresponding built-in field instead
// of landing in KVs.
const (
	ParentSampledKey = "parent_sampled"
	RequestKey       = "request"
	ProcessKey       = "process"
)

// RequestInfo is a normalized, read-only snapshot of an HTTP request.
type RequestInfo struct {
	Method     string
	URL        string
	Host       string
	RemoteAddr string
	UserAgent  string
	Header     http.Header
}

func normalizeRequest(r *http.Request) *RequestInfo {
	return &RequestInfo{
		Method:     r.Method,
		URL:        r.URL.String(),
		Host:       r.Host,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Header:     r.Header.Clone(),
	}
}

// ProcessInfo describes the running process.
type ProcessInfo struct {
	Hostname   string
	PID        int
	Executable string
	Argv       []string
}

// EnvironmentProvider contributes environment facts to a sampling
// context. One variant is selected at startup through
// Config.Environment; the decision path itself never branches on the
// environment kind.
type EnvironmentProvider interface {
	Snapshot(ctx context.Context, sc *SamplingContext)
}

type serverEnvironment struct{}

// ServerEnvironment locates the in-flight request stored in the
// context by ContextWithRequest (the server middleware does this) and
// attaches its snapshot. Not finding one is fine.
func ServerEnvironment() EnvironmentProvider {
	return serverEnvironment{}
}

func (serverEnvironment) Snapshot(ctx context.Context, sc *SamplingContext) {
	if r, ok := RequestFromContext(ctx); ok {
		sc.Request = normalizeRequest(r)
	}
}

type processEnvironment struct {
	hostname   string
	pid        int
	executable string
}

// ProcessEnvironment describes the process instead of a request. The
// argv snapshot is taken at decision time so a sampler hook sees the
// current state, not the state at startup.
func ProcessEnvironment() EnvironmentProvider {
	hostname, _ := os.Hostname()
	executable, _ := os.Executable()
	return &processEnvironment{
		hostname:   hostname,
		pid:        os.Getpid(),
		executable: executable,
	}
}

func (p *processEnvironment) Snapshot(ctx context.Context, sc *SamplingContext) {
	argv := make([]string, len(os.Args))
	copy(argv, os.Args)
	sc.Process = &ProcessInfo{
		Hostname:   p.hostname,
		PID:        p.pid,
		Executable: p.executable,
		Argv:       argv,
	}
}

type requestContextKey struct{}

var activeRequestKey = requestContextKey{}

// ContextWithRequest stores the in-flight request for the sampling
// context builder. The server middleware calls this before starting
// the transaction.
func ContextWithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, activeRequestKey, r)
}

func RequestFromContext(ctx context.Context) (*http.Request, bool) {
	r, ok := ctx.Value(activeRequestKey).(*http.Request)
	return r, ok
}

// buildSamplingContext assembles the facts for one decision: inherited
// parent decision, environment snapshot, then caller KVs, which win on
// conflict. It never mutates the span.
func buildSamplingContext(ctx context.Context, s *Span, kvs map[string]interface{}) SamplingContext {
	var sc SamplingContext

	if s.parentSpanID.IsValid() && s.inherited.Decided() {
		sc.ParentSampled = s.inherited
	}

	if env := currentConfig().Environment; env != nil {
		env.Snapshot(ctx, &sc)
	}

	if len(kvs) > 0 {
		sc.KVs = make(map[string]interface{}, len(kvs))
		for k, v := range kvs {
			switch k {
			case ParentSampledKey:
				if ps, ok := v.(Sampled); ok {
					sc.ParentSampled = ps
					continue
				}
			case RequestKey:
				if r, ok := v.(*RequestInfo); ok {
					sc.Request = r
					continue
				}
			case ProcessKey:
				if p, ok := v.(*ProcessInfo); ok {
					sc.Process = p
					continue
				}
			}
			sc.KVs[k] = v
		}
	}

	return sc
}
