package tracing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// The extension registry lets independently initialized modules share
// one set of tracing operations without depending on whoever provides
// them. Operations are registered once at startup under well-known
// names; the first registration of a name wins and later ones are
// ignored, so a second initialization pass can never silently replace
// behavior a caller already holds.
//
// StartTransaction, StartIdleTransaction and TraceHeaders dispatch
// through the registry. Call RegisterExtensions (directly or through
// service.Context) during startup to install the default operations.

// Operation names understood by the registry.
const (
	StartTransactionOp     = "startTransaction"
	StartIdleTransactionOp = "startIdleTransaction"
	TraceHeadersOp         = "traceHeaders"
)

// Extension function shapes, by operation name.
type (
	StartTransactionFunc     func(ctx context.Context, name string, opts ...TransactionOption) (context.Context, *Span)
	StartIdleTransactionFunc func(ctx context.Context, name string, idleTimeout time.Duration, onScope bool, opts ...TransactionOption) (context.Context, *Span)
	TraceHeadersFunc         func(ctx context.Context) map[string]string
)

type extensionsMap map[string]interface{}

var (
	extensionMu sync.Mutex
	extensions  atomic.Value
)

// RegisterExtension installs ext under name unless that name is
// already taken. Reports whether this call installed it.
func RegisterExtension(name string, ext interface{}) bool {
	extensionMu.Lock()
	defer extensionMu.Unlock()
	m := make(extensionsMap)
	if old, ok := extensions.Load().(extensionsMap); ok {
		if _, taken := old[name]; taken {
			return false
		}
		for k, v := range old {
			m[k] = v
		}
	}
	m[name] = ext
	extensions.Store(m)
	return true
}

// RegisterExtensions installs the default transaction and propagation
// operations. Idempotent: names that are already registered keep their
// current implementation.
func RegisterExtensions() {
	RegisterExtension(StartTransactionOp, StartTransactionFunc(startTransaction))
	RegisterExtension(StartIdleTransactionOp, StartIdleTransactionFunc(startIdleTransaction))
	RegisterExtension(TraceHeadersOp, TraceHeadersFunc(traceHeaders))
}

func registeredExtension(name string) interface{} {
	m, _ := extensions.Load().(extensionsMap)
	return m[name]
}

func startTransactionExtension() (StartTransactionFunc, bool) {
	fn, ok := registeredExtension(StartTransactionOp).(StartTransactionFunc)
	return fn, ok
}

func startIdleTransactionExtension() (StartIdleTransactionFunc, bool) {
	fn, ok := registeredExtension(StartIdleTransactionOp).(StartIdleTransactionFunc)
	return fn, ok
}

func traceHeadersExtension() (TraceHeadersFunc, bool) {
	fn, ok := registeredExtension(TraceHeadersOp).(TraceHeadersFunc)
	return fn, ok
}
