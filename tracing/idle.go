package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/theplant/tracekit/log"
)

// defaultIdleTimeout finishes idle transactions that saw no child
// activity for a second.
const defaultIdleTimeout = time.Second

// idleState auto-finishes a transaction after a quiet period. Every
// child start or end pushes the deadline out; the timer only runs
// while no child is open.
type idleState struct {
	mu      sync.Mutex
	timeout time.Duration
	timer   *time.Timer
	open    int
	stopped bool
}

func newIdleState(span *Span, timeout time.Duration) *idleState {
	if timeout <= 0 {
		timeout = defaultIdleTimeout
	}
	st := &idleState{timeout: timeout}
	st.timer = time.AfterFunc(timeout, span.End)
	return st
}

func (st *idleState) childStarted() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.stopped {
		return
	}
	st.open++
	st.timer.Stop()
}

func (st *idleState) childEnded() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.stopped {
		return
	}
	if st.open > 0 {
		st.open--
	}
	if st.open == 0 {
		st.timer.Reset(st.timeout)
	}
}

func (st *idleState) stop() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stopped = true
	st.timer.Stop()
}

// StartIdleTransaction starts a transaction that finishes itself once
// idleTimeout elapses with no open child span (0 means the 1s
// default). The sampling pipeline is exactly StartTransaction's. With
// onScope false the span is returned but not installed in the context,
// so ambient work does not attach children to it.
func StartIdleTransaction(ctx context.Context, name string, idleTimeout time.Duration, onScope bool, opts ...TransactionOption) (context.Context, *Span) {
	if fn, ok := startIdleTransactionExtension(); ok {
		return fn(ctx, name, idleTimeout, onScope, opts...)
	}
	log.ForceContext(ctx).Warn().Log(
		"msg", "tracing extension "+StartIdleTransactionOp+" is not registered, transaction will not be sampled",
		"span.context", name,
	)
	s := newTransactionSpan(ctx, name, applyTransactionOptions(ctx, nil, opts))
	s.setSampled(SampledFalse, nil)
	if onScope {
		ctx = contextWithSpan(ctx, s)
	}
	return ctx, s
}

func startIdleTransaction(ctx context.Context, name string, idleTimeout time.Duration, onScope bool, opts ...TransactionOption) (context.Context, *Span) {
	spanCtx, s := startTransaction(ctx, name, opts...)
	s.idle = newIdleState(s, idleTimeout)
	if onScope {
		return spanCtx, s
	}
	return ctx, s
}
