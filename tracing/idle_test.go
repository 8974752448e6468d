package tracing

import (
	"context"
	"testing"
	"time"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %v", timeout)
}

func TestIdleTransactionAutoFinishes(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	_, s := StartIdleTransaction(context.Background(), "idle", 30*time.Millisecond, true)
	if s.Sampled() != SampledTrue {
		t.Fatalf("idle transactions go through the same sampling pipeline")
	}

	waitUntil(t, time.Second, func() bool { return !s.IsRecording() })
}

func TestIdleTransactionDeadlineExtends(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	_, s := StartIdleTransaction(context.Background(), "busy-idle", 50*time.Millisecond, true)

	// An open child holds the transaction open well past the timeout.
	child := s.StartChild("long-child")
	time.Sleep(120 * time.Millisecond)
	if !s.IsRecording() {
		t.Fatalf("an open child must hold the idle transaction open")
	}

	child.End()
	waitUntil(t, time.Second, func() bool { return !s.IsRecording() })
}

func TestIdleTransactionExplicitEnd(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	_, s := StartIdleTransaction(context.Background(), "ended", time.Hour, true)
	s.End()
	if s.IsRecording() {
		t.Fatalf("explicit End finishes an idle transaction")
	}
}

func TestIdleTransactionOffScope(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	ctx, s := StartIdleTransaction(context.Background(), "off-scope", time.Hour, false)
	if SpanFromContext(ctx) != nil {
		t.Fatalf("off-scope idle transaction must not be installed in the context")
	}
	s.End()
}

func TestIdleTransactionDefaultTimeout(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	_, s := StartIdleTransaction(context.Background(), "default-timeout", 0, true)
	if s.idle.timeout != defaultIdleTimeout {
		t.Fatalf("timeout 0 means the default, got %v", s.idle.timeout)
	}
	s.End()
}
