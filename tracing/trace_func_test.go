package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestTraceFunc(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	var s *Span
	var testErr = errors.New("test error")
	fn := func(ctx context.Context) error {
		s = SpanFromContext(ctx)

		return testErr
	}

	err := TraceFunc(context.Background(), "test", fn)
	if err != testErr {
		t.Fatalf("err should be test error")
	}

	if s == nil {
		t.Fatalf("span should be in context")
	}

	if s.Name() != "test" {
		t.Fatalf("span context should be the same as the name")
	}

	if s.EndTime().IsZero() {
		t.Fatalf("end time should not be zero")
	}

	if s.err != testErr {
		t.Fatalf("err should be test error")
	}
}

func TestTraceFuncRecordsPanic(t *testing.T) {
	setupTracing(t, Config{TracesSampleRate: true})

	var s *Span
	defer func() {
		if recovered := recover(); recovered != "boom" {
			t.Fatalf("panic should continue, got %v", recovered)
		}
		if s.panicVal != "boom" {
			t.Fatalf("panic should be recorded in span")
		}
	}()

	_ = TraceFunc(context.Background(), "panicking", func(ctx context.Context) error {
		s = SpanFromContext(ctx)
		panic("boom")
	})
}
