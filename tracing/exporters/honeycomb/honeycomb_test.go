package honeycomb_test

import (
	"errors"
	"testing"
	"time"

	libhoney "github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"

	"github.com/theplant/tracekit/tracing"
	"github.com/theplant/tracekit/tracing/exporters/honeycomb"
)

func TestExportTransaction(t *testing.T) {
	mock := &transmission.MockSender{}
	exporter, err := honeycomb.NewExporter(libhoney.Config{
		WriteKey:     "test-key",
		Dataset:      "tracekit-test",
		Transmission: mock,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer exporter.Close()
	exporter.ServiceName = "checkout"

	traceID, _ := tracing.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	txnID, _ := tracing.SpanIDFromHex("00f067aa0ba902b7")
	childID, _ := tracing.SpanIDFromHex("6e0c63257de34c92")

	start := time.Now().Add(-time.Second)
	end := start.Add(250 * time.Millisecond)

	td := &tracing.TransactionData{
		TraceID:      traceID,
		SpanID:       txnID,
		Name:         "checkout.process",
		Sampled:      tracing.SampledTrue,
		SampleRate:   0.25,
		StartTime:    start,
		EndTime:      end,
		DroppedSpans: 3,
		Spans: []*tracing.SpanData{
			{
				TraceID:   traceID,
				SpanID:    txnID,
				Name:      "checkout.process",
				Sampled:   tracing.SampledTrue,
				StartTime: start,
				EndTime:   end,
				Keyvals:   []interface{}{"http.method", "POST"},
			},
			{
				TraceID:      traceID,
				SpanID:       childID,
				ParentSpanID: txnID,
				Name:         "charge.card",
				Sampled:      tracing.SampledTrue,
				StartTime:    start.Add(10 * time.Millisecond),
				EndTime:      start.Add(30 * time.Millisecond),
				Err:          errors.New("card declined"),
			},
		},
	}

	exporter.ExportTransaction(td)

	events := mock.Events()
	if len(events) != 2 {
		t.Fatalf("expected one event per recorded span, got %d", len(events))
	}

	txnEvent := events[0]
	if txnEvent.SampleRate != 4 {
		t.Fatalf("rate 0.25 should send with weight 4, got %d", txnEvent.SampleRate)
	}
	if !txnEvent.Timestamp.Equal(start) {
		t.Fatalf("event timestamp should be the span start")
	}
	if txnEvent.Data["trace.id"] != traceID {
		t.Fatalf("unexpected trace.id %v", txnEvent.Data["trace.id"])
	}
	if txnEvent.Data["span.context"] != "checkout.process" {
		t.Fatalf("unexpected span.context %v", txnEvent.Data["span.context"])
	}
	if txnEvent.Data["service_name"] != "checkout" {
		t.Fatalf("unexpected service_name %v", txnEvent.Data["service_name"])
	}
	if txnEvent.Data["span.dur_ms"] != int64(250) {
		t.Fatalf("unexpected span.dur_ms %v", txnEvent.Data["span.dur_ms"])
	}
	if txnEvent.Data["trace.sample_rate"] != 0.25 {
		t.Fatalf("the transaction event should carry the applied rate, got %v", txnEvent.Data["trace.sample_rate"])
	}
	if txnEvent.Data["trace.dropped_spans"] != 3 {
		t.Fatalf("the transaction event should carry the dropped count, got %v", txnEvent.Data["trace.dropped_spans"])
	}
	if txnEvent.Data["http.method"] != "POST" {
		t.Fatalf("span keyvals should become fields, got %v", txnEvent.Data["http.method"])
	}

	childEvent := events[1]
	if childEvent.Data["span.parent_id"] != txnID {
		t.Fatalf("unexpected span.parent_id %v", childEvent.Data["span.parent_id"])
	}
	if childEvent.Data["span.with_err"] != 1 {
		t.Fatalf("the child's error should be flagged")
	}
	if childEvent.Data["span.err_type"] != "*errors.errorString" {
		t.Fatalf("unexpected span.err_type %v", childEvent.Data["span.err_type"])
	}
	if _, ok := childEvent.Data["trace.sample_rate"]; ok {
		t.Fatalf("only the transaction event carries the rate")
	}
}

func TestExportBooleanRateWeight(t *testing.T) {
	mock := &transmission.MockSender{}
	exporter, err := honeycomb.NewExporter(libhoney.Config{
		WriteKey:     "test-key",
		Dataset:      "tracekit-test",
		Transmission: mock,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer exporter.Close()

	traceID, _ := tracing.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	txnID, _ := tracing.SpanIDFromHex("00f067aa0ba902b7")

	now := time.Now()
	exporter.ExportTransaction(&tracing.TransactionData{
		TraceID:    traceID,
		SpanID:     txnID,
		Name:       "always",
		Sampled:    tracing.SampledTrue,
		SampleRate: true,
		StartTime:  now,
		EndTime:    now.Add(time.Millisecond),
		Spans: []*tracing.SpanData{
			{
				TraceID:   traceID,
				SpanID:    txnID,
				Name:      "always",
				Sampled:   tracing.SampledTrue,
				StartTime: now,
				EndTime:   now.Add(time.Millisecond),
			},
		},
	})

	events := mock.Events()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].SampleRate != 1 {
		t.Fatalf("rate true should send with weight 1, got %d", events[0].SampleRate)
	}
	if events[0].Data["trace.sample_rate"] != float64(1) {
		t.Fatalf("rate true should be reported as 1, got %v", events[0].Data["trace.sample_rate"])
	}
}
