package honeycomb

import (
	"fmt"
	"math"

	libhoney "github.com/honeycombio/libhoney-go"
	"github.com/theplant/tracekit/tracing"
)

func NewExporter(config libhoney.Config) (*exporter, error) {
	libhoney.UserAgentAddition = "Honeycomb-tracekit-exporter"

	err := libhoney.Init(config)
	if err != nil {
		return nil, fmt.Errorf("libhoney init failed: %w", err)
	}
	builder := libhoney.NewBuilder()

	return &exporter{
		builder: builder,
	}, nil
}

type exporter struct {
	builder     *libhoney.Builder
	ServiceName string
}

func (e *exporter) Close() {
	libhoney.Close()
}

// ExportTransaction sends one event per recorded span. Every event
// carries the transaction's sampling weight so Honeycomb can scale
// counts back up; the transaction's own event additionally carries the
// applied rate and the dropped span count.
func (e *exporter) ExportTransaction(td *tracing.TransactionData) {
	if td == nil {
		return
	}

	weight := presampleWeight(td.SampleRate)
	for _, sd := range td.Spans {
		ev := e.event(sd, weight)
		if sd.SpanID == td.SpanID {
			if rate, ok := tracing.RateValue(td.SampleRate); ok {
				ev.AddField("trace.sample_rate", rate)
			}
			if td.DroppedSpans > 0 {
				ev.AddField("trace.dropped_spans", td.DroppedSpans)
			}
		}
		ev.SendPresampled()
	}
}

func (e *exporter) event(sd *tracing.SpanData, weight uint) *libhoney.Event {
	ev := e.builder.NewEvent()
	ev.Timestamp = sd.StartTime
	ev.SampleRate = weight

	if e.ServiceName != "" {
		ev.AddField("service_name", e.ServiceName)
	}

	dur := sd.EndTime.Sub(sd.StartTime)

	ev.AddField("trace.id", sd.TraceID)
	ev.AddField("span.id", sd.SpanID)
	ev.AddField("span.context", sd.Name)
	ev.AddField("span.dur_ms", dur.Milliseconds())

	if sd.Sampled.Bool() {
		ev.AddField("span.is_sampled", 1)
	}

	if sd.ParentSpanID.IsValid() {
		ev.AddField("span.parent_id", sd.ParentSpanID)
	}

	if sd.Err != nil {
		ev.AddField("span.err", sd.Err)
		ev.AddField("span.err_type", errType(sd.Err))
		ev.AddField("span.with_err", 1)
	}

	if sd.Panic != nil {
		ev.AddField("span.panic", sd.Panic)
		ev.AddField("span.panic_type", errType(sd.Panic))
		ev.AddField("span.with_panic", 1)
		ev.AddField("span.with_err", 1)
	}

	for i := 1; i < len(sd.Keyvals); i += 2 {
		ev.AddField(fmt.Sprint(sd.Keyvals[i-1]), sd.Keyvals[i])
	}

	ev.AddField("msg", fmt.Sprintf("%s -> dur: %v err: %s panic: %s", sd.Name, dur, sd.Err, sd.Panic))
	return ev
}

// presampleWeight converts an applied rate into the events-per-sample
// factor Honeycomb expects. An unusable rate counts as unsampled.
func presampleWeight(rate tracing.Rate) uint {
	v, ok := tracing.RateValue(rate)
	if !ok || v <= 0 || v > 1 {
		return 1
	}
	return uint(math.Round(1 / v))
}

type causer interface {
	Cause() error
}

func errType(err interface{}) string {
	if c, ok := err.(causer); ok {
		return fmt.Sprintf("%T (%T)", c.Cause(), err)
	}
	return fmt.Sprintf("%T", err)
}
