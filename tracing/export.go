package tracing

import (
	"sync"
	"sync/atomic"
	"time"
)

// Exporter ships finished transactions to a backend. Only transactions
// whose decision was SampledTrue ever reach an exporter; the decision
// is authoritative and a dropped transaction must never be exported.
//
// Batching, rate limiting and delivery retry belong to the exporter
// (or its client library), not to this package.
type Exporter interface {
	ExportTransaction(td *TransactionData)
}

type exportersMap map[Exporter]struct{}

var (
	exporterMu sync.Mutex
	exporters  atomic.Value
)

// RegisterExporter adds to the set of Exporters receiving sampled
// transactions.
func RegisterExporter(e Exporter) {
	exporterMu.Lock()
	defer exporterMu.Unlock()
	m := make(exportersMap)
	if old, ok := exporters.Load().(exportersMap); ok {
		for k, v := range old {
			m[k] = v
		}
	}
	m[e] = struct{}{}
	exporters.Store(m)
}

// UnregisterExporter removes e from the set of Exporters.
func UnregisterExporter(e Exporter) {
	exporterMu.Lock()
	defer exporterMu.Unlock()
	m := make(exportersMap)
	if old, ok := exporters.Load().(exportersMap); ok {
		for k, v := range old {
			m[k] = v
		}
	}
	delete(m, e)
	exporters.Store(m)
}

// TransactionData is the flattened form of a finished, sampled
// transaction handed to exporters.
type TransactionData struct {
	TraceID
	SpanID
	ParentSpanID SpanID

	Name       string
	Sampled    Sampled
	SampleRate Rate

	StartTime time.Time
	EndTime   time.Time

	Err   error
	Panic interface{}

	Keyvals []interface{}

	// Spans holds the recorded spans, the transaction's own first.
	Spans []*SpanData

	// DroppedSpans counts children that arrived after the recorder cap
	// was exhausted.
	DroppedSpans int
}

// SpanData is one recorded span within a TransactionData.
type SpanData struct {
	ParentSpanID SpanID

	TraceID
	SpanID
	Name    string
	Sampled Sampled

	StartTime time.Time
	EndTime   time.Time

	Err   error
	Panic interface{}

	Keyvals []interface{}
}

func snapshotSpan(s *Span) *SpanData {
	s.mu.Lock()
	defer s.mu.Unlock()
	kvs := make([]interface{}, len(s.keyvals))
	copy(kvs, s.keyvals)
	return &SpanData{
		ParentSpanID: s.parentSpanID,
		TraceID:      s.traceID,
		SpanID:       s.spanID,
		Name:         s.name,
		Sampled:      s.sampled,
		StartTime:    s.startTime,
		EndTime:      s.endTime,
		Err:          s.err,
		Panic:        s.panicVal,
		Keyvals:      kvs,
	}
}

func exportTransaction(s *Span) {
	m, ok := exporters.Load().(exportersMap)
	if !ok || len(m) == 0 {
		return
	}

	recorded := s.RecordedSpans()
	td := &TransactionData{
		TraceID:      s.traceID,
		SpanID:       s.spanID,
		ParentSpanID: s.parentSpanID,
		Name:         s.Name(),
		Sampled:      s.Sampled(),
		SampleRate:   s.SampleRate(),
		StartTime:    s.startTime,
		EndTime:      s.EndTime(),
		DroppedSpans: s.DroppedSpans(),
	}

	s.mu.Lock()
	td.Err = s.err
	td.Panic = s.panicVal
	td.Keyvals = append([]interface{}{}, s.keyvals...)
	s.mu.Unlock()

	td.Spans = make([]*SpanData, 0, len(recorded))
	for _, rs := range recorded {
		td.Spans = append(td.Spans, snapshotSpan(rs))
	}

	for e := range m {
		e.ExportTransaction(td)
	}
}
