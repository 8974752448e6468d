package tracing

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/theplant/tracekit/kerrs"
)

// Span is a timed unit of work in a trace. A span started by
// StartTransaction is a transaction: it owns the sampling decision and
// the recorder that collects its descendants. Children come from
// StartChild or StartSpan and share the transaction's decision.
type Span struct {
	parent      *Span
	transaction *Span
	recorder    *spanRecorder
	idle        *idleState

	traceID      TraceID
	spanID       SpanID
	parentSpanID SpanID

	// Decision carried in from upstream at construction time. The
	// engine reads it through the sampling context; sampled itself
	// stays undecided until the engine writes it.
	inherited Sampled

	sampled    Sampled
	sampleRate Rate

	name      string
	startTime time.Time
	endTime   time.Time

	err      error
	panicVal interface{}

	keyvals []interface{}
	mu      sync.Mutex
}

func (s *Span) TraceID() TraceID { return s.traceID }

func (s *Span) SpanID() SpanID { return s.spanID }

// ParentSpanID is a lookup key only, never an ownership link. The zero
// value means the span has no parent.
func (s *Span) ParentSpanID() SpanID { return s.parentSpanID }

func (s *Span) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Span) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

// Sampled reports the decision for this span's transaction. It stays
// SampledUndecided until the decision engine ran.
func (s *Span) Sampled() Sampled {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampled
}

// SampleRate returns the rate that was actually applied when the
// decision was made, nil while undecided or when the configured rate
// never passed validation.
func (s *Span) SampleRate() Rate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// setSampled performs the single undecided -> decided transition. A
// decided span never changes again.
func (s *Span) setSampled(decision Sampled, rate Rate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sampled.Decided() {
		return
	}
	s.sampled = decision
	s.sampleRate = rate
}

// initRecorder attaches the span recorder, once. The transaction
// itself occupies the first slot.
func (s *Span) initRecorder(maxSpans int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorder != nil {
		return
	}
	s.recorder = newSpanRecorder(maxSpans)
	s.recorder.record(s)
}

// Transaction returns the root span owning this span's decision.
func (s *Span) Transaction() *Span {
	if s.transaction != nil {
		return s.transaction
	}
	return s
}

// IsTransaction reports whether the span is the root of its local
// trace.
func (s *Span) IsTransaction() bool {
	return s.Transaction() == s
}

// StartChild starts a child span. The child shares the trace ID and
// the transaction's sampling decision; it is recorded only when the
// transaction was sampled in and the recorder cap is not exhausted.
func (s *Span) StartChild(name string) *Span {
	txn := s.Transaction()
	child := &Span{
		parent:       s,
		transaction:  txn,
		traceID:      s.traceID,
		parentSpanID: s.spanID,
		spanID:       currentConfig().IDGenerator.NewSpanID(),
		name:         name,
		sampled:      txn.Sampled(),
		startTime:    time.Now(),
	}
	if r := txn.spanRecorderRef(); r != nil {
		r.record(child)
	}
	if txn.idle != nil {
		txn.idle.childStarted()
	}
	return child
}

func (s *Span) spanRecorderRef() *spanRecorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder
}

// RecordedSpans returns the spans collected so far, transaction first.
// Empty for dropped transactions: their recorder is never initialized.
func (s *Span) RecordedSpans() []*Span {
	r := s.Transaction().spanRecorderRef()
	if r == nil {
		return nil
	}
	return r.recorded()
}

// DroppedSpans counts children that arrived after the recorder cap was
// exhausted.
func (s *Span) DroppedSpans() int {
	r := s.Transaction().spanRecorderRef()
	if r == nil {
		return 0
	}
	return r.droppedCount()
}

func (s *Span) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime.IsZero()
}

func (s *Span) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// RecordPanic marks the span as ended by recovered. Middleware that
// absorbs panics uses it directly; inside a traced function prefer the
// deferred package-level RecordPanic, which re-panics.
func (s *Span) RecordPanic(recovered interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicVal = recovered
}

// End finishes the span. Ending a transaction hands it to the
// registered exporters when (and only when) its decision was
// SampledTrue. End is idempotent.
func (s *Span) End() {
	s.mu.Lock()
	if !s.endTime.IsZero() {
		s.mu.Unlock()
		return
	}
	s.endTime = time.Now()
	s.mu.Unlock()

	txn := s.Transaction()
	if s != txn {
		if txn.idle != nil {
			txn.idle.childEnded()
		}
		return
	}

	if s.idle != nil {
		s.idle.stop()
	}
	if s.Sampled() == SampledTrue {
		exportTransaction(s)
	}
}

func (s *Span) StartTime() time.Time {
	return s.startTime
}

func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endTime.IsZero() {
		return 0
	}
	return s.endTime.Sub(s.startTime)
}

var ErrMissingValue = errors.New("(MISSING)")

func (s *Span) AppendKVs(keyvals ...interface{}) {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, ErrMissingValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.keyvals = append(s.keyvals, keyvals...)
}

// TraceID is a unique identity of a trace, shared by every span in it.
type TraceID [16]byte

var nilTraceID TraceID
var _ json.Marshaler = nilTraceID

// IsValid checks whether the TraceID is valid. A valid trace ID does
// not consist of zeros only.
func (t TraceID) IsValid() bool {
	return !bytes.Equal(t[:], nilTraceID[:])
}

// MarshalJSON encodes TraceID as a hex string.
func (t TraceID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// String returns the 32-character lowercase hex form of the TraceID.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// ErrIDLength reports a hex identifier of the wrong length.
var ErrIDLength = errors.New("unexpected id length")

// TraceIDFromHex parses a 32-character hex string into a TraceID.
func TraceIDFromHex(h string) (TraceID, error) {
	var t TraceID
	if len(h) != 2*len(t) {
		return t, kerrs.Wrapv(ErrIDLength, "invalid trace id", "value", h)
	}
	if _, err := hex.Decode(t[:], []byte(h)); err != nil {
		return TraceID{}, kerrs.Wrapv(err, "invalid trace id", "value", h)
	}
	return t, nil
}

// SpanID is a unique identity of a span in a trace.
type SpanID [8]byte

var nilSpanID SpanID
var _ json.Marshaler = nilSpanID

// IsValid checks whether the SpanID is valid. A valid SpanID does not
// consist of zeros only.
func (s SpanID) IsValid() bool {
	return !bytes.Equal(s[:], nilSpanID[:])
}

// MarshalJSON encodes SpanID as a hex string.
func (s SpanID) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// String returns the 16-character lowercase hex form of the SpanID.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// SpanIDFromHex parses a 16-character hex string into a SpanID.
func SpanIDFromHex(h string) (SpanID, error) {
	var s SpanID
	if len(h) != 2*len(s) {
		return s, kerrs.Wrapv(ErrIDLength, "invalid span id", "value", h)
	}
	if _, err := hex.Decode(s[:], []byte(h)); err != nil {
		return SpanID{}, kerrs.Wrapv(err, "invalid span id", "value", h)
	}
	return s, nil
}
