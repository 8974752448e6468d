package tracing

import "sync"

// defaultMaxSpans caps recorders whose transaction did not configure
// an explicit limit.
const defaultMaxSpans = 1000

// spanRecorder collects the spans of one sampled transaction. It
// exists only on transactions whose decision is SampledTrue; a dropped
// transaction never allocates one.
type spanRecorder struct {
	mu       sync.Mutex
	maxSpans int
	spans    []*Span
	dropped  int
}

func newSpanRecorder(maxSpans int) *spanRecorder {
	if maxSpans <= 0 {
		maxSpans = defaultMaxSpans
	}
	return &spanRecorder{maxSpans: maxSpans}
}

// record adds s unless the cap is exhausted. Spans past the cap are
// counted, not kept; the span itself stays usable.
func (r *spanRecorder) record(s *Span) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.spans) >= r.maxSpans {
		r.dropped++
		return false
	}
	r.spans = append(r.spans, s)
	return true
}

func (r *spanRecorder) recorded() []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	spans := make([]*Span, len(r.spans))
	copy(spans, r.spans)
	return spans
}

func (r *spanRecorder) droppedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
