package tracing

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
)

type IDGenerator interface {
	NewTraceID() TraceID
	NewSpanID() SpanID
}

// lockedSource is a crypto-seeded math/rand source safe for concurrent
// transaction starts. Both the ID generator and the sampling draw run
// on one of these.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedSource() *lockedSource {
	var seed int64
	_ = binary.Read(crand.Reader, binary.LittleEndian, &seed)
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) read(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.Read(p)
}

// float64 draws uniformly from [0, 1).
func (s *lockedSource) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

type randomIDGenerator struct {
	source *lockedSource
}

var _ IDGenerator = &randomIDGenerator{}

func (gen *randomIDGenerator) NewTraceID() TraceID {
	tid := TraceID{}
	gen.source.read(tid[:])
	return tid
}

func (gen *randomIDGenerator) NewSpanID() SpanID {
	sid := SpanID{}
	gen.source.read(sid[:])
	return sid
}

func defaultIDGenerator() IDGenerator {
	return &randomIDGenerator{source: newLockedSource()}
}
