package tracer

import (
	"sync"

	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
)

// SpanBuffer hands wire spans from many producers to a single consumer.
// It is unbounded: if the consumer stops draining, the buffer keeps growing.
type SpanBuffer struct {
	// 被 Record 并发访问，被 reporter 单独 Drain
	mu    sync.Mutex
	spans []*jaeger.Span
}

func NewSpanBuffer() *SpanBuffer {
	return &SpanBuffer{}
}

// Append always succeeds.
func (b *SpanBuffer) Append(span *jaeger.Span) bool {
	b.mu.Lock()
	b.spans = append(b.spans, span)
	b.mu.Unlock()
	return true
}

// Drain returns every span appended since the previous Drain and empties the
// buffer. The result is never nil.
func (b *SpanBuffer) Drain() []*jaeger.Span {
	b.mu.Lock()
	spans := b.spans
	b.spans = nil
	b.mu.Unlock()

	if spans == nil {
		return []*jaeger.Span{}
	}
	return spans
}

func (b *SpanBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.spans)
}
