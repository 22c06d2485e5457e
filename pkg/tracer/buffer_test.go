package tracer

import (
	"sync"
	"testing"

	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
	r "github.com/stretchr/testify/require"
)

func TestSpanBuffer_EmptyDrain(t *testing.T) {
	b := NewSpanBuffer()
	spans := b.Drain()
	r.NotNil(t, spans)
	r.Empty(t, spans)
}

func TestSpanBuffer_AppendThenDrain(t *testing.T) {
	b := NewSpanBuffer()
	r.True(t, b.Append(mockWireSpan(1)))
	r.True(t, b.Append(mockWireSpan(2)))
	r.Equal(t, 2, b.Len())

	spans := b.Drain()
	r.Len(t, spans, 2)
	r.Equal(t, int64(1), spans[0].SpanId)
	r.Equal(t, int64(2), spans[1].SpanId)

	r.Equal(t, 0, b.Len())
	r.Empty(t, b.Drain())
}

func TestSpanBuffer_ConcurrentAppend(t *testing.T) {
	const (
		numWorkers = 16
		numSpans   = 500
	)
	b := NewSpanBuffer()

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < numSpans; i++ {
				b.Append(mockWireSpan(int64(w*numSpans + i + 1)))
			}
		}(w)
	}
	wg.Wait()

	spans := b.Drain()
	r.Len(t, spans, numWorkers*numSpans)
	seen := make(map[int64]bool, len(spans))
	for _, s := range spans {
		r.False(t, seen[s.SpanId], "span %d drained twice", s.SpanId)
		seen[s.SpanId] = true
	}
	r.Empty(t, b.Drain())
}

func TestSpanBuffer_ConcurrentAppendAndDrain(t *testing.T) {
	const (
		numWorkers = 8
		numSpans   = 1000
	)
	b := NewSpanBuffer()

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < numSpans; i++ {
				b.Append(mockWireSpan(int64(w*numSpans + i + 1)))
			}
		}(w)
	}

	// 单独的 reporter 并发 Drain
	done := make(chan struct{})
	drained := make(chan []*jaeger.Span, 1)
	go func() {
		var all []*jaeger.Span
		for {
			select {
			case <-done:
				drained <- append(all, b.Drain()...)
				return
			default:
				all = append(all, b.Drain()...)
			}
		}
	}()
	wg.Wait()
	close(done)
	all := <-drained

	r.Len(t, all, numWorkers*numSpans)
	seen := make(map[int64]bool, len(all))
	// 每个 worker 内部的顺序保持不变
	last := make(map[int]int64, numWorkers)
	for _, s := range all {
		r.False(t, seen[s.SpanId])
		seen[s.SpanId] = true
		w := int((s.SpanId - 1) / numSpans)
		r.Greater(t, s.SpanId, last[w])
		last[w] = s.SpanId
	}
}

// mockers

func mockWireSpan(id int64) *jaeger.Span {
	return &jaeger.Span{
		TraceIdLow:    id,
		SpanId:        id,
		OperationName: "op",
		References:    []*jaeger.SpanRef{},
	}
}
