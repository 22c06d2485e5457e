package reporter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
	"github.com/stleox/seetrace/pkg/sampler"
	"github.com/stleox/seetrace/pkg/tracer"
	r "github.com/stretchr/testify/require"
)

func TestReporter_Report(t *testing.T) {
	tm := mockTracerManager(t)
	sink := &memorySink{name: "mem"}
	rp := New(tm, time.Second, sink)

	foo, _ := tm.GetTracer("foo")
	bar, _ := tm.GetTracer("bar")
	foo.StartSpan("a").Finish()
	bar.StartSpan("b").Finish()

	r.NoError(t, rp.Report(context.Background()))
	r.Equal(t, 2, sink.numSpans())

	// 已经取走，不会重复上报
	r.NoError(t, rp.Report(context.Background()))
	r.Equal(t, 2, sink.numSpans())
}

func TestReporter_SinkErrorsAreCombined(t *testing.T) {
	tm := mockTracerManager(t)
	good := &memorySink{name: "good"}
	bad1 := &memorySink{name: "bad1", err: errors.New("boom")}
	bad2 := &memorySink{name: "bad2", err: errors.New("bang")}
	rp := New(tm, time.Second, bad1, good, bad2)

	foo, _ := tm.GetTracer("foo")
	foo.StartSpan("a").Finish()

	err := rp.Report(context.Background())
	r.Error(t, err)
	r.ErrorContains(t, err, "sink bad1: boom")
	r.ErrorContains(t, err, "sink bad2: bang")
	r.Equal(t, 1, good.numSpans())
}

func TestReporter_CloseFlushesRemaining(t *testing.T) {
	tm := mockTracerManager(t)
	sink := &memorySink{name: "mem"}
	rp := New(tm, time.Hour, sink)
	r.NoError(t, rp.Start())

	foo, _ := tm.GetTracer("foo")
	foo.StartSpan("a").Finish()

	r.NoError(t, rp.Close(context.Background()))
	r.Equal(t, 1, sink.numSpans())
	r.True(t, sink.closed)
}

func TestReporter_CloseWithoutStart(t *testing.T) {
	rp := New(mockTracerManager(t), time.Second)
	r.NoError(t, rp.Close(context.Background()))
}

// mockers

type memorySink struct {
	name string
	err  error

	mu      sync.Mutex
	batches []*jaeger.Batch
	closed  bool
}

func (s *memorySink) Name() string {
	return s.name
}

func (s *memorySink) Send(_ context.Context, batch *jaeger.Batch) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return nil
}

func (s *memorySink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) numSpans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, batch := range s.batches {
		n += len(batch.Spans)
	}
	return n
}

func mockTracerManager(t *testing.T) *tracer.TracerManager {
	t.Helper()
	tm, err := tracer.NewTracerManager(sampler.Config{Type: sampler.TypeConst, Param: 1})
	r.NoError(t, err)
	return tm
}

func mockBatch(service string, spans ...*jaeger.Span) *jaeger.Batch {
	return &jaeger.Batch{
		Process: &jaeger.Process{
			ServiceName: service,
			Tags:        []*jaeger.Tag{tracer.BuildTag("hostname", "test-host")},
		},
		Spans: spans,
	}
}
