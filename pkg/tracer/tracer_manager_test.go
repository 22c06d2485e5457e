package tracer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stleox/seetrace/pkg/config"
	"github.com/stleox/seetrace/pkg/sampler"
	r "github.com/stretchr/testify/require"
)

func TestTracerManager_InvalidSampler(t *testing.T) {
	_, err := NewTracerManager(sampler.Config{Type: sampler.TypeRateLimiting, Param: -1})
	r.ErrorIs(t, err, sampler.ErrInvalidConfiguration)
}

func TestTracerManager_GetTracer(t *testing.T) {
	tm := mockNewTracerManager(t)

	a, err := tm.GetTracer("foo")
	r.NoError(t, err)
	b, err := tm.GetTracer("foo")
	r.NoError(t, err)
	c, err := tm.GetTracer("bar")
	r.NoError(t, err)

	r.Same(t, a, b)
	r.NotSame(t, a, c)
	// 每个 service 独立的 sampler
	r.NotSame(t, a.Sampler(), c.Sampler())
	r.Equal(t, 2, tm.Len())
}

func TestTracerManager_Flush(t *testing.T) {
	tm := mockNewTracerManager(t)

	foo, _ := tm.GetTracer("foo")
	bar, _ := tm.GetTracer("bar")
	_, _ = tm.GetTracer("idle")
	foo.StartSpan("a").Finish()
	foo.StartSpan("b").Finish()
	bar.StartSpan("c").Finish()

	batches := tm.Flush()
	r.Len(t, batches, 2)
	counts := make(map[string]int)
	for _, batch := range batches {
		counts[batch.Process.ServiceName] = len(batch.Spans)
		r.NotEmpty(t, batch.Process.Tags)
	}
	r.Equal(t, map[string]int{"foo": 2, "bar": 1}, counts)

	r.Empty(t, tm.Flush())
}

func TestTracerManager_EvictionKeepsSpans(t *testing.T) {
	defer mockMaxNumTracer(2)()

	tm := mockNewTracerManager(t)
	first, _ := tm.GetTracer("svc-0")
	first.StartSpan("op").Finish()

	for i := 1; i <= 3; i++ {
		_, err := tm.GetTracer(fmt.Sprintf("svc-%d", i))
		r.NoError(t, err)
	}
	r.Equal(t, 2, tm.Len())

	batches := tm.Flush()
	r.Len(t, batches, 1)
	r.Equal(t, "svc-0", batches[0].Process.ServiceName)
	r.Len(t, batches[0].Spans, 1)
}

func TestTracerManager_SpanFinishedAfterEviction(t *testing.T) {
	defer mockMaxNumTracer(1)()

	tm := mockNewTracerManager(t)
	a, _ := tm.GetTracer("svc-a")
	held := a.StartSpan("held")

	_, err := tm.GetTracer("svc-b")
	r.NoError(t, err)
	r.Empty(t, tm.Flush())

	// 旧 tracer 已被淘汰，span 仍要被上报
	held.Finish()
	a.StartSpan("late").Finish()

	reported := 0
	for i := 0; i < 3; i++ {
		for _, batch := range tm.Flush() {
			r.Equal(t, "svc-a", batch.Process.ServiceName)
			reported += len(batch.Spans)
		}
	}
	r.Equal(t, 2, reported)
	r.Zero(t, a.Collector().Len())
}

func TestTracerManager_SamplerSurvivesEviction(t *testing.T) {
	defer mockMaxNumTracer(1)()

	tm, err := NewTracerManager(sampler.Config{Type: sampler.TypeRateLimiting, Param: 1})
	r.NoError(t, err)

	first, _ := tm.GetTracer("svc-a")
	s := first.Sampler()

	sampled := 0
	for i := 0; i < 100; i++ {
		a, err := tm.GetTracer("svc-a")
		r.NoError(t, err)
		if a.StartSpan("root").Context().IsSampled() {
			sampled++
		}
		// 淘汰 svc-a
		_, err = tm.GetTracer("svc-b")
		r.NoError(t, err)
	}
	// 1 trace/s，测试耗时远小于 1s，只有初始额度
	r.LessOrEqual(t, sampled, 2)

	again, _ := tm.GetTracer("svc-a")
	r.Same(t, s, again.Sampler())
}

func TestTracerManager_ConcurrentEviction(t *testing.T) {
	defer mockMaxNumTracer(2)()

	const (
		numWorkers = 8
		numSpans   = 200
	)
	tm := mockNewTracerManager(t)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < numSpans; i++ {
				held, err := tm.GetTracer(fmt.Sprintf("svc-%d", (w+i)%5))
				if err != nil {
					t.Error(err)
					return
				}
				span := held.StartSpan("op")
				_, _ = tm.GetTracer(fmt.Sprintf("svc-%d", (w+i+1)%5))
				span.Finish()
			}
		}(w)
	}

	reported := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		for _, batch := range tm.Flush() {
			reported += len(batch.Spans)
		}
	}
	r.Equal(t, numWorkers*numSpans, reported)
}

// mockers

func mockMaxNumTracer(n int) func() {
	old := config.MaxNumTracer
	config.MaxNumTracer = n
	return func() { config.MaxNumTracer = old }
}

func mockNewTracerManager(t *testing.T) *TracerManager {
	t.Helper()
	tm, err := NewTracerManager(sampler.Config{Type: sampler.TypeConst, Param: 1})
	r.NoError(t, err)
	return tm
}
