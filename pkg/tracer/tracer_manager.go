package tracer

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
	"github.com/sirupsen/logrus"
	"github.com/stleox/seetrace/pkg/config"
	"github.com/stleox/seetrace/pkg/metrics"
	"github.com/stleox/seetrace/pkg/sampler"
)

// TracerManager keeps one Tracer per service name. Each service gets its own
// sampler, so services never share a rate-limiter budget.
type TracerManager struct {
	samplerConfig sampler.Config

	// cache: ServiceName -> Tracer
	tracers *lru.Cache[string, *Tracer]
	muNew   sync.Mutex

	// ServiceName -> Sampler，不随 tracer 淘汰，重建 tracer 时沿用原有额度
	samplers map[string]sampler.Sampler

	// 被淘汰的 tracer 中尚未上报的 span
	muPending sync.Mutex
	pending   []*jaeger.Batch
}

func NewTracerManager(cfg sampler.Config) (*TracerManager, error) {
	// 提前校验采样配置
	if _, err := sampler.New(cfg); err != nil {
		return nil, err
	}

	tm := &TracerManager{
		samplerConfig: cfg,
		samplers:      make(map[string]sampler.Sampler),
	}
	tracers, err := lru.NewWithEvict[string, *Tracer](config.MaxNumTracer, tm.onEvict)
	if err != nil {
		return nil, fmt.Errorf("creating tracer cache: %w", err)
	}
	tm.tracers = tracers
	return tm, nil
}

// GetTracer returns the Tracer of service, creating it on first use. A service
// whose Tracer was evicted gets a new Tracer sharing the previous sampler.
func (tm *TracerManager) GetTracer(service string) (*Tracer, error) {
	if t, hit := tm.tracers.Get(service); hit {
		return t, nil
	}

	tm.muNew.Lock()
	defer tm.muNew.Unlock()
	// double check
	if t, hit := tm.tracers.Get(service); hit {
		return t, nil
	}

	s, ok := tm.samplers[service]
	if !ok {
		var err error
		if s, err = sampler.New(tm.samplerConfig); err != nil {
			return nil, err
		}
		tm.samplers[service] = s
	}
	t := NewTracer(service, s)
	tm.tracers.Add(service, t)
	logrus.Debugf("add new tracer for service: %s", service)
	return t, nil
}

// Len returns the number of live tracers.
func (tm *TracerManager) Len() int {
	return tm.tracers.Len()
}

// Flush drains every tracer and returns one batch per service with spans.
// Spans of evicted tracers are included.
func (tm *TracerManager) Flush() []*jaeger.Batch {
	tm.muPending.Lock()
	batches := tm.pending
	tm.pending = nil
	tm.muPending.Unlock()

	for _, t := range tm.tracers.Values() {
		if batch := buildBatch(t); batch != nil {
			batches = append(batches, batch)
		}
	}
	return batches
}

// 淘汰时最后一次取空 buffer；之后仍持有旧 tracer 的调用方
// 记录的 span 转交给该 service 当前的 tracer
func (tm *TracerManager) onEvict(service string, t *Tracer) {
	spans := t.Collector().retire(func(span *jaeger.Span) {
		tm.adopt(service, span)
	})
	if len(spans) == 0 {
		return
	}
	logrus.Debugf("evicted tracer for service %s with %d spans", service, len(spans))
	tm.muPending.Lock()
	tm.pending = append(tm.pending, newBatch(t, spans))
	tm.muPending.Unlock()
}

func (tm *TracerManager) adopt(service string, span *jaeger.Span) {
	t, err := tm.GetTracer(service)
	if err != nil {
		// 采样配置已在 NewTracerManager 中校验过，不应出现
		logrus.WithError(err).Errorf("SeeTrace dropped a span of evicted service %s", service)
		metrics.SpansDropped.WithLabelValues(service).Inc()
		return
	}
	t.Collector().append(span)
}

func buildBatch(t *Tracer) *jaeger.Batch {
	spans := t.Collector().Flush()
	if len(spans) == 0 {
		return nil
	}
	return newBatch(t, spans)
}

func newBatch(t *Tracer, spans []*jaeger.Span) *jaeger.Batch {
	return &jaeger.Batch{
		Process: &jaeger.Process{
			ServiceName: t.ServiceName(),
			Tags:        buildTags(t.ProcessTags()),
		},
		Spans: spans,
	}
}
