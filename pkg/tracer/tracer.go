package tracer

import (
	"math/rand/v2"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stleox/seetrace/pkg/config"
	"github.com/stleox/seetrace/pkg/metrics"
	"github.com/stleox/seetrace/pkg/sampler"
)

const (
	TagSamplerType  = "sampler.type"
	TagSamplerParam = "sampler.param"
	TagHostname     = "hostname"
	TagVersion      = "seetrace.version"
)

// Tracer starts spans for one service. The sampling decision is taken once per
// trace, when the root span starts, and finished spans go to the Tracer's own
// Collector.
type Tracer struct {
	serviceName string
	sampler     sampler.Sampler
	collector   *Collector

	// process tags
	tags []Tag
}

func NewTracer(serviceName string, s sampler.Sampler) *Tracer {
	t := &Tracer{
		serviceName: serviceName,
		sampler:     s,
		collector:   NewCollector(serviceName),
		tags:        []Tag{{Key: TagVersion, Value: config.Version}},
	}
	if hostname, err := os.Hostname(); err == nil {
		t.tags = append(t.tags, Tag{Key: TagHostname, Value: hostname})
	} else {
		logrus.WithError(err).Warn("SeeTrace couldn't resolve hostname")
	}
	return t
}

func (t *Tracer) ServiceName() string {
	return t.serviceName
}

func (t *Tracer) Sampler() sampler.Sampler {
	return t.sampler
}

func (t *Tracer) Collector() *Collector {
	return t.collector
}

// ProcessTags describes the process emitting the spans.
func (t *Tracer) ProcessTags() []Tag {
	return t.tags
}

// StartSpan starts a root span, or a child span when ChildOf is given.
func (t *Tracer) StartSpan(operationName string, opts ...SpanOption) *Span {
	var o spanOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.startTime.IsZero() {
		o.startTime = time.Now()
	}

	span := &Span{
		tracer:        t,
		operationName: operationName,
		startTime:     o.startTime,
		tags:          o.tags,
	}

	if o.parent.IsValid() {
		span.context = TraceContext{
			TraceIDHigh:  o.parent.TraceIDHigh,
			TraceID:      o.parent.TraceID,
			SpanID:       randomID(),
			ParentSpanID: o.parent.SpanID,
			Flags:        o.parent.Flags,
		}
		return span
	}

	// 新 trace，根 span 的 SpanID 与 TraceID 相同
	traceID := randomID()
	span.context = TraceContext{TraceID: traceID, SpanID: traceID}
	if o.debug {
		span.context.Flags = FlagSampled | FlagDebug
		metrics.SamplerDecisions.WithLabelValues(t.serviceName, t.sampler.Type(), metrics.Decision(true)).Inc()
		return span
	}

	decision := sampler.Decide(t.sampler, traceID, operationName)
	if decision.Sampled {
		span.context.Flags = FlagSampled
		span.tags = append(span.tags,
			Tag{Key: TagSamplerType, Value: decision.Type},
			Tag{Key: TagSamplerParam, Value: decision.Param},
		)
	}
	metrics.SamplerDecisions.WithLabelValues(t.serviceName, decision.Type, metrics.Decision(decision.Sampled)).Inc()
	return span
}

func randomID() uint64 {
	for {
		if id := rand.Uint64(); id != 0 {
			return id
		}
	}
}
