package tracer

import (
	"sync"
	"time"

	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
	"github.com/sirupsen/logrus"
	"github.com/stleox/seetrace/pkg/metrics"
)

// Collector turns finished spans into wire spans and keeps them until the
// reporter flushes. One Collector belongs to one service.
type Collector struct {
	service string
	buffer  *SpanBuffer

	// retire 之后 Record 改投 redirect，保证 span 不会留在无人 Drain 的 buffer 里
	muRetire sync.RWMutex
	redirect func(*jaeger.Span)
}

func NewCollector(service string) *Collector {
	return &Collector{
		service: service,
		buffer:  NewSpanBuffer(),
	}
}

// Record finalizes span at endTime. Spans that are neither sampled nor debug
// are dropped without error.
func (c *Collector) Record(span *Span, endTime time.Time) {
	ctx := span.Context()
	startTs, duration := buildTimestamps(span.StartTime(), endTime)
	if !ctx.IsSampled() && !ctx.IsDebug() {
		metrics.SpansDropped.WithLabelValues(c.service).Inc()
		return
	}

	c.append(&jaeger.Span{
		TraceIdLow:    int64(ctx.TraceID),
		TraceIdHigh:   int64(ctx.TraceIDHigh),
		SpanId:        int64(ctx.SpanID),
		ParentSpanId:  int64(ctx.ParentSpanID),
		OperationName: span.OperationName(),
		References:    []*jaeger.SpanRef{},
		Flags:         int32(ctx.Flags),
		StartTime:     startTs,
		Duration:      duration,
		Tags:          buildTags(span.Tags()),
		Logs:          buildLogs(span.Logs()),
	})
	metrics.SpansRecorded.WithLabelValues(c.service).Inc()

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.WithField("service", c.service).Debugf("recorded span %s %s", ctx, span.OperationName())
	}
}

func (c *Collector) append(span *jaeger.Span) {
	c.muRetire.RLock()
	redirect := c.redirect
	if redirect == nil {
		c.buffer.Append(span)
		metrics.SpansBuffered.WithLabelValues(c.service).Inc()
	}
	c.muRetire.RUnlock()

	if redirect != nil {
		redirect(span)
	}
}

// retire drains the buffer for the last time. Spans recorded afterwards are
// passed to redirect instead of being buffered.
func (c *Collector) retire(redirect func(*jaeger.Span)) []*jaeger.Span {
	c.muRetire.Lock()
	defer c.muRetire.Unlock()
	c.redirect = redirect
	return c.Flush()
}

// Flush returns every span recorded since the previous Flush.
func (c *Collector) Flush() []*jaeger.Span {
	spans := c.buffer.Drain()
	metrics.SpansBuffered.WithLabelValues(c.service).Sub(float64(len(spans)))
	return spans
}

// Len returns the number of spans waiting for the next Flush.
func (c *Collector) Len() int {
	return c.buffer.Len()
}

// 返回 startTime 和 duration，单位均为微秒
func buildTimestamps(start, end time.Time) (int64, int64) {
	startTs := toMicros(start)
	endTs := toMicros(end)
	return startTs, endTs - startTs
}

// 四舍五入到微秒
func toMicros(t time.Time) int64 {
	us := t.UnixMicro()
	if t.Nanosecond()%1000 >= 500 {
		us++
	}
	return us
}
