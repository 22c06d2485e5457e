package reporter

import (
	"context"
	"time"

	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
	"github.com/sirupsen/logrus"
	pkgtracer "github.com/stleox/seetrace/pkg/tracer"
)

// LogSink writes one entry per span to a logrus logger.
type LogSink struct {
	logger *logrus.Logger
	close  func() error
}

// NewLogSink logs to logger; closeFn, if not nil, is called on Close.
func NewLogSink(logger *logrus.Logger, closeFn func() error) *LogSink {
	return &LogSink{logger: logger, close: closeFn}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Send(_ context.Context, batch *jaeger.Batch) error {
	service := serviceName(batch)
	for _, span := range batch.Spans {
		fields := logrus.Fields{
			"service":   service,
			"trace_id":  pkgtracer.OtelTraceID(uint64(span.TraceIdHigh), uint64(span.TraceIdLow)).String(),
			"span_id":   pkgtracer.OtelSpanID(uint64(span.SpanId)).String(),
			"parent_id": pkgtracer.OtelSpanID(uint64(span.ParentSpanId)).String(),
			"flags":     span.Flags,
			"start":     time.UnixMicro(span.StartTime).UTC().Format(time.RFC3339Nano),
			"duration":  (time.Duration(span.Duration) * time.Microsecond).String(),
		}
		if len(span.Tags) > 0 {
			tags := make(map[string]any, len(span.Tags))
			for _, tag := range span.Tags {
				tags[tag.Key] = pkgtracer.TagValue(tag)
			}
			fields["tags"] = tags
		}
		if len(span.Logs) > 0 {
			fields["logs"] = len(span.Logs)
		}
		s.logger.WithFields(fields).Info(span.OperationName)
	}
	return nil
}

func (s *LogSink) Close(context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
