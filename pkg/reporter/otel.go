package reporter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
	"github.com/stleox/seetrace/pkg/config"
	pkgtracer "github.com/stleox/seetrace/pkg/tracer"
	attr "go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktr "go.opentelemetry.io/otel/sdk/trace"
	tr "go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
)

const instrumentationName = "github.com/stleox/seetrace"

// OtelSink replays finished spans through the OpenTelemetry SDK, keeping
// their ids and timestamps, and exports them with exporter.
type OtelSink struct {
	name     string
	exporter sdktr.SpanExporter

	mu        sync.Mutex
	providers map[string]*sdktr.TracerProvider
}

func NewOTLPSink(ctx context.Context, endpoint string) (*OtelSink, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent("seetrace/" + config.Version)),
	}
	if endpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gRPC exporter: %w", err)
	}
	return NewOtelSink(config.SinkOTLP, exporter), nil
}

func NewStdoutSink() (*OtelSink, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating stdout exporter: %w", err)
	}
	return NewOtelSink(config.SinkStdout, exporter), nil
}

func NewOtelSink(name string, exporter sdktr.SpanExporter) *OtelSink {
	return &OtelSink{
		name:      name,
		exporter:  exporter,
		providers: make(map[string]*sdktr.TracerProvider),
	}
}

func (s *OtelSink) Name() string {
	return s.name
}

func (s *OtelSink) Send(ctx context.Context, batch *jaeger.Batch) error {
	tp := s.provider(batch.Process)
	tracer := tp.Tracer(instrumentationName, tr.WithInstrumentationVersion(config.Version))
	for _, span := range batch.Spans {
		replaySpan(ctx, tracer, span)
	}
	return tp.ForceFlush(ctx)
}

func (s *OtelSink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs error
	for service, tp := range s.providers {
		if err := tp.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shutting down provider of %s: %w", service, err))
		}
	}
	s.providers = make(map[string]*sdktr.TracerProvider)
	return multierr.Append(errs, s.exporter.Shutdown(ctx))
}

// 每个 service 一个 TracerProvider，resource 不同
func (s *OtelSink) provider(process *jaeger.Process) *sdktr.TracerProvider {
	service := config.NameUnknown
	if process != nil && process.ServiceName != "" {
		service = process.ServiceName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tp, ok := s.providers[service]; ok {
		return tp
	}

	attrs := []attr.KeyValue{attr.String("service.name", service)}
	if process != nil {
		for _, tag := range process.Tags {
			attrs = append(attrs, tagAttribute(tag))
		}
	}
	tp := sdktr.NewTracerProvider(
		sdktr.WithBatcher(sharedExporter{s.exporter}),
		sdktr.WithResource(resource.NewSchemaless(attrs...)),
		sdktr.WithIDGenerator(replayIDGenerator{}),
		sdktr.WithSampler(sdktr.AlwaysSample()))
	s.providers[service] = tp
	return tp
}

func replaySpan(ctx context.Context, tracer tr.Tracer, span *jaeger.Span) {
	traceID := pkgtracer.OtelTraceID(uint64(span.TraceIdHigh), uint64(span.TraceIdLow))
	ctx = context.WithValue(ctx, replayIDsKey{}, replayIDs{
		traceID: traceID,
		spanID:  pkgtracer.OtelSpanID(uint64(span.SpanId)),
	})

	start := time.UnixMicro(span.StartTime)
	opts := []tr.SpanStartOption{tr.WithTimestamp(start)}
	if span.ParentSpanId != 0 {
		parent := tr.NewSpanContext(tr.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     pkgtracer.OtelSpanID(uint64(span.ParentSpanId)),
			TraceFlags: tr.FlagsSampled,
			Remote:     true,
		})
		ctx = tr.ContextWithRemoteSpanContext(ctx, parent)
	} else {
		opts = append(opts, tr.WithNewRoot())
	}

	attrs := make([]attr.KeyValue, 0, len(span.Tags))
	failed := false
	for _, tag := range span.Tags {
		switch tag.Key {
		case "span.kind":
			opts = append(opts, tr.WithSpanKind(spanKind(tag.GetVStr())))
			continue
		case "error":
			failed = tag.GetVBool()
		}
		attrs = append(attrs, tagAttribute(tag))
	}
	opts = append(opts, tr.WithAttributes(attrs...))

	_, otelSpan := tracer.Start(ctx, span.OperationName, opts...)
	for _, l := range span.Logs {
		name, fields := "log", make([]attr.KeyValue, 0, len(l.Fields))
		for _, field := range l.Fields {
			if field.Key == "event" && field.VType == jaeger.TagType_STRING {
				name = field.GetVStr()
				continue
			}
			fields = append(fields, tagAttribute(field))
		}
		otelSpan.AddEvent(name,
			tr.WithTimestamp(time.UnixMicro(l.Timestamp)),
			tr.WithAttributes(fields...))
	}
	if failed {
		otelSpan.SetStatus(codes.Error, "")
	}
	otelSpan.End(tr.WithTimestamp(start.Add(time.Duration(span.Duration) * time.Microsecond)))
}

func spanKind(kind string) tr.SpanKind {
	switch kind {
	case "server":
		return tr.SpanKindServer
	case "client":
		return tr.SpanKindClient
	case "producer":
		return tr.SpanKindProducer
	case "consumer":
		return tr.SpanKindConsumer
	default:
		return tr.SpanKindInternal
	}
}

func tagAttribute(tag *jaeger.Tag) attr.KeyValue {
	switch tag.VType {
	case jaeger.TagType_DOUBLE:
		return attr.Float64(tag.Key, tag.GetVDouble())
	case jaeger.TagType_BOOL:
		return attr.Bool(tag.Key, tag.GetVBool())
	case jaeger.TagType_LONG:
		return attr.Int64(tag.Key, tag.GetVLong())
	case jaeger.TagType_BINARY:
		return attr.String(tag.Key, fmt.Sprintf("%x", tag.GetVBinary()))
	default:
		return attr.String(tag.Key, tag.GetVStr())
	}
}

type replayIDsKey struct{}

type replayIDs struct {
	traceID tr.TraceID
	spanID  tr.SpanID
}

// replayIDGenerator hands out the ids carried by the Start context instead of
// random ones.
type replayIDGenerator struct{}

func (replayIDGenerator) NewIDs(ctx context.Context) (tr.TraceID, tr.SpanID) {
	ids, _ := ctx.Value(replayIDsKey{}).(replayIDs)
	return ids.traceID, ids.spanID
}

func (replayIDGenerator) NewSpanID(ctx context.Context, _ tr.TraceID) tr.SpanID {
	ids, _ := ctx.Value(replayIDsKey{}).(replayIDs)
	return ids.spanID
}

// sharedExporter is registered with every provider; only OtelSink.Close shuts
// the real exporter down.
type sharedExporter struct {
	sdktr.SpanExporter
}

func (sharedExporter) Shutdown(context.Context) error {
	return nil
}
