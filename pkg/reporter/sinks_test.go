package reporter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
	"github.com/stleox/seetrace/pkg/config"
	r "github.com/stretchr/testify/require"
)

func TestNewSinks_FileSinks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := &config.Options{
		Sinks:       []string{config.SinkLog, config.SinkThrift},
		SpanLogPath: filepath.Join(dir, "spans.log.json"),
		ThriftPath:  filepath.Join(dir, "spans.thrift"),
	}

	sinks, err := NewSinks(ctx, opts)
	r.NoError(t, err)
	r.Len(t, sinks, 2)
	r.Equal(t, "log", sinks[0].Name())
	r.Equal(t, "thrift", sinks[1].Name())

	batch := mockBatch("svc", &jaeger.Span{TraceIdLow: 1, SpanId: 1, OperationName: "op", Flags: 1})
	for _, sink := range sinks {
		r.NoError(t, sink.Send(ctx, batch))
		r.NoError(t, sink.Close(ctx))
	}

	logged, err := os.ReadFile(opts.SpanLogPath)
	r.NoError(t, err)
	r.Contains(t, string(logged), `"msg":"op"`)
	r.Contains(t, string(logged), `"service":"svc"`)

	f, err := os.Open(opts.ThriftPath)
	r.NoError(t, err)
	defer f.Close()
	got, err := ReadFrame(ctx, f)
	r.NoError(t, err)
	r.Equal(t, "op", got.Spans[0].OperationName)
}

func TestNewSinks_ClosesOnError(t *testing.T) {
	dir := t.TempDir()
	opts := &config.Options{
		Sinks:       []string{config.SinkLog, "kafka"},
		SpanLogPath: filepath.Join(dir, "spans.log.json"),
	}

	sinks, err := NewSinks(context.Background(), opts)
	r.ErrorContains(t, err, `unknown sink "kafka"`)
	r.Nil(t, sinks)
}
