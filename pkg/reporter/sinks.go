package reporter

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/stleox/seetrace/pkg/config"
	"go.uber.org/multierr"
)

// NewSinks builds the sinks named in opts.Sinks, in order. On error every
// sink already built is closed.
func NewSinks(ctx context.Context, opts *config.Options) (sinks []Sink, err error) {
	defer func() {
		if err == nil {
			return
		}
		for _, sink := range sinks {
			err = multierr.Append(err, sink.Close(ctx))
		}
		sinks = nil
	}()

	for _, name := range opts.Sinks {
		sink, err := newSink(ctx, name, opts)
		if err != nil {
			return sinks, fmt.Errorf("creating sink %s: %w", name, err)
		}
		logrus.WithField("sink", name).Debug("SeeTrace created sink")
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func newSink(ctx context.Context, name string, opts *config.Options) (Sink, error) {
	switch name {
	case config.SinkLog:
		logger, closeFn, err := config.NewFileLogger(opts.SpanLogPath)
		if err != nil {
			return nil, err
		}
		return NewLogSink(logger, closeFn), nil
	case config.SinkThrift:
		f, err := os.OpenFile(opts.ThriftPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		return NewThriftSink(f), nil
	case config.SinkOlap:
		return NewOlapSink(opts.OlapDSN)
	case config.SinkOTLP:
		return NewOTLPSink(ctx, opts.OTLPEndpoint)
	case config.SinkStdout:
		return NewStdoutSink()
	default:
		return nil, fmt.Errorf("unknown sink %q", name)
	}
}
