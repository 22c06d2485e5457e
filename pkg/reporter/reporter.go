package reporter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/stleox/seetrace/pkg/metrics"
	"go.uber.org/multierr"
)

// Sink receives the batches drained by the Reporter.
type Sink interface {
	Name() string
	Send(ctx context.Context, batch *jaeger.Batch) error
	Close(ctx context.Context) error
}

// Source is drained on every report, see tracer.TracerManager.
type Source interface {
	Flush() []*jaeger.Batch
}

// Reporter periodically drains a Source and hands every batch to every sink.
// It is the single consumer of the span buffers.
type Reporter struct {
	source   Source
	sinks    []Sink
	interval time.Duration
	cron     *cron.Cron

	// 保证同一时刻只有一个 Report
	muReport sync.Mutex
}

func New(source Source, interval time.Duration, sinks ...Sink) *Reporter {
	return &Reporter{
		source:   source,
		sinks:    sinks,
		interval: interval,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start schedules Run every interval.
func (rp *Reporter) Start() error {
	_, err := rp.cron.AddJob(fmt.Sprintf("@every %s", rp.interval), rp)
	if err != nil {
		return fmt.Errorf("scheduling reporter: %w", err)
	}
	rp.cron.Start()
	logrus.WithField("interval", rp.interval).Info("SeeTrace started reporter")
	return nil
}

// Run implements cron.Job.
func (rp *Reporter) Run() {
	if err := rp.Report(context.Background()); err != nil {
		logrus.WithError(err).Warn("SeeTrace couldn't report all batches")
	}
}

// Report drains the source once. A failing sink doesn't stop the others; all
// errors are combined.
func (rp *Reporter) Report(ctx context.Context) error {
	rp.muReport.Lock()
	defer rp.muReport.Unlock()

	var errs error
	for _, batch := range rp.source.Flush() {
		service := serviceName(batch)
		for _, sink := range rp.sinks {
			err := sink.Send(ctx, batch)
			if err != nil {
				metrics.ReporterBatches.WithLabelValues(service, sink.Name(), "error").Inc()
				errs = multierr.Append(errs, fmt.Errorf("sink %s: %w", sink.Name(), err))
				continue
			}
			metrics.ReporterBatches.WithLabelValues(service, sink.Name(), "ok").Inc()
		}
		logrus.Debugf("reported %d spans of service %s", len(batch.Spans), service)
	}
	return errs
}

// Close stops the schedule, reports what is left and closes the sinks.
func (rp *Reporter) Close(ctx context.Context) error {
	<-rp.cron.Stop().Done()

	errs := rp.Report(ctx)
	for _, sink := range rp.sinks {
		if err := sink.Close(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("closing sink %s: %w", sink.Name(), err))
		}
	}
	return errs
}

func serviceName(batch *jaeger.Batch) string {
	if batch.Process == nil {
		return ""
	}
	return batch.Process.ServiceName
}
