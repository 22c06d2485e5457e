package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "seetrace"

var (
	SpansRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spans_recorded_total",
			Help:      "Finished spans appended to the span buffer",
		},
		[]string{"service"},
	)
	SpansDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spans_dropped_total",
			Help:      "Finished spans discarded because they were neither sampled nor debug",
		},
		[]string{"service"},
	)
	SpansBuffered = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "spans_buffered",
			Help:      "Spans waiting in the span buffer for the next report",
		},
		[]string{"service"},
	)
	SamplerDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sampler_decisions_total",
			Help:      "Sampling decisions taken at trace start",
		},
		[]string{"service", "sampler", "decision"},
	)
	ReporterBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reporter_batches_total",
			Help:      "Batches handed to a sink by the reporter",
		},
		[]string{"service", "sink", "result"},
	)
)

// Decision labels a sampling decision.
func Decision(sampled bool) string {
	if sampled {
		return "sampled"
	}
	return "not_sampled"
}
