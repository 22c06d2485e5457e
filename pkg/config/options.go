package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/stleox/seetrace/pkg/sampler"
)

// viper keys
const (
	KeyServiceName       = "service-name"
	KeySamplerType       = "sampler-type"
	KeySamplerParam      = "sampler-param"
	KeySamplerLowerBound = "sampler-lower-bound"
	KeyReportInterval    = "report-interval"
	KeyMaxTracers        = "max-tracers"
	KeySinks             = "sinks"
	KeySpanLogPath       = "span-log-path"
	KeyThriftPath        = "thrift-path"
	KeyOlapDSN           = "olap-dsn"
	KeyOTLPEndpoint      = "otlp-endpoint"
)

// sink names
const (
	SinkLog    = "log"
	SinkThrift = "thrift"
	SinkOlap   = "olap"
	SinkOTLP   = "otlp"
	SinkStdout = "stdout"
)

// Options is the validated runtime configuration.
type Options struct {
	ServiceName    string
	Sampler        sampler.Config
	ReportInterval time.Duration
	MaxTracers     int
	Sinks          []string
	SpanLogPath    string
	ThriftPath     string
	OlapDSN        string
	OTLPEndpoint   string
}

// SetDefaults registers the default of every key on vp.
func SetDefaults(vp *viper.Viper) {
	vp.SetDefault(KeyServiceName, NameUnknown)
	vp.SetDefault(KeySamplerType, sampler.TypeRateLimiting)
	vp.SetDefault(KeySamplerParam, DefaultMaxTracesPerSecond)
	vp.SetDefault(KeySamplerLowerBound, 1.0)
	vp.SetDefault(KeyReportInterval, ReportInterval)
	vp.SetDefault(KeyMaxTracers, MaxNumTracer)
	vp.SetDefault(KeySinks, []string{SinkLog})
	vp.SetDefault(KeySpanLogPath, PathSpanLog)
	vp.SetDefault(KeyThriftPath, PathThrift)
	vp.SetDefault(KeyOlapDSN, SEETRACE_DEFAULT_DSN)
	vp.SetDefault(KeyOTLPEndpoint, "")
}

// Load reads Options from vp and validates them. Sampler errors wrap
// sampler.ErrInvalidConfiguration.
func Load(vp *viper.Viper) (*Options, error) {
	SetDefaults(vp)

	opts := &Options{
		ServiceName: vp.GetString(KeyServiceName),
		Sampler: sampler.Config{
			Type:       vp.GetString(KeySamplerType),
			Param:      vp.GetFloat64(KeySamplerParam),
			LowerBound: vp.GetFloat64(KeySamplerLowerBound),
		},
		ReportInterval: vp.GetDuration(KeyReportInterval),
		MaxTracers:     vp.GetInt(KeyMaxTracers),
		Sinks:          normalizeSinks(vp.GetStringSlice(KeySinks)),
		SpanLogPath:    vp.GetString(KeySpanLogPath),
		ThriftPath:     vp.GetString(KeyThriftPath),
		OlapDSN:        vp.GetString(KeyOlapDSN),
		OTLPEndpoint:   vp.GetString(KeyOTLPEndpoint),
	}

	if opts.ServiceName == "" {
		return nil, fmt.Errorf("%s must not be empty", KeyServiceName)
	}
	if _, err := sampler.New(opts.Sampler); err != nil {
		return nil, err
	}
	if opts.ReportInterval < time.Second {
		return nil, fmt.Errorf("%s must be at least 1s, got %s", KeyReportInterval, opts.ReportInterval)
	}
	if opts.MaxTracers <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %d", KeyMaxTracers, opts.MaxTracers)
	}
	for _, sink := range opts.Sinks {
		switch sink {
		case SinkLog, SinkThrift, SinkOlap, SinkOTLP, SinkStdout:
		default:
			return nil, fmt.Errorf("unknown sink %q", sink)
		}
	}
	return opts, nil
}

// 兼容 "log,thrift" 这种从环境变量读到的写法
func normalizeSinks(raw []string) []string {
	sinks := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, s := range strings.Split(item, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sinks = append(sinks, strings.ToLower(s))
			}
		}
	}
	return sinks
}
