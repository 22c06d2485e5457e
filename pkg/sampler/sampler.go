package sampler

import (
	"errors"
	"fmt"
)

const (
	TypeConst         = "const"
	TypeProbabilistic = "probabilistic"
	TypeRateLimiting  = "ratelimiting"
	TypeLowerBound    = "lowerbound"
)

// ErrInvalidConfiguration is returned when a sampler or rate limiter is
// built with parameters it cannot honour.
var ErrInvalidConfiguration = errors.New("invalid sampler configuration")

// Sampler decides whether a new trace is sampled. The decision is taken once,
// when the root span starts, and is propagated to the whole trace through the
// span context flags.
type Sampler interface {
	// Sample must accept any trace id and operation name.
	Sample(traceID uint64, operation string) bool

	// Type is reported as the sampler.type tag on sampled root spans.
	Type() string

	// Param is reported as the sampler.param tag on sampled root spans.
	Param() float64
}

// Decision is the outcome of one sampling call, with the sampler type and
// parameter that produced it.
type Decision struct {
	Sampled bool
	Type    string
	Param   float64
}

// Decider is implemented by samplers combining several policies, to report
// which one took the decision.
type Decider interface {
	Decide(traceID uint64, operation string) Decision
}

// Decide samples with s and describes the decision.
func Decide(s Sampler, traceID uint64, operation string) Decision {
	if d, ok := s.(Decider); ok {
		return d.Decide(traceID, operation)
	}
	return Decision{
		Sampled: s.Sample(traceID, operation),
		Type:    s.Type(),
		Param:   s.Param(),
	}
}

// Config selects and parameterizes a Sampler.
type Config struct {
	Type string
	// Param 的含义取决于 Type：
	// const 为 0/1，probabilistic 为采样率，ratelimiting 为每秒最大 trace 数
	Param float64
	// LowerBound 仅用于 lowerbound，单位为每秒 trace 数
	LowerBound float64
}

// New builds the sampler described by cfg.
func New(cfg Config) (Sampler, error) {
	switch cfg.Type {
	case TypeConst:
		return NewConstSampler(cfg.Param != 0), nil
	case TypeProbabilistic:
		return NewProbabilisticSampler(cfg.Param)
	case TypeRateLimiting:
		return NewRateLimitingSampler(cfg.Param)
	case TypeLowerBound:
		return NewGuaranteedThroughputSampler(cfg.LowerBound, cfg.Param)
	default:
		return nil, fmt.Errorf("%w: unknown sampler type %q", ErrInvalidConfiguration, cfg.Type)
	}
}
