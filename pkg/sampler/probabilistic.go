package sampler

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// 只看 trace id 的低 63 位，与其他语言的客户端保持一致
const maxRandomNumber = ^(uint64(1) << 63)

// ProbabilisticSampler samples a fixed fraction of traces. The decision is a
// pure function of the trace id, so every process seeing the same trace
// agrees on it.
type ProbabilisticSampler struct {
	rate     float64
	boundary uint64
}

func NewProbabilisticSampler(rate float64) (*ProbabilisticSampler, error) {
	if rate < 0.0 || rate > 1.0 {
		return nil, fmt.Errorf("%w: sampling rate must be between 0.0 and 1.0, got %v", ErrInvalidConfiguration, rate)
	}
	return &ProbabilisticSampler{
		rate:     rate,
		boundary: uint64(float64(maxRandomNumber) * rate),
	}, nil
}

func (s *ProbabilisticSampler) Sample(traceID uint64, _ string) bool {
	return traceID&maxRandomNumber < s.boundary
}

func (s *ProbabilisticSampler) Type() string {
	return TypeProbabilistic
}

func (s *ProbabilisticSampler) Param() float64 {
	return s.rate
}

// GuaranteedThroughputSampler combines a ProbabilisticSampler with a
// RateLimitingSampler acting as a lower bound: a trace is sampled when the
// probabilistic sampler admits it, or otherwise when the lower bound still has
// credit.
type GuaranteedThroughputSampler struct {
	probabilistic atomic.Pointer[ProbabilisticSampler]
	lowerBound    *RateLimitingSampler

	muUpdate sync.Mutex
}

func NewGuaranteedThroughputSampler(lowerBound, rate float64) (*GuaranteedThroughputSampler, error) {
	probabilistic, err := NewProbabilisticSampler(rate)
	if err != nil {
		return nil, err
	}
	lower, err := NewRateLimitingSampler(lowerBound)
	if err != nil {
		return nil, err
	}
	s := &GuaranteedThroughputSampler{lowerBound: lower}
	s.probabilistic.Store(probabilistic)
	return s, nil
}

func (s *GuaranteedThroughputSampler) Sample(traceID uint64, operation string) bool {
	return s.Decide(traceID, operation).Sampled
}

// Decide reports the probabilistic sampler as the decider when it admits the
// trace, and the lower bound otherwise.
func (s *GuaranteedThroughputSampler) Decide(traceID uint64, operation string) Decision {
	probabilistic := s.probabilistic.Load()
	if probabilistic.Sample(traceID, operation) {
		// 仍然扣减 lower bound 的额度，否则突发时会超出下限
		s.lowerBound.Sample(traceID, operation)
		return Decision{Sampled: true, Type: TypeProbabilistic, Param: probabilistic.Param()}
	}
	return Decision{
		Sampled: s.lowerBound.Sample(traceID, operation),
		Type:    TypeLowerBound,
		Param:   s.lowerBound.Param(),
	}
}

func (s *GuaranteedThroughputSampler) Type() string {
	return TypeLowerBound
}

// Param returns the probabilistic rate.
func (s *GuaranteedThroughputSampler) Param() float64 {
	return s.probabilistic.Load().Param()
}

// LowerBound returns the guaranteed traces per second.
func (s *GuaranteedThroughputSampler) LowerBound() float64 {
	return s.lowerBound.Param()
}

func (s *GuaranteedThroughputSampler) Update(lowerBound, rate float64) error {
	s.muUpdate.Lock()
	defer s.muUpdate.Unlock()

	if rate != s.Param() {
		probabilistic, err := NewProbabilisticSampler(rate)
		if err != nil {
			return err
		}
		s.probabilistic.Store(probabilistic)
	}
	if lowerBound != s.LowerBound() {
		return s.lowerBound.Update(lowerBound)
	}
	return nil
}
