package sampler

import (
	"math"
	"sync"
	"sync/atomic"
)

// RateLimitingSampler samples at most maxTracesPerSecond traces. Sampled
// traces follow the burstiness of the service: uniformly distributed requests
// are sampled uniformly, while a sub-second burst may get several sequential
// requests sampled.
type RateLimitingSampler struct {
	limiter            *RateLimiter
	maxTracesPerSecond atomic.Uint64 // math.Float64bits

	// limiter 与 maxTracesPerSecond 一起更新
	muUpdate sync.Mutex
}

func NewRateLimitingSampler(maxTracesPerSecond float64) (*RateLimitingSampler, error) {
	limiter, err := NewRateLimiter(maxTracesPerSecond, math.Max(maxTracesPerSecond, 1.0))
	if err != nil {
		return nil, err
	}
	s := &RateLimitingSampler{limiter: limiter}
	s.maxTracesPerSecond.Store(math.Float64bits(maxTracesPerSecond))
	return s, nil
}

// Sample ignores its arguments, the policy is rate based only.
func (s *RateLimitingSampler) Sample(uint64, string) bool {
	return s.limiter.CheckCredit(1.0)
}

func (s *RateLimitingSampler) Type() string {
	return TypeRateLimiting
}

func (s *RateLimitingSampler) Param() float64 {
	return math.Float64frombits(s.maxTracesPerSecond.Load())
}

// Update re-rates the sampler without losing the accumulated credit.
func (s *RateLimitingSampler) Update(maxTracesPerSecond float64) error {
	s.muUpdate.Lock()
	defer s.muUpdate.Unlock()

	if err := s.limiter.Update(maxTracesPerSecond, math.Max(maxTracesPerSecond, 1.0)); err != nil {
		return err
	}
	s.maxTracesPerSecond.Store(math.Float64bits(maxTracesPerSecond))
	return nil
}
