package sampler

// ConstSampler always makes the same decision.
type ConstSampler struct {
	decision bool
}

func NewConstSampler(decision bool) *ConstSampler {
	return &ConstSampler{decision: decision}
}

func (s *ConstSampler) Sample(uint64, string) bool {
	return s.decision
}

func (s *ConstSampler) Type() string {
	return TypeConst
}

func (s *ConstSampler) Param() float64 {
	if s.decision {
		return 1
	}
	return 0
}
