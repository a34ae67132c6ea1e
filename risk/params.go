package risk

import (
	"fmt"
	"math"
)

// Params tunes the allocator.
type Params struct {
	// Baseline is the oscillator threshold weights are measured from.
	Baseline float64
	// WeightExponent sharpens the preference for low-strength instruments.
	WeightExponent float64
	TargetMargin   float64
	StopMargin     float64
}

func DefaultParams() Params {
	return Params{
		Baseline:       70,
		WeightExponent: 1,
		TargetMargin:   0.01,
		StopMargin:     0.01,
	}
}

func (p Params) Validate() error {
	if math.IsNaN(p.WeightExponent) || math.IsInf(p.WeightExponent, 0) || math.IsNaN(p.Baseline) || math.IsInf(p.Baseline, 0) {
		return fmt.Errorf("baseline and weight exponent must be finite")
	}
	if p.WeightExponent < 1 {
		return fmt.Errorf("weight exponent must be >= 1, got %v", p.WeightExponent)
	}
	if p.TargetMargin <= 0 || p.TargetMargin >= 0.5 {
		return fmt.Errorf("target margin must be in (0, 0.5), got %v", p.TargetMargin)
	}
	if p.StopMargin <= 0 || p.StopMargin >= 0.5 {
		return fmt.Errorf("stop margin must be in (0, 0.5), got %v", p.StopMargin)
	}
	return nil
}
