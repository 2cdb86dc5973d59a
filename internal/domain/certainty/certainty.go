// Package certainty defines the certainty estimator contract and the local
// rule-based estimator every deployment can fall back to.
package certainty

import (
	"context"

	"github.com/okian/farmwatch/internal/domain/model"
	"github.com/okian/farmwatch/internal/domain/scoring"
)

// Certainty bounds shared by every estimator.
const (
	Min = 0.60
	Max = 0.99
)

// Local rule constants.
const (
	baseCertainty     = 0.85
	lowDHAThreshold   = 3.0
	lowDHABonus       = 0.05
	lowVolThreshold   = 0.4
	lowVolBonus       = 0.07
	borderlineLow     = 0.35
	borderlineHigh    = 0.45
	borderlinePenalty = 0.15
)

// Result carries a certainty value and the path that produced it.
type Result struct {
	Value  float64
	Source model.CertaintySource
}

// Estimator produces a certainty for a reading. Implementations never fail
// a request because of an upstream problem; the error return is reserved
// for context cancellation.
type Estimator interface {
	Estimate(ctx context.Context, r model.Reading) (Result, error)
}

// Local is the deterministic rule-based estimator.
type Local struct{}

// NewLocal returns the local estimator.
func NewLocal() *Local { return &Local{} }

// Estimate implements Estimator.
func (l *Local) Estimate(ctx context.Context, r model.Reading) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{Value: Compute(r.DHAPercent, r.MRIVolume), Source: model.SourceLocal}, nil
}

// Compute applies the local rules:
// base 0.85, +0.05 when DHA < 3, +0.07 when volume < 0.4, -0.15 when the
// unrounded risk formula lies in [0.35, 0.45], clamped to [0.60, 0.99] and
// rounded to three decimals.
func Compute(dhaPercent, mriVolume float64) float64 {
	c := baseCertainty
	if dhaPercent < lowDHAThreshold {
		c += lowDHABonus
	}
	if mriVolume < lowVolThreshold {
		c += lowVolBonus
	}
	if IsBorderline(scoring.Reference(dhaPercent, mriVolume)) {
		c -= borderlinePenalty
	}
	return scoring.Round3(Clamp(c))
}

// IsBorderline reports whether a reference score is close enough to the
// alert threshold to lower certainty. Both ends are inclusive.
func IsBorderline(reference float64) bool {
	return reference >= borderlineLow && reference <= borderlineHigh
}

// Clamp bounds v to [Min, Max].
func Clamp(v float64) float64 {
	switch {
	case v < Min:
		return Min
	case v > Max:
		return Max
	default:
		return v
	}
}
