// Package underwrite implements the deal underwriting pipeline: six
// policy-driven calculators (price geometry, comp quality, evidence
// freshness, market velocity, net clearance, verdict derivation) that each
// map (policy, input) to a plain result record plus an audit trace entry.
//
// Every calculator is a pure, total function: bad data degrades the result
// (a "missing" status, a zero score, a pass verdict) instead of returning an
// error. Validation helpers surface input and policy problems as string
// warnings for the caller to act on.
package underwrite

import "math"

// Posture selects how aggressively the entry point is positioned inside the
// negotiation range.
type Posture string

const (
	PostureConservative Posture = "conservative"
	PostureBase         Posture = "base"
	PostureAggressive   Posture = "aggressive"
)

// Grade is an external confidence grade supplied by the underwriting core.
// A is best; C is worst.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
)

// QualityBand is the shared four-tier banding used by comp quality and
// evidence health scores.
type QualityBand string

const (
	BandExcellent QualityBand = "excellent"
	BandGood      QualityBand = "good"
	BandFair      QualityBand = "fair"
	BandPoor      QualityBand = "poor"
)

// qualityBandFor maps a 0-100 score onto the four-tier band using descending
// cutoffs.
func qualityBandFor(score, excellent, good, fair float64) QualityBand {
	switch {
	case score >= excellent:
		return BandExcellent
	case score >= good:
		return BandGood
	case score >= fair:
		return BandFair
	default:
		return BandPoor
	}
}

// round2 rounds to 2 decimal places. Money and percentage values are rounded
// only at output boundaries; intermediate arithmetic keeps full precision.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func f64ptr(v float64) *float64 { return &v }
