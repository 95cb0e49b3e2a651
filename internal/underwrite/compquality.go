package underwrite

import (
	"fmt"
	"math"
)

// Comp is a comparable sale reduced to the fields quality scoring needs.
type Comp struct {
	DistanceMiles float64  `json:"distance_miles"`
	AgeDays       float64  `json:"age_days"`
	Sqft          float64  `json:"sqft"`
	SalePrice     *float64 `json:"sale_price,omitempty"`
}

// CompQualityInput carries the comp set and the subject it is compared to.
type CompQualityInput struct {
	Comps       []Comp  `json:"comps"`
	SubjectSqft float64 `json:"subject_sqft"`
}

// CompQualityPolicy tunes the appraisal-style penalty schedule. Penalties
// accrue in whole steps (per 0.5mi, per 30 days, per 10% variance) and each
// dimension is capped.
type CompQualityPolicy struct {
	DistanceIdealMiles     float64 `json:"distance_ideal_miles" yaml:"distance_ideal_miles"`
	DistancePenaltyPer05Mi float64 `json:"distance_penalty_per_05mi" yaml:"distance_penalty_per_05mi"`
	DistanceMaxPenalty     float64 `json:"distance_max_penalty" yaml:"distance_max_penalty"`

	AgeIdealDays        float64 `json:"age_ideal_days" yaml:"age_ideal_days"`
	AgePenaltyPer30Days float64 `json:"age_penalty_per_30days" yaml:"age_penalty_per_30days"`
	AgeMaxPenalty       float64 `json:"age_max_penalty" yaml:"age_max_penalty"`

	SqftVarianceIdealPct float64 `json:"sqft_variance_ideal_pct" yaml:"sqft_variance_ideal_pct"`
	SqftPenaltyPer10Pct  float64 `json:"sqft_penalty_per_10pct" yaml:"sqft_penalty_per_10pct"`
	SqftMaxPenalty       float64 `json:"sqft_max_penalty" yaml:"sqft_max_penalty"`

	MinCompsRequired       int     `json:"min_comps_required" yaml:"min_comps_required"`
	LowCompCountPenalty    float64 `json:"low_comp_count_penalty" yaml:"low_comp_count_penalty"`
	HighCompCountBonus     float64 `json:"high_comp_count_bonus" yaml:"high_comp_count_bonus"`
	HighCompCountThreshold int     `json:"high_comp_count_threshold" yaml:"high_comp_count_threshold"`

	ExcellentThreshold float64 `json:"excellent_threshold" yaml:"excellent_threshold"`
	GoodThreshold      float64 `json:"good_threshold" yaml:"good_threshold"`
	FairThreshold      float64 `json:"fair_threshold" yaml:"fair_threshold"`

	ConfidenceAThreshold float64 `json:"confidence_a_threshold" yaml:"confidence_a_threshold"`
}

// DefaultCompQualityPolicy returns the stock penalty schedule, modeled on
// Fannie Mae appraisal guidance.
func DefaultCompQualityPolicy() CompQualityPolicy {
	return CompQualityPolicy{
		DistanceIdealMiles:     0.5,
		DistancePenaltyPer05Mi: 5,
		DistanceMaxPenalty:     30,

		AgeIdealDays:        90,
		AgePenaltyPer30Days: 5,
		AgeMaxPenalty:       30,

		SqftVarianceIdealPct: 10,
		SqftPenaltyPer10Pct:  10,
		SqftMaxPenalty:       20,

		MinCompsRequired:       3,
		LowCompCountPenalty:    20,
		HighCompCountBonus:     10,
		HighCompCountThreshold: 5,

		ExcellentThreshold: 80,
		GoodThreshold:      60,
		FairThreshold:      40,

		ConfidenceAThreshold: 70,
	}
}

// CompScoreBreakdown reports each dimension as 100 minus that dimension's
// mean penalty. The three scores are diagnostic and do not sum to the
// overall quality score.
type CompScoreBreakdown struct {
	RecencyScore    float64 `json:"recency_score"`
	ProximityScore  float64 `json:"proximity_score"`
	SimilarityScore float64 `json:"similarity_score"`
}

// CompQuality is the computed quality assessment of a comp set.
// MaxDistanceMiles and MaxAgeDays are nil when no comps were supplied.
type CompQuality struct {
	CompCount                int                `json:"comp_count"`
	AvgDistanceMiles         float64            `json:"avg_distance_miles"`
	AvgAgeDays               float64            `json:"avg_age_days"`
	SqftVariancePct          float64            `json:"sqft_variance_pct"`
	QualityScore             float64            `json:"quality_score"`
	QualityBand              QualityBand        `json:"quality_band"`
	ScoringMethod            string             `json:"scoring_method"`
	MeetsConfidenceThreshold bool               `json:"meets_confidence_threshold"`
	MaxDistanceMiles         *float64           `json:"max_distance_miles"`
	MaxAgeDays               *float64           `json:"max_age_days"`
	ScoreBreakdown           CompScoreBreakdown `json:"score_breakdown"`
}

// compScoreDetail records how one comp was scored, for the trace.
type compScoreDetail struct {
	Index           int     `json:"index"`
	DistanceMiles   float64 `json:"distance_miles"`
	AgeDays         float64 `json:"age_days"`
	Sqft            float64 `json:"sqft"`
	SqftVariancePct float64 `json:"sqft_variance_pct"`
	DistancePenalty float64 `json:"distance_penalty"`
	AgePenalty      float64 `json:"age_penalty"`
	SqftPenalty     float64 `json:"sqft_penalty"`
	TotalPenalty    float64 `json:"total_penalty"`
	CompScore       float64 `json:"comp_score"`
}

type compQualityTrace struct {
	Inputs struct {
		CompCount   int     `json:"comp_count"`
		SubjectSqft float64 `json:"subject_sqft"`
	} `json:"inputs"`
	PerCompScoring []compScoreDetail `json:"per_comp_scoring"`
	Aggregates     struct {
		AvgDistanceMiles   float64  `json:"avg_distance_miles"`
		AvgAgeDays         float64  `json:"avg_age_days"`
		AvgSqftVariancePct float64  `json:"avg_sqft_variance_pct"`
		AvgCompScore       float64  `json:"avg_comp_score"`
		MaxDistanceMiles   *float64 `json:"max_distance_miles"`
		MaxAgeDays         *float64 `json:"max_age_days"`
	} `json:"aggregates"`
	Adjustments struct {
		CompCountAdjustment float64 `json:"comp_count_adjustment"`
		Reason              string  `json:"reason"`
	} `json:"adjustments"`
	Result struct {
		RawScore                 float64     `json:"raw_score"`
		FinalScore               float64     `json:"final_score"`
		QualityBand              QualityBand `json:"quality_band"`
		MeetsConfidenceThreshold bool        `json:"meets_confidence_threshold"`
	} `json:"result"`
	ScoreBreakdown CompScoreBreakdown `json:"score_breakdown"`
	Policy         CompQualityPolicy  `json:"policy"`
}

// ComputeCompQuality scores a comp set. Each comp starts at 100 and loses
// points for distance, staleness, and size variance; the set score is the
// mean of comp scores adjusted for count and clamped to [0,100].
func ComputeCompQuality(in CompQualityInput, pol CompQualityPolicy) (CompQuality, TraceEntry) {
	if len(in.Comps) == 0 {
		return noCompsResult(pol)
	}

	details := make([]compScoreDetail, len(in.Comps))
	for i, c := range in.Comps {
		details[i] = scoreComp(c, in.SubjectSqft, i, pol)
	}

	var distances, ages, variances, scores []float64
	var distPenalties, agePenalties, sqftPenalties []float64
	maxDistance, maxAge := math.Inf(-1), math.Inf(-1)
	for _, d := range details {
		distances = append(distances, d.DistanceMiles)
		ages = append(ages, d.AgeDays)
		variances = append(variances, d.SqftVariancePct)
		scores = append(scores, d.CompScore)
		distPenalties = append(distPenalties, d.DistancePenalty)
		agePenalties = append(agePenalties, d.AgePenalty)
		sqftPenalties = append(sqftPenalties, d.SqftPenalty)
		maxDistance = math.Max(maxDistance, d.DistanceMiles)
		maxAge = math.Max(maxAge, d.AgeDays)
	}

	var adjustment float64
	adjustmentReason := "Standard comp count"
	switch {
	case len(in.Comps) < pol.MinCompsRequired:
		adjustment = -pol.LowCompCountPenalty
		adjustmentReason = fmt.Sprintf("Only %d comps (need %d+)", len(in.Comps), pol.MinCompsRequired)
	case len(in.Comps) >= pol.HighCompCountThreshold:
		adjustment = pol.HighCompCountBonus
		adjustmentReason = fmt.Sprintf("%d comps (bonus for %d+)", len(in.Comps), pol.HighCompCountThreshold)
	}

	rawScore := mean(scores)
	finalScore := clamp(rawScore+adjustment, 0, 100)
	band := qualityBandFor(finalScore, pol.ExcellentThreshold, pol.GoodThreshold, pol.FairThreshold)

	breakdown := CompScoreBreakdown{
		RecencyScore:    round2(100 - mean(agePenalties)),
		ProximityScore:  round2(100 - mean(distPenalties)),
		SimilarityScore: round2(100 - mean(sqftPenalties)),
	}

	result := CompQuality{
		CompCount:                len(in.Comps),
		AvgDistanceMiles:         round2(mean(distances)),
		AvgAgeDays:               round2(mean(ages)),
		SqftVariancePct:          round2(mean(variances)),
		QualityScore:             round2(finalScore),
		QualityBand:              band,
		ScoringMethod:            "fannie_mae",
		MeetsConfidenceThreshold: finalScore >= pol.ConfidenceAThreshold,
		MaxDistanceMiles:         f64ptr(round2(maxDistance)),
		MaxAgeDays:               f64ptr(maxAge),
		ScoreBreakdown:           breakdown,
	}

	var td compQualityTrace
	td.Inputs.CompCount = len(in.Comps)
	td.Inputs.SubjectSqft = in.SubjectSqft
	td.PerCompScoring = details
	td.Aggregates.AvgDistanceMiles = result.AvgDistanceMiles
	td.Aggregates.AvgAgeDays = result.AvgAgeDays
	td.Aggregates.AvgSqftVariancePct = result.SqftVariancePct
	td.Aggregates.AvgCompScore = round2(rawScore)
	td.Aggregates.MaxDistanceMiles = result.MaxDistanceMiles
	td.Aggregates.MaxAgeDays = result.MaxAgeDays
	td.Adjustments.CompCountAdjustment = adjustment
	td.Adjustments.Reason = adjustmentReason
	td.Result.RawScore = round2(rawScore)
	td.Result.FinalScore = round2(finalScore)
	td.Result.QualityBand = band
	td.Result.MeetsConfidenceThreshold = result.MeetsConfidenceThreshold
	td.ScoreBreakdown = breakdown
	td.Policy = pol

	trace := TraceEntry{
		Rule: RuleCompQuality,
		Used: []string{
			"inputs.comps",
			"inputs.subject_sqft",
			"policy.distance_thresholds",
			"policy.age_thresholds",
			"policy.sqft_thresholds",
			"policy.comp_count_thresholds",
		},
		Details: td,
	}
	return result, trace
}

func scoreComp(c Comp, subjectSqft float64, index int, pol CompQualityPolicy) compScoreDetail {
	var variancePct float64
	if subjectSqft > 0 {
		variancePct = math.Abs((c.Sqft-subjectSqft)/subjectSqft) * 100
	}

	distanceOver := math.Max(0, c.DistanceMiles-pol.DistanceIdealMiles)
	distancePenalty := math.Min(pol.DistanceMaxPenalty, math.Floor(distanceOver/0.5)*pol.DistancePenaltyPer05Mi)

	ageOver := math.Max(0, c.AgeDays-pol.AgeIdealDays)
	agePenalty := math.Min(pol.AgeMaxPenalty, math.Floor(ageOver/30)*pol.AgePenaltyPer30Days)

	sqftOver := math.Max(0, variancePct-pol.SqftVarianceIdealPct)
	sqftPenalty := math.Min(pol.SqftMaxPenalty, math.Floor(sqftOver/10)*pol.SqftPenaltyPer10Pct)

	total := distancePenalty + agePenalty + sqftPenalty
	return compScoreDetail{
		Index:           index,
		DistanceMiles:   c.DistanceMiles,
		AgeDays:         c.AgeDays,
		Sqft:            c.Sqft,
		SqftVariancePct: round2(variancePct),
		DistancePenalty: distancePenalty,
		AgePenalty:      agePenalty,
		SqftPenalty:     sqftPenalty,
		TotalPenalty:    total,
		CompScore:       math.Max(0, 100-total),
	}
}

// noCompsResult is the degenerate zero-score result for an empty comp set.
func noCompsResult(pol CompQualityPolicy) (CompQuality, TraceEntry) {
	result := CompQuality{
		CompCount:     0,
		QualityScore:  0,
		QualityBand:   BandPoor,
		ScoringMethod: "fannie_mae",
	}

	var td compQualityTrace
	td.PerCompScoring = []compScoreDetail{}
	td.Adjustments.CompCountAdjustment = -pol.LowCompCountPenalty
	td.Adjustments.Reason = "No comps provided"
	td.Result.QualityBand = BandPoor
	td.Policy = pol

	trace := TraceEntry{
		Rule:    RuleCompQuality,
		Used:    []string{"inputs.comps"},
		Details: td,
	}
	return result, trace
}

// ValidateCompQualityInput reports input problems as warnings.
func ValidateCompQualityInput(in CompQualityInput) []string {
	var warns []string
	if in.SubjectSqft < 0 {
		warns = append(warns, "subject_sqft cannot be negative")
	}
	for i, c := range in.Comps {
		if c.DistanceMiles < 0 {
			warns = append(warns, fmt.Sprintf("comp %d: distance_miles cannot be negative", i))
		}
		if c.AgeDays < 0 {
			warns = append(warns, fmt.Sprintf("comp %d: age_days cannot be negative", i))
		}
		if c.Sqft < 0 {
			warns = append(warns, fmt.Sprintf("comp %d: sqft cannot be negative", i))
		}
	}
	return warns
}

// IdealCompProfile describes the loosest comp characteristics that would
// still achieve a target score, with the allowable penalty spread evenly
// across the three dimensions.
type IdealCompProfile struct {
	MaxDistanceMiles   float64 `json:"max_distance_miles"`
	MaxAgeDays         float64 `json:"max_age_days"`
	MaxSqftVariancePct float64 `json:"max_sqft_variance_pct"`
}

// IdealCompProfileFor inverts the penalty schedule for a target score.
func IdealCompProfileFor(targetScore float64, pol CompQualityPolicy) IdealCompProfile {
	perDimension := (100 - targetScore) / 3

	distanceSteps := math.Floor(perDimension / pol.DistancePenaltyPer05Mi)
	ageSteps := math.Floor(perDimension / pol.AgePenaltyPer30Days)
	sqftSteps := math.Floor(perDimension / pol.SqftPenaltyPer10Pct)

	return IdealCompProfile{
		MaxDistanceMiles:   round2(pol.DistanceIdealMiles + distanceSteps*0.5),
		MaxAgeDays:         pol.AgeIdealDays + ageSteps*30,
		MaxSqftVariancePct: round2(pol.SqftVarianceIdealPct + sqftSteps*10),
	}
}

// CompsSufficient reports whether a comp set clears both a score floor and a
// count floor for high-confidence valuation.
func CompsSufficient(q CompQuality, minScore float64, minCount int) bool {
	return q.CompCount >= minCount && q.QualityScore >= minScore
}
