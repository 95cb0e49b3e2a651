package underwrite

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// EvidenceType identifies one of the five tracked closing documents.
type EvidenceType string

const (
	EvidencePayoffLetter        EvidenceType = "payoff_letter"
	EvidenceTitleCommitment     EvidenceType = "title_commitment"
	EvidenceInsuranceQuote      EvidenceType = "insurance_quote"
	EvidenceFourPointInspection EvidenceType = "four_point_inspection"
	EvidenceRepairEstimate      EvidenceType = "repair_estimate"
)

// FreshnessStatus classifies one evidence item relative to its threshold.
type FreshnessStatus string

const (
	StatusFresh   FreshnessStatus = "fresh"
	StatusStale   FreshnessStatus = "stale"
	StatusMissing FreshnessStatus = "missing"
)

// EvidenceHealthPolicy sets per-type freshness windows, criticality flags,
// and score weights. Five fresh items at the default weights score exactly
// 100.
type EvidenceHealthPolicy struct {
	PayoffLetterFreshnessDays        int `json:"payoff_letter_freshness_days" yaml:"payoff_letter_freshness_days"`
	TitleCommitmentFreshnessDays     int `json:"title_commitment_freshness_days" yaml:"title_commitment_freshness_days"`
	InsuranceQuoteFreshnessDays      int `json:"insurance_quote_freshness_days" yaml:"insurance_quote_freshness_days"`
	FourPointInspectionFreshnessDays int `json:"four_point_inspection_freshness_days" yaml:"four_point_inspection_freshness_days"`
	RepairEstimateFreshnessDays      int `json:"repair_estimate_freshness_days" yaml:"repair_estimate_freshness_days"`

	PayoffLetterCritical        bool `json:"payoff_letter_critical" yaml:"payoff_letter_critical"`
	TitleCommitmentCritical     bool `json:"title_commitment_critical" yaml:"title_commitment_critical"`
	InsuranceQuoteCritical      bool `json:"insurance_quote_critical" yaml:"insurance_quote_critical"`
	FourPointInspectionCritical bool `json:"four_point_inspection_critical" yaml:"four_point_inspection_critical"`
	RepairEstimateCritical      bool `json:"repair_estimate_critical" yaml:"repair_estimate_critical"`

	PointsPerFreshItem        float64 `json:"points_per_fresh_item" yaml:"points_per_fresh_item"`
	PenaltyPerStaleItem       float64 `json:"penalty_per_stale_item" yaml:"penalty_per_stale_item"`
	PenaltyPerMissingItem     float64 `json:"penalty_per_missing_item" yaml:"penalty_per_missing_item"`
	PenaltyPerMissingCritical float64 `json:"penalty_per_missing_critical" yaml:"penalty_per_missing_critical"`

	ExcellentThreshold float64 `json:"excellent_threshold" yaml:"excellent_threshold"`
	GoodThreshold      float64 `json:"good_threshold" yaml:"good_threshold"`
	FairThreshold      float64 `json:"fair_threshold" yaml:"fair_threshold"`
}

// DefaultEvidenceHealthPolicy returns the stock freshness windows. Payoff
// letter, title commitment, and insurance quote are the critical three.
func DefaultEvidenceHealthPolicy() EvidenceHealthPolicy {
	return EvidenceHealthPolicy{
		PayoffLetterFreshnessDays:        30,
		TitleCommitmentFreshnessDays:     60,
		InsuranceQuoteFreshnessDays:      30,
		FourPointInspectionFreshnessDays: 90,
		RepairEstimateFreshnessDays:      60,

		PayoffLetterCritical:        true,
		TitleCommitmentCritical:     true,
		InsuranceQuoteCritical:      true,
		FourPointInspectionCritical: false,
		RepairEstimateCritical:      false,

		PointsPerFreshItem:        20,
		PenaltyPerStaleItem:       10,
		PenaltyPerMissingItem:     20,
		PenaltyPerMissingCritical: 10,

		ExcellentThreshold: 80,
		GoodThreshold:      60,
		FairThreshold:      40,
	}
}

// EvidenceHealthInput carries the obtained date for each tracked document.
// A nil date means the document has not been collected. ReferenceDate
// anchors the age calculation; nil means time.Now.
type EvidenceHealthInput struct {
	PayoffLetter        *time.Time `json:"payoff_letter"`
	TitleCommitment     *time.Time `json:"title_commitment"`
	InsuranceQuote      *time.Time `json:"insurance_quote"`
	FourPointInspection *time.Time `json:"four_point_inspection"`
	RepairEstimate      *time.Time `json:"repair_estimate"`
	ReferenceDate       *time.Time `json:"reference_date,omitempty"`
}

// EvidenceItemHealth is the per-document freshness assessment. AgeDays and
// DaysUntilStale are nil for missing documents; DaysUntilStale is negative
// once a document has gone stale.
type EvidenceItemHealth struct {
	EvidenceType           EvidenceType    `json:"evidence_type"`
	Label                  string          `json:"label"`
	Status                 FreshnessStatus `json:"status"`
	ObtainedDate           *time.Time      `json:"obtained_date"`
	AgeDays                *int            `json:"age_days"`
	FreshnessThresholdDays int             `json:"freshness_threshold_days"`
	DaysUntilStale         *int            `json:"days_until_stale"`
	IsCritical             bool            `json:"is_critical"`
}

// EvidenceHealth is the aggregate freshness picture across all five
// documents.
type EvidenceHealth struct {
	Items              []EvidenceItemHealth `json:"items"`
	FreshCount         int                  `json:"fresh_count"`
	StaleCount         int                  `json:"stale_count"`
	MissingCount       int                  `json:"missing_count"`
	HealthScore        float64              `json:"health_score"`
	HealthBand         QualityBand          `json:"health_band"`
	AnyCriticalMissing bool                 `json:"any_critical_missing"`
	AnyCriticalStale   bool                 `json:"any_critical_stale"`
	MissingCritical    []EvidenceType       `json:"missing_critical"`
	StaleCritical      []EvidenceType       `json:"stale_critical"`
	RecommendedAction  string               `json:"recommended_action"`
}

type evidenceItemTrace struct {
	Type           EvidenceType    `json:"type"`
	Status         FreshnessStatus `json:"status"`
	AgeDays        *int            `json:"age_days"`
	ThresholdDays  int             `json:"threshold_days"`
	DaysUntilStale *int            `json:"days_until_stale"`
	IsCritical     bool            `json:"is_critical"`
}

type evidenceHealthTrace struct {
	Inputs struct {
		ReferenceDate       time.Time  `json:"reference_date"`
		PayoffLetter        *time.Time `json:"payoff_letter"`
		TitleCommitment     *time.Time `json:"title_commitment"`
		InsuranceQuote      *time.Time `json:"insurance_quote"`
		FourPointInspection *time.Time `json:"four_point_inspection"`
		RepairEstimate      *time.Time `json:"repair_estimate"`
	} `json:"inputs"`
	PerItemEvaluation []evidenceItemTrace `json:"per_item_evaluation"`
	Aggregates        struct {
		FreshCount      int            `json:"fresh_count"`
		StaleCount      int            `json:"stale_count"`
		MissingCount    int            `json:"missing_count"`
		MissingCritical []EvidenceType `json:"missing_critical"`
		StaleCritical   []EvidenceType `json:"stale_critical"`
	} `json:"aggregates"`
	ScoreCalculation struct {
		PointsFromFresh            float64 `json:"points_from_fresh"`
		PenaltyFromStale           float64 `json:"penalty_from_stale"`
		PenaltyFromMissing         float64 `json:"penalty_from_missing"`
		PenaltyFromMissingCritical float64 `json:"penalty_from_missing_critical"`
		RawScore                   float64 `json:"raw_score"`
		FinalScore                 float64 `json:"final_score"`
	} `json:"score_calculation"`
	Result struct {
		HealthScore        float64     `json:"health_score"`
		HealthBand         QualityBand `json:"health_band"`
		AnyCriticalMissing bool        `json:"any_critical_missing"`
		AnyCriticalStale   bool        `json:"any_critical_stale"`
		RecommendedAction  string      `json:"recommended_action"`
	} `json:"result"`
	Policy EvidenceHealthPolicy `json:"policy"`
}

// evidenceSpec couples a type with its policy accessors. The slice order is
// the canonical presentation order.
type evidenceSpec struct {
	typ       EvidenceType
	label     string
	date      func(EvidenceHealthInput) *time.Time
	threshold func(EvidenceHealthPolicy) int
	critical  func(EvidenceHealthPolicy) bool
}

var evidenceSpecs = []evidenceSpec{
	{
		typ:       EvidencePayoffLetter,
		label:     "Payoff Letter",
		date:      func(in EvidenceHealthInput) *time.Time { return in.PayoffLetter },
		threshold: func(p EvidenceHealthPolicy) int { return p.PayoffLetterFreshnessDays },
		critical:  func(p EvidenceHealthPolicy) bool { return p.PayoffLetterCritical },
	},
	{
		typ:       EvidenceTitleCommitment,
		label:     "Title Commitment",
		date:      func(in EvidenceHealthInput) *time.Time { return in.TitleCommitment },
		threshold: func(p EvidenceHealthPolicy) int { return p.TitleCommitmentFreshnessDays },
		critical:  func(p EvidenceHealthPolicy) bool { return p.TitleCommitmentCritical },
	},
	{
		typ:       EvidenceInsuranceQuote,
		label:     "Insurance Quote",
		date:      func(in EvidenceHealthInput) *time.Time { return in.InsuranceQuote },
		threshold: func(p EvidenceHealthPolicy) int { return p.InsuranceQuoteFreshnessDays },
		critical:  func(p EvidenceHealthPolicy) bool { return p.InsuranceQuoteCritical },
	},
	{
		typ:       EvidenceFourPointInspection,
		label:     "Four-Point Inspection",
		date:      func(in EvidenceHealthInput) *time.Time { return in.FourPointInspection },
		threshold: func(p EvidenceHealthPolicy) int { return p.FourPointInspectionFreshnessDays },
		critical:  func(p EvidenceHealthPolicy) bool { return p.FourPointInspectionCritical },
	},
	{
		typ:       EvidenceRepairEstimate,
		label:     "Repair Estimate",
		date:      func(in EvidenceHealthInput) *time.Time { return in.RepairEstimate },
		threshold: func(p EvidenceHealthPolicy) int { return p.RepairEstimateFreshnessDays },
		critical:  func(p EvidenceHealthPolicy) bool { return p.RepairEstimateCritical },
	},
}

// EvidenceLabel returns the display label for an evidence type.
func EvidenceLabel(t EvidenceType) string {
	for _, s := range evidenceSpecs {
		if s.typ == t {
			return s.label
		}
	}
	return string(t)
}

// ComputeEvidenceHealth assesses the freshness of all five documents against
// the reference date. Age is whole days, floored; a document exactly at its
// threshold is still fresh, and future-dated documents count as zero days
// old.
func ComputeEvidenceHealth(in EvidenceHealthInput, pol EvidenceHealthPolicy) (EvidenceHealth, TraceEntry) {
	ref := time.Now()
	if in.ReferenceDate != nil {
		ref = *in.ReferenceDate
	}

	items := make([]EvidenceItemHealth, len(evidenceSpecs))
	for i, spec := range evidenceSpecs {
		items[i] = evaluateEvidenceItem(spec, in, ref, pol)
	}

	var freshCount, staleCount, missingCount int
	var missingCritical, staleCritical []EvidenceType
	for _, item := range items {
		switch item.Status {
		case StatusFresh:
			freshCount++
		case StatusStale:
			staleCount++
			if item.IsCritical {
				staleCritical = append(staleCritical, item.EvidenceType)
			}
		case StatusMissing:
			missingCount++
			if item.IsCritical {
				missingCritical = append(missingCritical, item.EvidenceType)
			}
		}
	}

	pointsFromFresh := float64(freshCount) * pol.PointsPerFreshItem
	penaltyFromStale := float64(staleCount) * pol.PenaltyPerStaleItem
	penaltyFromMissing := float64(missingCount) * pol.PenaltyPerMissingItem
	penaltyFromMissingCritical := float64(len(missingCritical)) * pol.PenaltyPerMissingCritical

	rawScore := pointsFromFresh - penaltyFromStale - penaltyFromMissing - penaltyFromMissingCritical
	healthScore := math.Round(clamp(rawScore, 0, 100))
	band := qualityBandFor(healthScore, pol.ExcellentThreshold, pol.GoodThreshold, pol.FairThreshold)
	action := recommendEvidenceAction(missingCritical, staleCritical, missingCount, staleCount)

	result := EvidenceHealth{
		Items:              items,
		FreshCount:         freshCount,
		StaleCount:         staleCount,
		MissingCount:       missingCount,
		HealthScore:        healthScore,
		HealthBand:         band,
		AnyCriticalMissing: len(missingCritical) > 0,
		AnyCriticalStale:   len(staleCritical) > 0,
		MissingCritical:    missingCritical,
		StaleCritical:      staleCritical,
		RecommendedAction:  action,
	}

	var td evidenceHealthTrace
	td.Inputs.ReferenceDate = ref
	td.Inputs.PayoffLetter = in.PayoffLetter
	td.Inputs.TitleCommitment = in.TitleCommitment
	td.Inputs.InsuranceQuote = in.InsuranceQuote
	td.Inputs.FourPointInspection = in.FourPointInspection
	td.Inputs.RepairEstimate = in.RepairEstimate
	for _, item := range items {
		td.PerItemEvaluation = append(td.PerItemEvaluation, evidenceItemTrace{
			Type:           item.EvidenceType,
			Status:         item.Status,
			AgeDays:        item.AgeDays,
			ThresholdDays:  item.FreshnessThresholdDays,
			DaysUntilStale: item.DaysUntilStale,
			IsCritical:     item.IsCritical,
		})
	}
	td.Aggregates.FreshCount = freshCount
	td.Aggregates.StaleCount = staleCount
	td.Aggregates.MissingCount = missingCount
	td.Aggregates.MissingCritical = missingCritical
	td.Aggregates.StaleCritical = staleCritical
	td.ScoreCalculation.PointsFromFresh = pointsFromFresh
	td.ScoreCalculation.PenaltyFromStale = penaltyFromStale
	td.ScoreCalculation.PenaltyFromMissing = penaltyFromMissing
	td.ScoreCalculation.PenaltyFromMissingCritical = penaltyFromMissingCritical
	td.ScoreCalculation.RawScore = rawScore
	td.ScoreCalculation.FinalScore = healthScore
	td.Result.HealthScore = healthScore
	td.Result.HealthBand = band
	td.Result.AnyCriticalMissing = result.AnyCriticalMissing
	td.Result.AnyCriticalStale = result.AnyCriticalStale
	td.Result.RecommendedAction = action
	td.Policy = pol

	trace := TraceEntry{
		Rule: RuleEvidenceHealth,
		Used: []string{
			"inputs.payoff_letter",
			"inputs.title_commitment",
			"inputs.insurance_quote",
			"inputs.four_point_inspection",
			"inputs.repair_estimate",
			"policy.freshness_thresholds",
			"policy.criticality_flags",
		},
		Details: td,
	}
	return result, trace
}

func evaluateEvidenceItem(spec evidenceSpec, in EvidenceHealthInput, ref time.Time, pol EvidenceHealthPolicy) EvidenceItemHealth {
	threshold := spec.threshold(pol)
	obtained := spec.date(in)

	var ageDays, daysUntilStale *int
	status := StatusMissing
	if obtained != nil {
		age := int(ref.Sub(*obtained).Hours() / 24)
		if age < 0 {
			age = 0
		}
		ageDays = &age
		remaining := threshold - age
		daysUntilStale = &remaining
		if age <= threshold {
			status = StatusFresh
		} else {
			status = StatusStale
		}
	}

	return EvidenceItemHealth{
		EvidenceType:           spec.typ,
		Label:                  spec.label,
		Status:                 status,
		ObtainedDate:           obtained,
		AgeDays:                ageDays,
		FreshnessThresholdDays: threshold,
		DaysUntilStale:         daysUntilStale,
		IsCritical:             spec.critical(pol),
	}
}

// recommendEvidenceAction picks the single highest-priority next step.
func recommendEvidenceAction(missingCritical, staleCritical []EvidenceType, missingCount, staleCount int) string {
	if len(missingCritical) > 0 {
		return "Obtain missing critical evidence: " + joinEvidenceLabels(missingCritical)
	}
	if len(staleCritical) > 0 {
		return "Refresh stale critical evidence: " + joinEvidenceLabels(staleCritical)
	}
	if missingCount > 0 {
		return fmt.Sprintf("Collect %d missing evidence item(s)", missingCount)
	}
	if staleCount > 0 {
		return fmt.Sprintf("Refresh %d stale evidence item(s)", staleCount)
	}
	return "All evidence current — ready for underwriting"
}

func joinEvidenceLabels(types []EvidenceType) string {
	labels := make([]string, len(types))
	for i, t := range types {
		labels[i] = EvidenceLabel(t)
	}
	return strings.Join(labels, ", ")
}

// ValidateEvidenceHealthInput reports date-sanity problems as warnings.
// Dates after the reference date or more than ten years before it are
// almost certainly data-entry mistakes; the calculator still handles them
// (future clamps to age 0, ancient is merely stale).
func ValidateEvidenceHealthInput(in EvidenceHealthInput) []string {
	var warns []string
	ref := time.Now().UTC()
	if in.ReferenceDate != nil {
		ref = *in.ReferenceDate
	}
	oldest := ref.AddDate(-10, 0, 0)
	for _, s := range evidenceSpecs {
		obtained := s.date(in)
		if obtained == nil {
			continue
		}
		if obtained.After(ref) {
			warns = append(warns, fmt.Sprintf("%s obtained date %s is after the reference date %s",
				s.typ, obtained.Format("2006-01-02"), ref.Format("2006-01-02")))
		}
		if obtained.Before(oldest) {
			warns = append(warns, fmt.Sprintf("%s obtained date %s is implausibly old",
				s.typ, obtained.Format("2006-01-02")))
		}
	}
	if in.ReferenceDate != nil && in.ReferenceDate.After(time.Now().UTC().AddDate(1, 0, 0)) {
		warns = append(warns, fmt.Sprintf("reference_date %s is more than a year in the future",
			in.ReferenceDate.Format("2006-01-02")))
	}
	return warns
}

// ValidateEvidenceHealthPolicy reports policy misconfigurations.
func ValidateEvidenceHealthPolicy(pol EvidenceHealthPolicy) []string {
	var warns []string
	for _, t := range []struct {
		name string
		v    int
	}{
		{"payoff_letter_freshness_days", pol.PayoffLetterFreshnessDays},
		{"title_commitment_freshness_days", pol.TitleCommitmentFreshnessDays},
		{"insurance_quote_freshness_days", pol.InsuranceQuoteFreshnessDays},
		{"four_point_inspection_freshness_days", pol.FourPointInspectionFreshnessDays},
		{"repair_estimate_freshness_days", pol.RepairEstimateFreshnessDays},
	} {
		if t.v <= 0 {
			warns = append(warns, fmt.Sprintf("%s must be positive, got %d", t.name, t.v))
		}
	}
	if pol.PointsPerFreshItem < 0 {
		warns = append(warns, "points_per_fresh_item cannot be negative")
	}
	if pol.PenaltyPerStaleItem < 0 {
		warns = append(warns, "penalty_per_stale_item cannot be negative")
	}
	if pol.PenaltyPerMissingItem < 0 {
		warns = append(warns, "penalty_per_missing_item cannot be negative")
	}
	if pol.PenaltyPerMissingCritical < 0 {
		warns = append(warns, "penalty_per_missing_critical cannot be negative")
	}
	if pol.ExcellentThreshold <= pol.GoodThreshold || pol.GoodThreshold <= pol.FairThreshold {
		warns = append(warns, fmt.Sprintf(
			"band thresholds must descend: excellent (%v) > good (%v) > fair (%v)",
			pol.ExcellentThreshold, pol.GoodThreshold, pol.FairThreshold))
	}
	if max := 5 * pol.PointsPerFreshItem; max < 100 {
		warns = append(warns, fmt.Sprintf(
			"points_per_fresh_item (%v) is too low, max possible score is %v", pol.PointsPerFreshItem, max))
	}
	return warns
}

// EvidenceSufficient reports whether the evidence picture supports confident
// underwriting: no missing critical document and a score at or above the
// floor.
func EvidenceSufficient(h EvidenceHealth, minScore float64) bool {
	return !h.AnyCriticalMissing && h.HealthScore >= minScore
}

// EvidenceNeedingAttention returns the missing and stale items sorted by
// priority: critical before non-critical, missing before stale.
func EvidenceNeedingAttention(h EvidenceHealth) []EvidenceItemHealth {
	var out []EvidenceItemHealth
	for _, item := range h.Items {
		if item.Status == StatusMissing || item.Status == StatusStale {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsCritical != b.IsCritical {
			return a.IsCritical
		}
		if a.Status != b.Status {
			return a.Status == StatusMissing
		}
		return false
	})
	return out
}

// DaysUntilSoonestExpiration returns how many days remain before the first
// fresh document goes stale, or nil when nothing is fresh.
func DaysUntilSoonestExpiration(h EvidenceHealth) *int {
	var soonest *int
	for _, item := range h.Items {
		if item.Status != StatusFresh || item.DaysUntilStale == nil {
			continue
		}
		if soonest == nil || *item.DaysUntilStale < *soonest {
			v := *item.DaysUntilStale
			soonest = &v
		}
	}
	return soonest
}
