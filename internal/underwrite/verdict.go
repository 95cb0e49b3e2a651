package underwrite

import (
	"fmt"
	"strings"
)

// WorkflowState is the dossier's position in the intake pipeline.
type WorkflowState string

const (
	WorkflowNeedsInfo     WorkflowState = "NeedsInfo"
	WorkflowNeedsReview   WorkflowState = "NeedsReview"
	WorkflowReadyForOffer WorkflowState = "ReadyForOffer"
)

// RiskStatus is a gate's traffic-light state.
type RiskStatus string

const (
	RiskGo      RiskStatus = "GO"
	RiskWatch   RiskStatus = "WATCH"
	RiskStop    RiskStatus = "STOP"
	RiskUnknown RiskStatus = "UNKNOWN"
)

// RiskGate is one named risk check with an optional reason.
type RiskGate struct {
	Status RiskStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// RiskSummary aggregates the risk gate evaluation done upstream.
type RiskSummary struct {
	Overall     RiskStatus          `json:"overall"`
	AnyBlocking bool                `json:"any_blocking"`
	Gates       map[string]RiskGate `json:"gates,omitempty"`
}

// EvidenceSummary condenses the evidence picture for verdict purposes.
type EvidenceSummary struct {
	AnyBlocking     bool     `json:"any_blocking"`
	MissingCritical []string `json:"missing_critical,omitempty"`
}

// Recommendation is the final verdict on a deal.
type Recommendation string

const (
	RecommendPursue        Recommendation = "pursue"
	RecommendNeedsEvidence Recommendation = "needs_evidence"
	RecommendPass          Recommendation = "pass"
)

// Primary reason codes summarizing what drove the verdict.
const (
	ReasonRiskBlock          = "RISK_BLOCK"
	ReasonNoZopa             = "NO_ZOPA"
	ReasonLowSpread          = "LOW_SPREAD"
	ReasonDealKiller         = "DEAL_KILLER"
	ReasonWorkflowIncomplete = "WORKFLOW_INCOMPLETE"
	ReasonMissingEvidence    = "MISSING_EVIDENCE"
	ReasonLowConfidence      = "LOW_CONFIDENCE"
	ReasonEvidenceNeeded     = "EVIDENCE_NEEDED"
	ReasonAllClear           = "ALL_CLEAR"
)

// DealVerdictPolicy sets the spread and ZOPA thresholds plus which risk
// gates kill a deal outright.
type DealVerdictPolicy struct {
	MinSpreadForPursue   float64  `json:"min_spread_for_pursue" yaml:"min_spread_for_pursue"`
	MinSpreadForEvidence float64  `json:"min_spread_for_evidence" yaml:"min_spread_for_evidence"`
	MinZopaPctForPursue  float64  `json:"min_zopa_pct_for_pursue" yaml:"min_zopa_pct_for_pursue"`
	LowConfidenceGrade   Grade    `json:"low_confidence_grade" yaml:"low_confidence_grade"`
	BlockOnAnyRiskStop   bool     `json:"block_on_any_risk_stop" yaml:"block_on_any_risk_stop"`
	DealKillerGates      []string `json:"deal_killer_gates" yaml:"deal_killer_gates"`
}

// DefaultDealVerdictPolicy returns the stock verdict thresholds.
func DefaultDealVerdictPolicy() DealVerdictPolicy {
	return DealVerdictPolicy{
		MinSpreadForPursue:   15000,
		MinSpreadForEvidence: 5000,
		MinZopaPctForPursue:  3.0,
		LowConfidenceGrade:   GradeC,
		BlockOnAnyRiskStop:   true,
		DealKillerGates:      []string{"title", "bankruptcy", "compliance"},
	}
}

// DealVerdictInput carries everything the verdict weighs. All fields are
// optional; an absent signal simply contributes nothing, so a fully empty
// input derives a pursue verdict.
type DealVerdictInput struct {
	WorkflowState   *WorkflowState   `json:"workflow_state"`
	RiskSummary     *RiskSummary     `json:"risk_summary"`
	EvidenceSummary *EvidenceSummary `json:"evidence_summary"`
	SpreadCash      *float64         `json:"spread_cash"`
	ConfidenceGrade *Grade           `json:"confidence_grade"`
	PriceGeometry   *PriceGeometry   `json:"price_geometry"`
}

// DealVerdict is the final decision signal for a deal.
type DealVerdict struct {
	Recommendation    Recommendation `json:"recommendation"`
	Rationale         string         `json:"rationale"`
	BlockingFactors   []string       `json:"blocking_factors"`
	ConfidencePct     float64        `json:"confidence_pct"`
	PrimaryReasonCode string         `json:"primary_reason_code"`
	SpreadAdequate    bool           `json:"spread_adequate"`
	EvidenceComplete  bool           `json:"evidence_complete"`
	RiskAcceptable    bool           `json:"risk_acceptable"`
}

type dealVerdictTrace struct {
	Inputs struct {
		WorkflowState        *WorkflowState `json:"workflow_state"`
		RiskOverall          *RiskStatus    `json:"risk_overall"`
		RiskAnyBlocking      bool           `json:"risk_any_blocking"`
		EvidenceAnyBlocking  bool           `json:"evidence_any_blocking"`
		MissingCriticalCount int            `json:"missing_critical_count"`
		SpreadCash           *float64       `json:"spread_cash"`
		ConfidenceGrade      *Grade         `json:"confidence_grade"`
		ZopaExists           bool           `json:"zopa_exists"`
		ZopaPctOfARV         *float64       `json:"zopa_pct_of_arv"`
	} `json:"inputs"`
	Evaluation struct {
		PassReasons          []string `json:"pass_reasons"`
		NeedsEvidenceReasons []string `json:"needs_evidence_reasons"`
		PursueEligible       bool     `json:"pursue_eligible"`
	} `json:"evaluation"`
	Result struct {
		Recommendation       Recommendation `json:"recommendation"`
		ConfidencePct        float64        `json:"confidence_pct"`
		BlockingFactorsCount int            `json:"blocking_factors_count"`
		PrimaryReasonCode    string         `json:"primary_reason_code"`
	} `json:"result"`
	StatusFlags struct {
		SpreadAdequate   bool `json:"spread_adequate"`
		EvidenceComplete bool `json:"evidence_complete"`
		RiskAcceptable   bool `json:"risk_acceptable"`
	} `json:"status_flags"`
	Policy DealVerdictPolicy `json:"policy"`
}

func gradeRank(g Grade) int {
	switch g {
	case GradeA:
		return 1
	case GradeB:
		return 2
	default:
		return 3
	}
}

// gradeAtOrBelow reports whether grade is at or worse than the threshold.
// An unknown grade never trips the threshold.
func gradeAtOrBelow(grade *Grade, threshold Grade) bool {
	if grade == nil {
		return false
	}
	return gradeRank(*grade) >= gradeRank(threshold)
}

// DeriveDealVerdict weighs risk, geometry, spread, evidence, workflow, and
// confidence into a single recommendation. Pass reasons are fatal;
// needs-evidence reasons are curable; with neither, the deal is pursued.
func DeriveDealVerdict(in DealVerdictInput, pol DealVerdictPolicy) (DealVerdict, TraceEntry) {
	var passReasons, evidenceReasons []string

	if in.RiskSummary != nil {
		if pol.BlockOnAnyRiskStop && in.RiskSummary.AnyBlocking {
			passReasons = append(passReasons, "Risk gate STOP detected")
		}
		if in.RiskSummary.Overall == RiskStop {
			passReasons = append(passReasons, "Overall risk status is STOP")
		}
		for _, gateKey := range pol.DealKillerGates {
			gate, ok := in.RiskSummary.Gates[gateKey]
			if !ok || gate.Status != RiskStop {
				continue
			}
			reason := gate.Reason
			if reason == "" {
				reason = "No reason provided"
			}
			passReasons = append(passReasons, fmt.Sprintf("Deal-killer gate %q is STOP: %s", gateKey, reason))
		}
	}

	pg := in.PriceGeometry
	if pg != nil && !pg.ZopaExists {
		passReasons = append(passReasons, "No ZOPA exists (ceiling <= floor)")
	}
	if pg != nil && pg.ZopaExists && pg.ZopaPctOfARV != nil && *pg.ZopaPctOfARV < pol.MinZopaPctForPursue {
		passReasons = append(passReasons, fmt.Sprintf(
			"ZOPA %.1f%% below minimum %v%%", *pg.ZopaPctOfARV, pol.MinZopaPctForPursue))
	}
	if in.SpreadCash != nil && *in.SpreadCash < pol.MinSpreadForEvidence {
		passReasons = append(passReasons, moneyPrinter.Sprintf(
			"Spread $%.0f below minimum $%.0f", *in.SpreadCash, pol.MinSpreadForEvidence))
	}

	if in.WorkflowState != nil && *in.WorkflowState == WorkflowNeedsInfo {
		evidenceReasons = append(evidenceReasons, "Workflow state is NeedsInfo")
	}
	if gradeAtOrBelow(in.ConfidenceGrade, pol.LowConfidenceGrade) {
		evidenceReasons = append(evidenceReasons, fmt.Sprintf(
			"Confidence grade %s is at or below threshold %s", *in.ConfidenceGrade, pol.LowConfidenceGrade))
	}
	if in.EvidenceSummary != nil && len(in.EvidenceSummary.MissingCritical) > 0 {
		evidenceReasons = append(evidenceReasons,
			"Missing critical evidence: "+strings.Join(in.EvidenceSummary.MissingCritical, ", "))
	}
	if in.EvidenceSummary != nil && in.EvidenceSummary.AnyBlocking {
		evidenceReasons = append(evidenceReasons, "Evidence freshness is blocking")
	}
	if in.WorkflowState != nil && *in.WorkflowState == WorkflowNeedsReview {
		evidenceReasons = append(evidenceReasons, "Workflow state is NeedsReview")
	}
	if in.SpreadCash != nil && *in.SpreadCash >= pol.MinSpreadForEvidence && *in.SpreadCash < pol.MinSpreadForPursue {
		evidenceReasons = append(evidenceReasons, moneyPrinter.Sprintf(
			"Spread $%.0f below PURSUE threshold $%.0f", *in.SpreadCash, pol.MinSpreadForPursue))
	}

	spreadAdequate := in.SpreadCash != nil && *in.SpreadCash >= pol.MinSpreadForPursue
	evidenceComplete := in.EvidenceSummary == nil ||
		(!in.EvidenceSummary.AnyBlocking && len(in.EvidenceSummary.MissingCritical) == 0)
	riskAcceptable := in.RiskSummary == nil ||
		(!in.RiskSummary.AnyBlocking && in.RiskSummary.Overall != RiskStop)

	var recommendation Recommendation
	var rationale string
	var confidencePct float64
	switch {
	case len(passReasons) > 0:
		recommendation = RecommendPass
		rationale = "Deal blocked: " + summarizeReasons(passReasons)
		confidencePct = 95
	case len(evidenceReasons) > 0:
		recommendation = RecommendNeedsEvidence
		rationale = "Evidence needed: " + summarizeReasons(evidenceReasons)
		confidencePct = evidenceConfidence(len(evidenceReasons), in.ConfidenceGrade)
	default:
		recommendation = RecommendPursue
		rationale = pursueRationale(in.SpreadCash, pg, in.ConfidenceGrade)
		confidencePct = pursueConfidence(in.ConfidenceGrade, pg)
	}

	primaryReasonCode := primaryReasonCodeFor(passReasons, evidenceReasons)

	result := DealVerdict{
		Recommendation:    recommendation,
		Rationale:         rationale,
		BlockingFactors:   passReasons,
		ConfidencePct:     confidencePct,
		PrimaryReasonCode: primaryReasonCode,
		SpreadAdequate:    spreadAdequate,
		EvidenceComplete:  evidenceComplete,
		RiskAcceptable:    riskAcceptable,
	}

	var td dealVerdictTrace
	td.Inputs.WorkflowState = in.WorkflowState
	if in.RiskSummary != nil {
		overall := in.RiskSummary.Overall
		td.Inputs.RiskOverall = &overall
		td.Inputs.RiskAnyBlocking = in.RiskSummary.AnyBlocking
	}
	if in.EvidenceSummary != nil {
		td.Inputs.EvidenceAnyBlocking = in.EvidenceSummary.AnyBlocking
		td.Inputs.MissingCriticalCount = len(in.EvidenceSummary.MissingCritical)
	}
	td.Inputs.SpreadCash = in.SpreadCash
	td.Inputs.ConfidenceGrade = in.ConfidenceGrade
	if pg != nil {
		td.Inputs.ZopaExists = pg.ZopaExists
		td.Inputs.ZopaPctOfARV = pg.ZopaPctOfARV
	}
	td.Evaluation.PassReasons = passReasons
	td.Evaluation.NeedsEvidenceReasons = evidenceReasons
	td.Evaluation.PursueEligible = len(passReasons) == 0 && len(evidenceReasons) == 0
	td.Result.Recommendation = recommendation
	td.Result.ConfidencePct = confidencePct
	td.Result.BlockingFactorsCount = len(passReasons)
	td.Result.PrimaryReasonCode = primaryReasonCode
	td.StatusFlags.SpreadAdequate = spreadAdequate
	td.StatusFlags.EvidenceComplete = evidenceComplete
	td.StatusFlags.RiskAcceptable = riskAcceptable
	td.Policy = pol

	trace := TraceEntry{
		Rule: RuleDealVerdict,
		Used: []string{
			"inputs.workflow_state",
			"inputs.risk_summary",
			"inputs.evidence_summary",
			"inputs.spread_cash",
			"inputs.confidence_grade",
			"inputs.price_geometry",
		},
		Details: td,
	}
	return result, trace
}

// summarizeReasons shows the first reason and how many more there are.
func summarizeReasons(reasons []string) string {
	if len(reasons) == 1 {
		return reasons[0]
	}
	return fmt.Sprintf("%s (+%d more)", reasons[0], len(reasons)-1)
}

func evidenceConfidence(reasonCount int, grade *Grade) float64 {
	base := 60.0
	base -= min(20, float64(reasonCount)*5)
	if grade != nil {
		switch *grade {
		case GradeB:
			base += 10
		case GradeC:
			base -= 10
		}
	}
	return clamp(base, 30, 75)
}

func pursueConfidence(grade *Grade, pg *PriceGeometry) float64 {
	base := 80.0
	if grade != nil && *grade == GradeA {
		base = 92
	}
	if pg != nil && pg.ZopaPctOfARV != nil && *pg.ZopaPctOfARV > 10 {
		base += 5
	}
	if base > 98 {
		base = 98
	}
	return base
}

func pursueRationale(spreadCash *float64, pg *PriceGeometry, grade *Grade) string {
	var parts []string
	if spreadCash != nil {
		parts = append(parts, moneyPrinter.Sprintf("$%.0f spread", *spreadCash))
	}
	if pg != nil && pg.ZopaPctOfARV != nil {
		parts = append(parts, fmt.Sprintf("%.1f%% ZOPA", *pg.ZopaPctOfARV))
	}
	if grade != nil {
		parts = append(parts, fmt.Sprintf("Grade %s", *grade))
	}
	if len(parts) == 0 {
		return "All gates pass, deal is viable"
	}
	return "Viable deal: " + strings.Join(parts, ", ")
}

// primaryReasonCodeFor maps the first reason in play to a stable code by
// keyword, checked in priority order.
func primaryReasonCodeFor(passReasons, evidenceReasons []string) string {
	if len(passReasons) > 0 {
		first := strings.ToLower(passReasons[0])
		switch {
		case strings.Contains(first, "risk"):
			return ReasonRiskBlock
		case strings.Contains(first, "zopa"):
			return ReasonNoZopa
		case strings.Contains(first, "spread"):
			return ReasonLowSpread
		default:
			return ReasonDealKiller
		}
	}
	if len(evidenceReasons) > 0 {
		first := strings.ToLower(evidenceReasons[0])
		switch {
		case strings.Contains(first, "workflow"):
			return ReasonWorkflowIncomplete
		case strings.Contains(first, "evidence"):
			return ReasonMissingEvidence
		case strings.Contains(first, "confidence"):
			return ReasonLowConfidence
		default:
			return ReasonEvidenceNeeded
		}
	}
	return ReasonAllClear
}

// ValidateDealVerdictInput reports input problems as warnings.
func ValidateDealVerdictInput(in DealVerdictInput) []string {
	var warns []string
	if in.SpreadCash != nil && *in.SpreadCash < 0 {
		warns = append(warns, "spread_cash cannot be negative")
	}
	if in.ConfidenceGrade != nil {
		switch *in.ConfidenceGrade {
		case GradeA, GradeB, GradeC:
		default:
			warns = append(warns, "confidence_grade must be A, B, or C")
		}
	}
	if in.WorkflowState != nil {
		switch *in.WorkflowState {
		case WorkflowNeedsInfo, WorkflowNeedsReview, WorkflowReadyForOffer:
		default:
			warns = append(warns, "workflow_state must be NeedsInfo, NeedsReview, or ReadyForOffer")
		}
	}
	if in.RiskSummary != nil {
		switch in.RiskSummary.Overall {
		case RiskGo, RiskWatch, RiskStop, RiskUnknown:
		default:
			warns = append(warns, "risk_summary.overall must be GO, WATCH, STOP, or UNKNOWN")
		}
	}
	return warns
}
