package underwrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradePtr(g Grade) *Grade { return &g }

func workflowPtr(w WorkflowState) *WorkflowState { return &w }

func pursueGeometry() *PriceGeometry {
	return &PriceGeometry{
		ZopaExists:   true,
		Zopa:         f64ptr(50000),
		ZopaPctOfARV: f64ptr(20),
	}
}

func TestDeriveDealVerdict_Pursue(t *testing.T) {
	result, trace := DeriveDealVerdict(DealVerdictInput{
		WorkflowState:   workflowPtr(WorkflowReadyForOffer),
		RiskSummary:     &RiskSummary{Overall: RiskGo},
		EvidenceSummary: &EvidenceSummary{},
		SpreadCash:      f64ptr(25000),
		ConfidenceGrade: gradePtr(GradeA),
		PriceGeometry:   pursueGeometry(),
	}, DefaultDealVerdictPolicy())

	assert.Equal(t, RecommendPursue, result.Recommendation)
	assert.GreaterOrEqual(t, result.ConfidencePct, 90.0)
	assert.Empty(t, result.BlockingFactors)
	assert.Equal(t, ReasonAllClear, result.PrimaryReasonCode)
	assert.True(t, result.SpreadAdequate)
	assert.True(t, result.EvidenceComplete)
	assert.True(t, result.RiskAcceptable)
	assert.Contains(t, result.Rationale, "$25,000 spread")
	assert.Equal(t, RuleDealVerdict, trace.Rule)
}

func TestDeriveDealVerdict_PassAccumulatesBlockers(t *testing.T) {
	result, _ := DeriveDealVerdict(DealVerdictInput{
		RiskSummary:   &RiskSummary{Overall: RiskStop, AnyBlocking: true},
		SpreadCash:    f64ptr(1000),
		PriceGeometry: &PriceGeometry{ZopaExists: false},
	}, DefaultDealVerdictPolicy())

	assert.Equal(t, RecommendPass, result.Recommendation)
	assert.GreaterOrEqual(t, len(result.BlockingFactors), 2, "every fatal reason is recorded")
	assert.Equal(t, 95.0, result.ConfidencePct)
	assert.Equal(t, ReasonRiskBlock, result.PrimaryReasonCode)
	assert.False(t, result.RiskAcceptable)
}

func TestDeriveDealVerdict_DealKillerGate(t *testing.T) {
	result, _ := DeriveDealVerdict(DealVerdictInput{
		RiskSummary: &RiskSummary{
			Overall: RiskWatch,
			Gates: map[string]RiskGate{
				"title": {Status: RiskStop, Reason: "clouded title"},
			},
		},
		SpreadCash:    f64ptr(25000),
		PriceGeometry: pursueGeometry(),
	}, DefaultDealVerdictPolicy())

	assert.Equal(t, RecommendPass, result.Recommendation)
	require.Len(t, result.BlockingFactors, 1)
	assert.Contains(t, result.BlockingFactors[0], `"title"`)
	assert.Contains(t, result.BlockingFactors[0], "clouded title")
	assert.Equal(t, ReasonDealKiller, result.PrimaryReasonCode)
}

func TestDeriveDealVerdict_NoZopa(t *testing.T) {
	result, _ := DeriveDealVerdict(DealVerdictInput{
		SpreadCash:    f64ptr(25000),
		PriceGeometry: &PriceGeometry{ZopaExists: false},
	}, DefaultDealVerdictPolicy())

	assert.Equal(t, RecommendPass, result.Recommendation)
	assert.Equal(t, ReasonNoZopa, result.PrimaryReasonCode)
}

func TestDeriveDealVerdict_ThinZopaPct(t *testing.T) {
	result, _ := DeriveDealVerdict(DealVerdictInput{
		SpreadCash: f64ptr(25000),
		PriceGeometry: &PriceGeometry{
			ZopaExists:   true,
			ZopaPctOfARV: f64ptr(2.0), // under the 3% pursue minimum
		},
	}, DefaultDealVerdictPolicy())

	assert.Equal(t, RecommendPass, result.Recommendation)
	assert.Equal(t, ReasonNoZopa, result.PrimaryReasonCode)
}

func TestDeriveDealVerdict_LowSpread(t *testing.T) {
	result, _ := DeriveDealVerdict(DealVerdictInput{
		SpreadCash:    f64ptr(1000),
		PriceGeometry: pursueGeometry(),
	}, DefaultDealVerdictPolicy())

	assert.Equal(t, RecommendPass, result.Recommendation)
	assert.Equal(t, ReasonLowSpread, result.PrimaryReasonCode)
	assert.Contains(t, result.Rationale, "$1,000 below minimum $5,000")
}

func TestDeriveDealVerdict_MidSpreadNeedsEvidence(t *testing.T) {
	result, _ := DeriveDealVerdict(DealVerdictInput{
		SpreadCash:    f64ptr(10000),
		PriceGeometry: pursueGeometry(),
	}, DefaultDealVerdictPolicy())

	assert.Equal(t, RecommendNeedsEvidence, result.Recommendation)
	assert.Equal(t, ReasonEvidenceNeeded, result.PrimaryReasonCode, "spread reasons do not map to a keyword code")
	assert.False(t, result.SpreadAdequate)
}

func TestDeriveDealVerdict_GradeCNeedsEvidence(t *testing.T) {
	result, _ := DeriveDealVerdict(DealVerdictInput{
		SpreadCash:      f64ptr(25000),
		ConfidenceGrade: gradePtr(GradeC),
		PriceGeometry:   pursueGeometry(),
	}, DefaultDealVerdictPolicy())

	assert.Equal(t, RecommendNeedsEvidence, result.Recommendation)
	assert.Equal(t, ReasonLowConfidence, result.PrimaryReasonCode)
	// Base 60, one reason (-5), grade C (-10) = 45.
	assert.Equal(t, 45.0, result.ConfidencePct)
}

func TestDeriveDealVerdict_MissingCriticalEvidence(t *testing.T) {
	result, _ := DeriveDealVerdict(DealVerdictInput{
		SpreadCash: f64ptr(25000),
		EvidenceSummary: &EvidenceSummary{
			MissingCritical: []string{"Payoff Letter"},
		},
		PriceGeometry: pursueGeometry(),
	}, DefaultDealVerdictPolicy())

	assert.Equal(t, RecommendNeedsEvidence, result.Recommendation)
	assert.Equal(t, ReasonMissingEvidence, result.PrimaryReasonCode)
	assert.False(t, result.EvidenceComplete)
}

func TestDeriveDealVerdict_WorkflowStates(t *testing.T) {
	for _, state := range []WorkflowState{WorkflowNeedsInfo, WorkflowNeedsReview} {
		result, _ := DeriveDealVerdict(DealVerdictInput{
			WorkflowState: workflowPtr(state),
			SpreadCash:    f64ptr(25000),
			PriceGeometry: pursueGeometry(),
		}, DefaultDealVerdictPolicy())
		assert.Equal(t, RecommendNeedsEvidence, result.Recommendation, string(state))
		assert.Equal(t, ReasonWorkflowIncomplete, result.PrimaryReasonCode, string(state))
	}
}

func TestDeriveDealVerdict_EmptyInputPursues(t *testing.T) {
	// With no signals at all nothing can block, so the verdict is pursue
	// with the stock confidence.
	result, _ := DeriveDealVerdict(DealVerdictInput{}, DefaultDealVerdictPolicy())

	assert.Equal(t, RecommendPursue, result.Recommendation)
	assert.Equal(t, "All gates pass, deal is viable", result.Rationale)
	assert.Equal(t, 80.0, result.ConfidencePct)
	assert.Equal(t, ReasonAllClear, result.PrimaryReasonCode)
	assert.False(t, result.SpreadAdequate, "unknown spread is not adequate")
	assert.True(t, result.EvidenceComplete)
	assert.True(t, result.RiskAcceptable)
}

func TestDeriveDealVerdict_PursueConfidenceCaps(t *testing.T) {
	result, _ := DeriveDealVerdict(DealVerdictInput{
		SpreadCash:      f64ptr(50000),
		ConfidenceGrade: gradePtr(GradeA),
		PriceGeometry:   pursueGeometry(),
	}, DefaultDealVerdictPolicy())

	// Grade A (92) + wide ZOPA (+5) = 97, under the 98 cap.
	assert.Equal(t, 97.0, result.ConfidencePct)
}

func TestValidateDealVerdictInput(t *testing.T) {
	badGrade := Grade("D")
	badState := WorkflowState("Archived")
	warns := ValidateDealVerdictInput(DealVerdictInput{
		SpreadCash:      f64ptr(-1),
		ConfidenceGrade: &badGrade,
		WorkflowState:   &badState,
		RiskSummary:     &RiskSummary{Overall: RiskStatus("MAYBE")},
	})
	assert.Len(t, warns, 4)

	assert.Empty(t, ValidateDealVerdictInput(DealVerdictInput{}))
}
