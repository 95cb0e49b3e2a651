package underwrite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strongDealInput() DealInput {
	ref := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	obtained := ref.AddDate(0, 0, -10)
	return DealInput{
		PriceGeometry: PriceGeometryInput{
			RespectFloor:  150000,
			DominantFloor: DominantFloorInvestor,
			FloorInvestor: f64ptr(150000),
			BuyerCeiling:  200000,
			ARV:           250000,
			Posture:       PostureBase,
		},
		CompQuality: CompQualityInput{
			Comps:       []Comp{perfectComp(), perfectComp(), perfectComp()},
			SubjectSqft: 1800,
		},
		EvidenceHealth: EvidenceHealthInput{
			PayoffLetter:        &obtained,
			TitleCommitment:     &obtained,
			InsuranceQuote:      &obtained,
			FourPointInspection: &obtained,
			RepairEstimate:      &obtained,
			ReferenceDate:       &ref,
		},
		MarketVelocity: MarketVelocityInput{
			DomZipDays:        12,
			MoiZipMonths:      1.5,
			CashBuyerSharePct: f64ptr(35),
		},
		NetClearance: NetClearanceInput{
			PurchasePrice: 150000,
			MaoWholesale:  f64ptr(175000),
			Arv:           250000,
		},
		WorkflowState:   workflowPtr(WorkflowReadyForOffer),
		RiskSummary:     &RiskSummary{Overall: RiskGo},
		ConfidenceGrade: gradePtr(GradeA),
	}
}

func TestEvaluate_StrongDeal(t *testing.T) {
	eval, err := Evaluate(context.Background(), strongDealInput(), DefaultPolicySet())
	require.NoError(t, err)

	assert.True(t, eval.PriceGeometry.ZopaExists)
	assert.Equal(t, 100.0, eval.CompQuality.QualityScore)
	assert.Equal(t, 100.0, eval.EvidenceHealth.HealthScore)
	assert.Equal(t, VelocityHot, eval.MarketVelocity.VelocityBand)
	assert.Equal(t, 24500.0, eval.NetClearance.Assignment.Net)
	assert.Equal(t, RecommendPursue, eval.Verdict.Recommendation)
	assert.GreaterOrEqual(t, eval.Verdict.ConfidencePct, 90.0)
}

func TestEvaluate_TraceOrderIsStable(t *testing.T) {
	eval, err := Evaluate(context.Background(), strongDealInput(), DefaultPolicySet())
	require.NoError(t, err)

	rules := make([]string, len(eval.Traces))
	for i, tr := range eval.Traces {
		rules[i] = tr.Rule
	}
	assert.Equal(t, []string{
		RulePriceGeometry,
		RuleCompQuality,
		RuleEvidenceHealth,
		RuleMarketVelocity,
		RuleNetClearance,
		RuleDealVerdict,
	}, rules)
}

func TestEvaluate_SpreadFeedsVerdict(t *testing.T) {
	in := strongDealInput()
	// Shrink the wholesale spread so the recommended net lands between the
	// evidence and pursue thresholds.
	in.NetClearance.MaoWholesale = f64ptr(160000)

	eval, err := Evaluate(context.Background(), in, DefaultPolicySet())
	require.NoError(t, err)

	assert.Equal(t, 9500.0, eval.NetClearance.Assignment.Net)
	assert.Equal(t, RecommendNeedsEvidence, eval.Verdict.Recommendation)
	assert.False(t, eval.Verdict.SpreadAdequate)
}

func TestEvaluate_DerivedEvidenceSummary(t *testing.T) {
	in := strongDealInput()
	in.EvidenceHealth.PayoffLetter = nil

	eval, err := Evaluate(context.Background(), in, DefaultPolicySet())
	require.NoError(t, err)

	assert.Equal(t, RecommendNeedsEvidence, eval.Verdict.Recommendation)
	assert.Equal(t, ReasonMissingEvidence, eval.Verdict.PrimaryReasonCode)
	assert.False(t, eval.Verdict.EvidenceComplete)
}

func TestEvaluate_ExplicitEvidenceSummaryOverrides(t *testing.T) {
	in := strongDealInput()
	in.EvidenceHealth.PayoffLetter = nil
	in.EvidenceSummary = &EvidenceSummary{} // caller vouches for evidence

	eval, err := Evaluate(context.Background(), in, DefaultPolicySet())
	require.NoError(t, err)

	assert.Equal(t, RecommendPursue, eval.Verdict.Recommendation)
}

func TestEvaluate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Evaluate(ctx, strongDealInput(), DefaultPolicySet())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateDealInput(t *testing.T) {
	assert.Empty(t, ValidateDealInput(strongDealInput()))

	in := strongDealInput()
	in.PriceGeometry.RespectFloor = -1
	in.NetClearance.PurchasePrice = -1
	warns := ValidateDealInput(in)
	assert.Len(t, warns, 2)
}

func TestDefaultPolicySetIsValid(t *testing.T) {
	assert.Empty(t, ValidatePolicySet(DefaultPolicySet()))
}
