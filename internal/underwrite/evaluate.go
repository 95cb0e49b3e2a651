package underwrite

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// PolicySet bundles the policies for all six calculators. Sections are
// replaced whole: a custom set swaps entire calculator policies, never
// individual fields.
type PolicySet struct {
	PriceGeometry  PriceGeometryPolicy  `json:"price_geometry" yaml:"price_geometry"`
	CompQuality    CompQualityPolicy    `json:"comp_quality" yaml:"comp_quality"`
	EvidenceHealth EvidenceHealthPolicy `json:"evidence_health" yaml:"evidence_health"`
	MarketVelocity MarketVelocityPolicy `json:"market_velocity" yaml:"market_velocity"`
	NetClearance   NetClearancePolicy   `json:"net_clearance" yaml:"net_clearance"`
	DealVerdict    DealVerdictPolicy    `json:"deal_verdict" yaml:"deal_verdict"`
}

// DefaultPolicySet returns the stock policy for every calculator.
func DefaultPolicySet() PolicySet {
	return PolicySet{
		PriceGeometry:  DefaultPriceGeometryPolicy(),
		CompQuality:    DefaultCompQualityPolicy(),
		EvidenceHealth: DefaultEvidenceHealthPolicy(),
		MarketVelocity: DefaultMarketVelocityPolicy(),
		NetClearance:   DefaultNetClearancePolicy(),
		DealVerdict:    DefaultDealVerdictPolicy(),
	}
}

// DealInput is the full dossier for one deal. The five calculator inputs
// are independent; WorkflowState, RiskSummary, and ConfidenceGrade come
// from upstream systems and feed the verdict directly. EvidenceSummary
// overrides the summary normally derived from the evidence health result.
type DealInput struct {
	PriceGeometry   PriceGeometryInput  `json:"price_geometry"`
	CompQuality     CompQualityInput    `json:"comp_quality"`
	EvidenceHealth  EvidenceHealthInput `json:"evidence_health"`
	MarketVelocity  MarketVelocityInput `json:"market_velocity"`
	NetClearance    NetClearanceInput   `json:"net_clearance"`
	WorkflowState   *WorkflowState      `json:"workflow_state,omitempty"`
	RiskSummary     *RiskSummary        `json:"risk_summary,omitempty"`
	ConfidenceGrade *Grade              `json:"confidence_grade,omitempty"`
	EvidenceSummary *EvidenceSummary    `json:"evidence_summary,omitempty"`
}

// DealEvaluation is the combined output of all six calculators. Traces are
// in calculator order regardless of completion order.
type DealEvaluation struct {
	PriceGeometry  PriceGeometry  `json:"price_geometry"`
	CompQuality    CompQuality    `json:"comp_quality"`
	EvidenceHealth EvidenceHealth `json:"evidence_health"`
	MarketVelocity MarketVelocity `json:"market_velocity"`
	NetClearance   NetClearance   `json:"net_clearance"`
	Verdict        DealVerdict    `json:"verdict"`
	Traces         []TraceEntry   `json:"traces"`
}

// Evaluate runs the five leaf calculators concurrently, then derives the
// verdict from their outputs. The only error condition is context
// cancellation; the calculators themselves are total.
func Evaluate(ctx context.Context, in DealInput, pol PolicySet) (DealEvaluation, error) {
	var (
		geometry       PriceGeometry
		geometryTrace  TraceEntry
		comps          CompQuality
		compsTrace     TraceEntry
		evidence       EvidenceHealth
		evidenceTrace  TraceEntry
		velocity       MarketVelocity
		velocityTrace  TraceEntry
		clearance      NetClearance
		clearanceTrace TraceEntry
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		geometry, geometryTrace = ComputePriceGeometry(in.PriceGeometry, pol.PriceGeometry)
		return ctx.Err()
	})
	g.Go(func() error {
		comps, compsTrace = ComputeCompQuality(in.CompQuality, pol.CompQuality)
		return ctx.Err()
	})
	g.Go(func() error {
		evidence, evidenceTrace = ComputeEvidenceHealth(in.EvidenceHealth, pol.EvidenceHealth)
		return ctx.Err()
	})
	g.Go(func() error {
		velocity, velocityTrace = ComputeMarketVelocity(in.MarketVelocity, pol.MarketVelocity)
		return ctx.Err()
	})
	g.Go(func() error {
		clearance, clearanceTrace = ComputeNetClearance(in.NetClearance, pol.NetClearance)
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return DealEvaluation{}, err
	}

	spread := clearance.RecommendedNet()
	evidenceSummary := in.EvidenceSummary
	if evidenceSummary == nil {
		evidenceSummary = summarizeEvidence(evidence)
	}

	verdict, verdictTrace := DeriveDealVerdict(DealVerdictInput{
		WorkflowState:   in.WorkflowState,
		RiskSummary:     in.RiskSummary,
		EvidenceSummary: evidenceSummary,
		SpreadCash:      &spread,
		ConfidenceGrade: in.ConfidenceGrade,
		PriceGeometry:   &geometry,
	}, pol.DealVerdict)

	return DealEvaluation{
		PriceGeometry:  geometry,
		CompQuality:    comps,
		EvidenceHealth: evidence,
		MarketVelocity: velocity,
		NetClearance:   clearance,
		Verdict:        verdict,
		Traces: []TraceEntry{
			geometryTrace,
			compsTrace,
			evidenceTrace,
			velocityTrace,
			clearanceTrace,
			verdictTrace,
		},
	}, nil
}

// summarizeEvidence condenses the evidence health result for the verdict.
// Stale critical documents block; missing critical documents are listed by
// label.
func summarizeEvidence(h EvidenceHealth) *EvidenceSummary {
	labels := make([]string, len(h.MissingCritical))
	for i, t := range h.MissingCritical {
		labels[i] = EvidenceLabel(t)
	}
	return &EvidenceSummary{
		AnyBlocking:     h.AnyCriticalStale,
		MissingCritical: labels,
	}
}

// ValidateDealInput aggregates the per-calculator validators plus verdict
// input checks.
func ValidateDealInput(in DealInput) []string {
	var warns []string
	warns = append(warns, ValidatePriceGeometryInput(in.PriceGeometry)...)
	warns = append(warns, ValidateCompQualityInput(in.CompQuality)...)
	warns = append(warns, ValidateEvidenceHealthInput(in.EvidenceHealth)...)
	warns = append(warns, ValidateMarketVelocityInput(in.MarketVelocity)...)
	warns = append(warns, ValidateNetClearanceInput(in.NetClearance)...)
	warns = append(warns, ValidateDealVerdictInput(DealVerdictInput{
		WorkflowState:   in.WorkflowState,
		RiskSummary:     in.RiskSummary,
		ConfidenceGrade: in.ConfidenceGrade,
	})...)
	return warns
}

// ValidatePolicySet aggregates the policy validators.
func ValidatePolicySet(pol PolicySet) []string {
	var warns []string
	warns = append(warns, ValidatePriceGeometryPolicy(pol.PriceGeometry)...)
	warns = append(warns, ValidateEvidenceHealthPolicy(pol.EvidenceHealth)...)
	warns = append(warns, ValidateMarketVelocityPolicy(pol.MarketVelocity)...)
	return warns
}
