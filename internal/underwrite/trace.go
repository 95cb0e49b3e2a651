package underwrite

// Rule identifiers stamped on trace entries, one per calculator.
const (
	RulePriceGeometry  = "PRICE_GEOMETRY_V1"
	RuleCompQuality    = "COMP_QUALITY_V1"
	RuleEvidenceHealth = "EVIDENCE_HEALTH_V1"
	RuleMarketVelocity = "MARKET_VELOCITY_V1"
	RuleNetClearance   = "NET_CLEARANCE_V1"
	RuleDealVerdict    = "DEAL_VERDICT_V1"
)

// TraceEntry is an append-only audit record emitted alongside every
// calculator result. Rule names the calculator version, Used lists the input
// fields that influenced the outcome, and Details carries a calculator
// specific payload (inputs as seen, intermediate computation, policy in
// effect) sufficient to re-derive the result by hand.
type TraceEntry struct {
	Rule    string   `json:"rule"`
	Used    []string `json:"used"`
	Details any      `json:"details"`
}
