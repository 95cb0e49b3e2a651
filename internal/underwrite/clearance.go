package underwrite

import (
	"math"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ExitStrategy identifies how the contract is monetized.
type ExitStrategy string

const (
	ExitAssignment  ExitStrategy = "assignment"
	ExitDoubleClose ExitStrategy = "double_close"
	ExitWholetail   ExitStrategy = "wholetail"
)

// NetClearancePolicy sets the cost structure for each exit strategy and the
// thresholds that gate wholetail and break ties between assignment and a
// double close.
type NetClearancePolicy struct {
	AssignmentFeeFlat float64 `json:"assignment_fee_flat" yaml:"assignment_fee_flat"`
	AssignmentFeePct  float64 `json:"assignment_fee_pct" yaml:"assignment_fee_pct"`
	AssignmentUsePct  bool    `json:"assignment_use_pct" yaml:"assignment_use_pct"`

	DcFundingFeePct       float64 `json:"dc_funding_fee_pct" yaml:"dc_funding_fee_pct"`
	DcBuySideClosingCost  float64 `json:"dc_buy_side_closing_cost" yaml:"dc_buy_side_closing_cost"`
	DcSellSideClosingCost float64 `json:"dc_sell_side_closing_cost" yaml:"dc_sell_side_closing_cost"`
	DcHoldingCostPerDay   float64 `json:"dc_holding_cost_per_day" yaml:"dc_holding_cost_per_day"`
	DcExpectedHoldDays    float64 `json:"dc_expected_hold_days" yaml:"dc_expected_hold_days"`
	DcContingencyFlat     float64 `json:"dc_contingency_flat" yaml:"dc_contingency_flat"`

	WholetailRehabBudget          float64 `json:"wholetail_rehab_budget" yaml:"wholetail_rehab_budget"`
	WholetailListingCommissionPct float64 `json:"wholetail_listing_commission_pct" yaml:"wholetail_listing_commission_pct"`
	WholetailBuyerCommissionPct   float64 `json:"wholetail_buyer_commission_pct" yaml:"wholetail_buyer_commission_pct"`
	WholetailClosingCosts         float64 `json:"wholetail_closing_costs" yaml:"wholetail_closing_costs"`
	WholetailHoldMonths           float64 `json:"wholetail_hold_months" yaml:"wholetail_hold_months"`
	WholetailHoldingCostPerMonth  float64 `json:"wholetail_holding_cost_per_month" yaml:"wholetail_holding_cost_per_month"`
	WholetailStagingMarketing     float64 `json:"wholetail_staging_marketing" yaml:"wholetail_staging_marketing"`

	WholetailMinArv             float64 `json:"wholetail_min_arv" yaml:"wholetail_min_arv"`
	WholetailMinMarginPct       float64 `json:"wholetail_min_margin_pct" yaml:"wholetail_min_margin_pct"`
	DcPreferenceMarginThreshold float64 `json:"dc_preference_margin_threshold" yaml:"dc_preference_margin_threshold"`
}

// DefaultNetClearancePolicy returns cost assumptions calibrated for Central
// Florida transactions.
func DefaultNetClearancePolicy() NetClearancePolicy {
	return NetClearancePolicy{
		AssignmentFeeFlat: 500,
		AssignmentFeePct:  0,
		AssignmentUsePct:  false,

		DcFundingFeePct:       0.02,
		DcBuySideClosingCost:  1500,
		DcSellSideClosingCost: 2000,
		DcHoldingCostPerDay:   100,
		DcExpectedHoldDays:    7,
		DcContingencyFlat:     500,

		WholetailRehabBudget:          15000,
		WholetailListingCommissionPct: 0.03,
		WholetailBuyerCommissionPct:   0.025,
		WholetailClosingCosts:         3000,
		WholetailHoldMonths:           3,
		WholetailHoldingCostPerMonth:  1500,
		WholetailStagingMarketing:     2000,

		WholetailMinArv:             200000,
		WholetailMinMarginPct:       10,
		DcPreferenceMarginThreshold: 5000,
	}
}

// NetClearanceInput carries the contract price and the maximum allowable
// offers per exit. A nil MAO means that exit's ceiling is unknown and its
// gross is computed against zero.
type NetClearanceInput struct {
	PurchasePrice   float64  `json:"purchase_price"`
	MaoWholesale    *float64 `json:"mao_wholesale"`
	MaoFlip         *float64 `json:"mao_flip"`
	MaoWholetail    *float64 `json:"mao_wholetail"`
	Arv             float64  `json:"arv"`
	WholetailViable bool     `json:"wholetail_viable"`
}

// CostBreakdown itemizes strategy costs. Nil means the category does not
// apply to the strategy.
type CostBreakdown struct {
	TitleFees    *float64 `json:"title_fees"`
	ClosingCosts *float64 `json:"closing_costs"`
	TransferTax  *float64 `json:"transfer_tax"`
	CarryCosts   *float64 `json:"carry_costs"`
	Other        *float64 `json:"other"`
}

// ClearanceBreakdown is the profit picture for one exit strategy. Net is
// floored at zero; MarginPct is net over gross, or zero when gross is not
// positive.
type ClearanceBreakdown struct {
	Gross         float64       `json:"gross"`
	Costs         float64       `json:"costs"`
	Net           float64       `json:"net"`
	MarginPct     float64       `json:"margin_pct"`
	CostBreakdown CostBreakdown `json:"cost_breakdown"`
}

// NetClearance is the per-exit profitability comparison. Wholetail is nil
// unless viable, priced, above the ARV floor, and clearing the margin
// minimum.
type NetClearance struct {
	Assignment           ClearanceBreakdown  `json:"assignment"`
	DoubleClose          ClearanceBreakdown  `json:"double_close"`
	Wholetail            *ClearanceBreakdown `json:"wholetail"`
	RecommendedExit      ExitStrategy        `json:"recommended_exit"`
	RecommendationReason string              `json:"recommendation_reason"`
	NetAdvantage         float64             `json:"net_advantage"`
	WholetailViable      bool                `json:"wholetail_viable"`
	MinSpreadThreshold   float64             `json:"min_spread_threshold"`
}

// RecommendedNet returns the net of the recommended exit strategy, the
// spread figure the verdict judges.
func (c NetClearance) RecommendedNet() float64 {
	switch c.RecommendedExit {
	case ExitDoubleClose:
		return c.DoubleClose.Net
	case ExitWholetail:
		if c.Wholetail != nil {
			return c.Wholetail.Net
		}
		return 0
	default:
		return c.Assignment.Net
	}
}

type strategyCostTrace struct {
	Gross          float64            `json:"gross"`
	CostsBreakdown map[string]float64 `json:"costs_breakdown"`
	TotalCosts     float64            `json:"total_costs"`
	Net            float64            `json:"net"`
	MarginPct      float64            `json:"margin_pct"`
}

type netClearanceTrace struct {
	Inputs struct {
		PurchasePrice   float64  `json:"purchase_price"`
		MaoWholesale    *float64 `json:"mao_wholesale"`
		MaoFlip         *float64 `json:"mao_flip"`
		MaoWholetail    *float64 `json:"mao_wholetail"`
		Arv             float64  `json:"arv"`
		WholetailViable bool     `json:"wholetail_viable"`
	} `json:"inputs"`
	Assignment  strategyCostTrace `json:"assignment"`
	DoubleClose strategyCostTrace `json:"double_close"`
	Wholetail   struct {
		Computed   bool     `json:"computed"`
		Gross      *float64 `json:"gross"`
		TotalCosts *float64 `json:"total_costs"`
		Net        *float64 `json:"net"`
		MarginPct  *float64 `json:"margin_pct"`
	} `json:"wholetail"`
	Recommendation struct {
		Exit         ExitStrategy `json:"exit"`
		Reason       string       `json:"reason"`
		NetAdvantage float64      `json:"net_advantage"`
	} `json:"recommendation"`
	Policy NetClearancePolicy `json:"policy"`
}

var moneyPrinter = message.NewPrinter(language.English)

func moneyString(v float64) string {
	return moneyPrinter.Sprintf("$%.0f", v)
}

// ComputeNetClearance prices out every exit strategy and recommends one.
// The strategy with the highest net wins, except that a double close whose
// advantage over assignment is under the preference threshold loses to the
// simpler assignment when assignment still nets something.
func ComputeNetClearance(in NetClearanceInput, pol NetClearancePolicy) (NetClearance, TraceEntry) {
	assignment, assignmentFee := assignmentClearance(in, pol)
	doubleClose, dcCosts := doubleCloseClearance(in, pol)
	wholetail := wholetailClearance(in, pol)

	exit, reason, advantage := recommendExit(assignment, doubleClose, wholetail, pol)

	result := NetClearance{
		Assignment:           assignment,
		DoubleClose:          doubleClose,
		Wholetail:            wholetail,
		RecommendedExit:      exit,
		RecommendationReason: reason,
		NetAdvantage:         advantage,
		WholetailViable:      in.WholetailViable,
		MinSpreadThreshold:   pol.DcPreferenceMarginThreshold,
	}

	var td netClearanceTrace
	td.Inputs.PurchasePrice = in.PurchasePrice
	td.Inputs.MaoWholesale = in.MaoWholesale
	td.Inputs.MaoFlip = in.MaoFlip
	td.Inputs.MaoWholetail = in.MaoWholetail
	td.Inputs.Arv = in.Arv
	td.Inputs.WholetailViable = in.WholetailViable
	td.Assignment = strategyCostTrace{
		Gross:          assignment.Gross,
		CostsBreakdown: map[string]float64{"assignment_fee": round2(assignmentFee)},
		TotalCosts:     assignment.Costs,
		Net:            assignment.Net,
		MarginPct:      assignment.MarginPct,
	}
	td.DoubleClose = strategyCostTrace{
		Gross:          doubleClose.Gross,
		CostsBreakdown: dcCosts,
		TotalCosts:     doubleClose.Costs,
		Net:            doubleClose.Net,
		MarginPct:      doubleClose.MarginPct,
	}
	td.Wholetail.Computed = wholetail != nil
	if wholetail != nil {
		td.Wholetail.Gross = f64ptr(wholetail.Gross)
		td.Wholetail.TotalCosts = f64ptr(wholetail.Costs)
		td.Wholetail.Net = f64ptr(wholetail.Net)
		td.Wholetail.MarginPct = f64ptr(wholetail.MarginPct)
	}
	td.Recommendation.Exit = exit
	td.Recommendation.Reason = reason
	td.Recommendation.NetAdvantage = advantage
	td.Policy = pol

	trace := TraceEntry{
		Rule: RuleNetClearance,
		Used: []string{
			"inputs.purchase_price",
			"inputs.mao_wholesale",
			"inputs.mao_flip",
			"inputs.mao_wholetail",
			"inputs.arv",
			"policy.disposition",
		},
		Details: td,
	}
	return result, trace
}

func assignmentClearance(in NetClearanceInput, pol NetClearancePolicy) (ClearanceBreakdown, float64) {
	var mao float64
	if in.MaoWholesale != nil {
		mao = *in.MaoWholesale
	}
	gross := mao - in.PurchasePrice

	// A percentage fee is taken on the positive part of the spread only, so
	// an underwater deal never produces a negative fee.
	fee := pol.AssignmentFeeFlat
	if pol.AssignmentUsePct {
		fee = math.Max(0, gross) * pol.AssignmentFeePct
	}

	net := math.Max(0, gross-fee)
	var marginPct float64
	if gross > 0 {
		marginPct = round2(net / gross * 100)
	}

	return ClearanceBreakdown{
		Gross:     round2(gross),
		Costs:     round2(fee),
		Net:       round2(net),
		MarginPct: marginPct,
		CostBreakdown: CostBreakdown{
			TitleFees: f64ptr(round2(fee)),
		},
	}, fee
}

func doubleCloseClearance(in NetClearanceInput, pol NetClearancePolicy) (ClearanceBreakdown, map[string]float64) {
	var mao float64
	if in.MaoFlip != nil {
		mao = *in.MaoFlip
	}
	gross := mao - in.PurchasePrice

	fundingFee := in.PurchasePrice * pol.DcFundingFeePct
	holding := pol.DcHoldingCostPerDay * pol.DcExpectedHoldDays
	totalCosts := fundingFee + pol.DcBuySideClosingCost + pol.DcSellSideClosingCost + holding + pol.DcContingencyFlat

	net := math.Max(0, gross-totalCosts)
	var marginPct float64
	if gross > 0 {
		marginPct = round2(net / gross * 100)
	}

	breakdown := ClearanceBreakdown{
		Gross:     round2(gross),
		Costs:     round2(totalCosts),
		Net:       round2(net),
		MarginPct: marginPct,
		CostBreakdown: CostBreakdown{
			TitleFees:    f64ptr(round2(pol.DcBuySideClosingCost + pol.DcSellSideClosingCost)),
			ClosingCosts: f64ptr(round2(fundingFee)),
			CarryCosts:   f64ptr(round2(holding)),
			Other:        f64ptr(round2(pol.DcContingencyFlat)),
		},
	}
	costs := map[string]float64{
		"funding_fee":       round2(fundingFee),
		"buy_side_closing":  round2(pol.DcBuySideClosingCost),
		"sell_side_closing": round2(pol.DcSellSideClosingCost),
		"holding_cost":      round2(holding),
		"contingency":       round2(pol.DcContingencyFlat),
	}
	return breakdown, costs
}

func wholetailClearance(in NetClearanceInput, pol NetClearancePolicy) *ClearanceBreakdown {
	if !in.WholetailViable || in.MaoWholetail == nil || in.Arv < pol.WholetailMinArv {
		return nil
	}

	mao := *in.MaoWholetail
	gross := mao - in.PurchasePrice

	listingCommission := mao * pol.WholetailListingCommissionPct
	buyerCommission := mao * pol.WholetailBuyerCommissionPct
	holding := pol.WholetailHoldingCostPerMonth * pol.WholetailHoldMonths
	totalCosts := pol.WholetailRehabBudget + listingCommission + buyerCommission +
		pol.WholetailClosingCosts + holding + pol.WholetailStagingMarketing

	net := math.Max(0, gross-totalCosts)
	var marginPct float64
	if gross > 0 {
		marginPct = round2(net / gross * 100)
	}
	if marginPct < pol.WholetailMinMarginPct {
		return nil
	}

	return &ClearanceBreakdown{
		Gross:     round2(gross),
		Costs:     round2(totalCosts),
		Net:       round2(net),
		MarginPct: marginPct,
		CostBreakdown: CostBreakdown{
			TitleFees:    f64ptr(round2(pol.WholetailClosingCosts)),
			ClosingCosts: f64ptr(round2(listingCommission + buyerCommission)),
			CarryCosts:   f64ptr(round2(holding)),
			Other:        f64ptr(round2(pol.WholetailRehabBudget + pol.WholetailStagingMarketing)),
		},
	}
}

// recommendExit picks the highest-net strategy, then demotes a double close
// whose edge over assignment is too thin to justify the second closing.
func recommendExit(assignment, doubleClose ClearanceBreakdown, wholetail *ClearanceBreakdown, pol NetClearancePolicy) (ExitStrategy, string, float64) {
	type candidate struct {
		exit ExitStrategy
		net  float64
	}
	candidates := []candidate{
		{ExitAssignment, assignment.Net},
		{ExitDoubleClose, doubleClose.Net},
	}
	if wholetail != nil {
		candidates = append(candidates, candidate{ExitWholetail, wholetail.Net})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].net > candidates[j].net
	})

	best := candidates[0]
	advantage := round2(best.net - candidates[1].net)

	if best.exit == ExitDoubleClose {
		dcEdge := doubleClose.Net - assignment.Net
		if dcEdge < pol.DcPreferenceMarginThreshold && assignment.Net > 0 {
			reason := moneyPrinter.Sprintf(
				"Assignment preferred: double close advantage of $%.0f below $%.0f threshold, simpler execution",
				dcEdge, pol.DcPreferenceMarginThreshold)
			return ExitAssignment, reason, advantage
		}
		return ExitDoubleClose, moneyPrinter.Sprintf("Double close nets $%.0f more than assignment", dcEdge), advantage
	}
	if best.exit == ExitWholetail {
		return ExitWholetail, moneyPrinter.Sprintf("Wholetail nets $%.0f more, worth extended timeline", advantage), advantage
	}
	return ExitAssignment, "Highest net profit: " + moneyString(best.net), advantage
}

// ValidateNetClearanceInput reports input problems as warnings.
func ValidateNetClearanceInput(in NetClearanceInput) []string {
	var warns []string
	if in.PurchasePrice < 0 {
		warns = append(warns, "purchase_price cannot be negative")
	}
	if in.Arv < 0 {
		warns = append(warns, "arv cannot be negative")
	}
	if in.MaoWholesale != nil && *in.MaoWholesale < 0 {
		warns = append(warns, "mao_wholesale cannot be negative")
	}
	if in.MaoFlip != nil && *in.MaoFlip < 0 {
		warns = append(warns, "mao_flip cannot be negative")
	}
	if in.MaoWholetail != nil && *in.MaoWholetail < 0 {
		warns = append(warns, "mao_wholetail cannot be negative")
	}
	return warns
}

// BreakEvenPrices holds the highest purchase price at which each strategy
// still nets zero.
type BreakEvenPrices struct {
	Assignment  float64 `json:"assignment"`
	DoubleClose float64 `json:"double_close"`
}

// ComputeBreakEvenPrices inverts the cost model for negotiation guidance.
// The double close break-even solves for the funding fee being a percentage
// of the purchase price itself.
func ComputeBreakEvenPrices(pol NetClearancePolicy, maoWholesale, maoFlip float64) BreakEvenPrices {
	dcFixed := pol.DcBuySideClosingCost + pol.DcSellSideClosingCost +
		pol.DcHoldingCostPerDay*pol.DcExpectedHoldDays + pol.DcContingencyFlat
	return BreakEvenPrices{
		Assignment:  round2(maoWholesale - pol.AssignmentFeeFlat),
		DoubleClose: round2((maoFlip - dcFixed) / (1 + pol.DcFundingFeePct)),
	}
}
