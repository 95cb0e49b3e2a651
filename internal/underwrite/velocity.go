package underwrite

import (
	"fmt"
	"math"
)

// VelocityBand classifies market speed from hot (fastest) to cold.
type VelocityBand string

const (
	VelocityHot      VelocityBand = "hot"
	VelocityWarm     VelocityBand = "warm"
	VelocityBalanced VelocityBand = "balanced"
	VelocityCool     VelocityBand = "cool"
	VelocityCold     VelocityBand = "cold"
)

// velocityRank orders bands from fastest to slowest for conservative
// combination.
func velocityRank(b VelocityBand) int {
	switch b {
	case VelocityHot:
		return 0
	case VelocityWarm:
		return 1
	case VelocityBalanced:
		return 2
	case VelocityCool:
		return 3
	default:
		return 4
	}
}

// MarketCondition classifies the market by sale-to-list ratio.
type MarketCondition string

const (
	SellersMarket          MarketCondition = "sellers_market"
	BalancedMarket         MarketCondition = "balanced_market"
	BuyersMarket           MarketCondition = "buyers_market"
	UnknownMarketCondition MarketCondition = "unknown"
)

// UrgencySignal drives how aggressively a disposition should be pushed.
type UrgencySignal string

const (
	UrgencyHigh   UrgencySignal = "high"
	UrgencyMedium UrgencySignal = "medium"
	UrgencyLow    UrgencySignal = "low"
)

// DispositionStrategy is an exit approach suggested by market conditions.
type DispositionStrategy string

const (
	StrategyAssignment          DispositionStrategy = "assignment"
	StrategyDoubleClose         DispositionStrategy = "double_close"
	StrategyHoldForAppreciation DispositionStrategy = "hold_for_appreciation"
)

// MarketVelocityPolicy sets the band cutoffs and liquidity score weights.
// The three liquidity weights should sum to 1.0.
type MarketVelocityPolicy struct {
	HotMaxDom      float64 `json:"hot_max_dom" yaml:"hot_max_dom"`
	WarmMaxDom     float64 `json:"warm_max_dom" yaml:"warm_max_dom"`
	BalancedMaxDom float64 `json:"balanced_max_dom" yaml:"balanced_max_dom"`
	CoolMaxDom     float64 `json:"cool_max_dom" yaml:"cool_max_dom"`

	HotMaxMoi      float64 `json:"hot_max_moi" yaml:"hot_max_moi"`
	WarmMaxMoi     float64 `json:"warm_max_moi" yaml:"warm_max_moi"`
	BalancedMaxMoi float64 `json:"balanced_max_moi" yaml:"balanced_max_moi"`
	CoolMaxMoi     float64 `json:"cool_max_moi" yaml:"cool_max_moi"`

	LiquidityDomWeight         float64 `json:"liquidity_dom_weight" yaml:"liquidity_dom_weight"`
	LiquidityMoiWeight         float64 `json:"liquidity_moi_weight" yaml:"liquidity_moi_weight"`
	LiquidityCashBuyerWeight   float64 `json:"liquidity_cash_buyer_weight" yaml:"liquidity_cash_buyer_weight"`
	LiquidityIdealDom          float64 `json:"liquidity_ideal_dom" yaml:"liquidity_ideal_dom"`
	LiquidityIdealMoi          float64 `json:"liquidity_ideal_moi" yaml:"liquidity_ideal_moi"`
	LiquidityIdealCashBuyerPct float64 `json:"liquidity_ideal_cash_buyer_pct" yaml:"liquidity_ideal_cash_buyer_pct"`

	SellerMarketSaleToListPct float64 `json:"seller_market_sale_to_list_pct" yaml:"seller_market_sale_to_list_pct"`
	BuyerMarketSaleToListPct  float64 `json:"buyer_market_sale_to_list_pct" yaml:"buyer_market_sale_to_list_pct"`
}

// DefaultMarketVelocityPolicy returns cutoffs calibrated for Central Florida
// residential markets.
func DefaultMarketVelocityPolicy() MarketVelocityPolicy {
	return MarketVelocityPolicy{
		HotMaxDom:      14,
		WarmMaxDom:     30,
		BalancedMaxDom: 60,
		CoolMaxDom:     90,

		HotMaxMoi:      2,
		WarmMaxMoi:     4,
		BalancedMaxMoi: 6,
		CoolMaxMoi:     9,

		LiquidityDomWeight:         0.4,
		LiquidityMoiWeight:         0.4,
		LiquidityCashBuyerWeight:   0.2,
		LiquidityIdealDom:          14,
		LiquidityIdealMoi:          2,
		LiquidityIdealCashBuyerPct: 30,

		SellerMarketSaleToListPct: 100,
		BuyerMarketSaleToListPct:  95,
	}
}

// MarketVelocityInput carries ZIP-level market metrics. AbsorptionRate,
// SaleToListPct, and CashBuyerSharePct are nil when the data source had no
// reading.
type MarketVelocityInput struct {
	DomZipDays        float64  `json:"dom_zip_days"`
	MoiZipMonths      float64  `json:"moi_zip_months"`
	AbsorptionRate    *float64 `json:"absorption_rate"`
	SaleToListPct     *float64 `json:"sale_to_list_pct"`
	CashBuyerSharePct *float64 `json:"cash_buyer_share_pct"`
}

// MarketVelocity is the computed market speed assessment.
type MarketVelocity struct {
	DomZipDays         float64         `json:"dom_zip_days"`
	MoiZipMonths       float64         `json:"moi_zip_months"`
	AbsorptionRate     *float64        `json:"absorption_rate"`
	SaleToListPct      *float64        `json:"sale_to_list_pct"`
	CashBuyerSharePct  *float64        `json:"cash_buyer_share_pct"`
	VelocityBand       VelocityBand    `json:"velocity_band"`
	LiquidityScore     float64         `json:"liquidity_score"`
	MarketCondition    MarketCondition `json:"market_condition"`
	HoldTimeMultiplier float64         `json:"hold_time_multiplier"`
	UrgencySignal      UrgencySignal   `json:"urgency_signal"`
}

type marketVelocityTrace struct {
	Inputs struct {
		DomZipDays        float64  `json:"dom_zip_days"`
		MoiZipMonths      float64  `json:"moi_zip_months"`
		AbsorptionRate    *float64 `json:"absorption_rate"`
		SaleToListPct     *float64 `json:"sale_to_list_pct"`
		CashBuyerSharePct *float64 `json:"cash_buyer_share_pct"`
	} `json:"inputs"`
	VelocityEvaluation struct {
		DomBand             VelocityBand `json:"dom_band"`
		MoiBand             VelocityBand `json:"moi_band"`
		CombinedBand        VelocityBand `json:"combined_band"`
		BandSelectionReason string       `json:"band_selection_reason"`
	} `json:"velocity_evaluation"`
	LiquidityCalculation struct {
		DomScoreComponent       float64 `json:"dom_score_component"`
		MoiScoreComponent       float64 `json:"moi_score_component"`
		CashBuyerScoreComponent float64 `json:"cash_buyer_score_component"`
		RawScore                float64 `json:"raw_score"`
		FinalScore              float64 `json:"final_score"`
	} `json:"liquidity_calculation"`
	MarketCondition struct {
		Condition            MarketCondition `json:"condition"`
		SaleToListAssessment string          `json:"sale_to_list_assessment"`
	} `json:"market_condition"`
	Result struct {
		VelocityBand       VelocityBand  `json:"velocity_band"`
		LiquidityScore     float64       `json:"liquidity_score"`
		HoldTimeMultiplier float64       `json:"hold_time_multiplier"`
		UrgencySignal      UrgencySignal `json:"urgency_signal"`
	} `json:"result"`
	Policy MarketVelocityPolicy `json:"policy"`
}

// ComputeMarketVelocity classifies market speed and scores liquidity. DOM
// and MOI are banded independently and the slower of the two wins; the
// liquidity score blends DOM, MOI, and cash buyer share with an unknown
// cash share contributing a neutral 50.
func ComputeMarketVelocity(in MarketVelocityInput, pol MarketVelocityPolicy) (MarketVelocity, TraceEntry) {
	domBand := bandForDom(in.DomZipDays, pol)
	moiBand := bandForMoi(in.MoiZipMonths, pol)
	combined, reason := combineVelocityBands(domBand, moiBand, in.DomZipDays, in.MoiZipMonths)

	domComponent := domLiquidityComponent(in.DomZipDays, pol)
	moiComponent := moiLiquidityComponent(in.MoiZipMonths, pol)
	cashComponent := cashBuyerLiquidityComponent(in.CashBuyerSharePct, pol)

	rawScore := domComponent*pol.LiquidityDomWeight +
		moiComponent*pol.LiquidityMoiWeight +
		cashComponent*pol.LiquidityCashBuyerWeight
	liquidityScore := math.Round(clamp(rawScore, 0, 100))

	condition, assessment := classifyMarketCondition(in.SaleToListPct, pol)
	multiplier := HoldTimeMultiplier(combined)
	urgency := urgencyFor(combined, liquidityScore)

	result := MarketVelocity{
		DomZipDays:         in.DomZipDays,
		MoiZipMonths:       in.MoiZipMonths,
		AbsorptionRate:     in.AbsorptionRate,
		SaleToListPct:      in.SaleToListPct,
		CashBuyerSharePct:  in.CashBuyerSharePct,
		VelocityBand:       combined,
		LiquidityScore:     liquidityScore,
		MarketCondition:    condition,
		HoldTimeMultiplier: multiplier,
		UrgencySignal:      urgency,
	}

	var td marketVelocityTrace
	td.Inputs.DomZipDays = in.DomZipDays
	td.Inputs.MoiZipMonths = in.MoiZipMonths
	td.Inputs.AbsorptionRate = in.AbsorptionRate
	td.Inputs.SaleToListPct = in.SaleToListPct
	td.Inputs.CashBuyerSharePct = in.CashBuyerSharePct
	td.VelocityEvaluation.DomBand = domBand
	td.VelocityEvaluation.MoiBand = moiBand
	td.VelocityEvaluation.CombinedBand = combined
	td.VelocityEvaluation.BandSelectionReason = reason
	td.LiquidityCalculation.DomScoreComponent = round2(domComponent)
	td.LiquidityCalculation.MoiScoreComponent = round2(moiComponent)
	td.LiquidityCalculation.CashBuyerScoreComponent = round2(cashComponent)
	td.LiquidityCalculation.RawScore = round2(rawScore)
	td.LiquidityCalculation.FinalScore = liquidityScore
	td.MarketCondition.Condition = condition
	td.MarketCondition.SaleToListAssessment = assessment
	td.Result.VelocityBand = combined
	td.Result.LiquidityScore = liquidityScore
	td.Result.HoldTimeMultiplier = multiplier
	td.Result.UrgencySignal = urgency
	td.Policy = pol

	trace := TraceEntry{
		Rule: RuleMarketVelocity,
		Used: []string{
			"inputs.dom_zip_days",
			"inputs.moi_zip_months",
			"inputs.absorption_rate",
			"inputs.sale_to_list_pct",
			"inputs.cash_buyer_share_pct",
			"policy.velocity_thresholds",
			"policy.liquidity_weights",
		},
		Details: td,
	}
	return result, trace
}

func bandForDom(dom float64, pol MarketVelocityPolicy) VelocityBand {
	switch {
	case dom <= pol.HotMaxDom:
		return VelocityHot
	case dom <= pol.WarmMaxDom:
		return VelocityWarm
	case dom <= pol.BalancedMaxDom:
		return VelocityBalanced
	case dom <= pol.CoolMaxDom:
		return VelocityCool
	default:
		return VelocityCold
	}
}

func bandForMoi(moi float64, pol MarketVelocityPolicy) VelocityBand {
	switch {
	case moi <= pol.HotMaxMoi:
		return VelocityHot
	case moi <= pol.WarmMaxMoi:
		return VelocityWarm
	case moi <= pol.BalancedMaxMoi:
		return VelocityBalanced
	case moi <= pol.CoolMaxMoi:
		return VelocityCool
	default:
		return VelocityCold
	}
}

// combineVelocityBands takes the slower of the DOM and MOI assessments.
func combineVelocityBands(domBand, moiBand VelocityBand, dom, moi float64) (VelocityBand, string) {
	switch {
	case domBand == moiBand:
		return domBand, fmt.Sprintf("Both DOM (%vd) and MOI (%vmo) indicate %s market", dom, moi, domBand)
	case velocityRank(domBand) > velocityRank(moiBand):
		return domBand, fmt.Sprintf("DOM (%vd -> %s) is slower than MOI (%vmo -> %s)", dom, domBand, moi, moiBand)
	default:
		return moiBand, fmt.Sprintf("MOI (%vmo -> %s) is slower than DOM (%vd -> %s)", moi, moiBand, dom, domBand)
	}
}

// domLiquidityComponent scores 100 at or under the ideal DOM and loses one
// point per day over.
func domLiquidityComponent(dom float64, pol MarketVelocityPolicy) float64 {
	if dom <= pol.LiquidityIdealDom {
		return 100
	}
	return math.Max(0, 100-(dom-pol.LiquidityIdealDom))
}

// moiLiquidityComponent scores 100 at or under the ideal MOI and loses ten
// points per month over.
func moiLiquidityComponent(moi float64, pol MarketVelocityPolicy) float64 {
	if moi <= pol.LiquidityIdealMoi {
		return 100
	}
	return math.Max(0, 100-(moi-pol.LiquidityIdealMoi)*10)
}

// cashBuyerLiquidityComponent scales linearly from 0 up to 100 at the ideal
// share. An unknown share contributes a neutral 50.
func cashBuyerLiquidityComponent(pct *float64, pol MarketVelocityPolicy) float64 {
	if pct == nil {
		return 50
	}
	if *pct >= pol.LiquidityIdealCashBuyerPct {
		return 100
	}
	return *pct / pol.LiquidityIdealCashBuyerPct * 100
}

func classifyMarketCondition(saleToListPct *float64, pol MarketVelocityPolicy) (MarketCondition, string) {
	if saleToListPct == nil {
		return UnknownMarketCondition, "Sale-to-list ratio unavailable"
	}
	switch {
	case *saleToListPct >= pol.SellerMarketSaleToListPct:
		return SellersMarket, fmt.Sprintf("%v%% indicates seller's market (>=%v%%)", *saleToListPct, pol.SellerMarketSaleToListPct)
	case *saleToListPct < pol.BuyerMarketSaleToListPct:
		return BuyersMarket, fmt.Sprintf("%v%% indicates buyer's market (<%v%%)", *saleToListPct, pol.BuyerMarketSaleToListPct)
	default:
		return BalancedMarket, fmt.Sprintf("%v%% indicates balanced market", *saleToListPct)
	}
}

// HoldTimeMultiplier scales carry assumptions by market speed, from 0.75 in
// a hot market to 2.0 in a cold one.
func HoldTimeMultiplier(band VelocityBand) float64 {
	switch band {
	case VelocityHot:
		return 0.75
	case VelocityWarm:
		return 1.0
	case VelocityBalanced:
		return 1.25
	case VelocityCool:
		return 1.5
	default:
		return 2.0
	}
}

func urgencyFor(band VelocityBand, liquidityScore float64) UrgencySignal {
	if band == VelocityHot || liquidityScore >= 80 {
		return UrgencyHigh
	}
	if (band == VelocityCold || band == VelocityCool) && liquidityScore < 50 {
		return UrgencyLow
	}
	return UrgencyMedium
}

// ValidateMarketVelocityInput reports input problems as warnings.
func ValidateMarketVelocityInput(in MarketVelocityInput) []string {
	var warns []string
	if in.DomZipDays < 0 {
		warns = append(warns, "dom_zip_days cannot be negative")
	}
	if in.MoiZipMonths < 0 {
		warns = append(warns, "moi_zip_months cannot be negative")
	}
	if in.AbsorptionRate != nil && *in.AbsorptionRate < 0 {
		warns = append(warns, "absorption_rate cannot be negative")
	}
	if in.SaleToListPct != nil && *in.SaleToListPct < 0 {
		warns = append(warns, "sale_to_list_pct cannot be negative")
	}
	if in.CashBuyerSharePct != nil && (*in.CashBuyerSharePct < 0 || *in.CashBuyerSharePct > 100) {
		warns = append(warns, "cash_buyer_share_pct must be between 0 and 100")
	}
	return warns
}

// ValidateMarketVelocityPolicy reports policy misconfigurations.
func ValidateMarketVelocityPolicy(pol MarketVelocityPolicy) []string {
	var warns []string
	weightSum := pol.LiquidityDomWeight + pol.LiquidityMoiWeight + pol.LiquidityCashBuyerWeight
	if math.Abs(weightSum-1.0) > 0.001 {
		warns = append(warns, fmt.Sprintf("liquidity weights sum to %.3f, expected 1.0", weightSum))
	}
	if !(pol.HotMaxDom < pol.WarmMaxDom && pol.WarmMaxDom < pol.BalancedMaxDom && pol.BalancedMaxDom < pol.CoolMaxDom) {
		warns = append(warns, "dom band cutoffs must be ordered hot < warm < balanced < cool")
	}
	if !(pol.HotMaxMoi < pol.WarmMaxMoi && pol.WarmMaxMoi < pol.BalancedMaxMoi && pol.BalancedMaxMoi < pol.CoolMaxMoi) {
		warns = append(warns, "moi band cutoffs must be ordered hot < warm < balanced < cool")
	}
	if pol.BuyerMarketSaleToListPct >= pol.SellerMarketSaleToListPct {
		warns = append(warns, "buyer_market_sale_to_list_pct must be below seller_market_sale_to_list_pct")
	}
	return warns
}

// EstimateDaysToSell projects days to sell from a baseline scaled by market
// speed.
func EstimateDaysToSell(band VelocityBand, baselineDays float64) float64 {
	return math.Round(baselineDays * HoldTimeMultiplier(band))
}

// SuggestCarryMonths scales baseline carry months by market speed, rounded
// up to whole months.
func SuggestCarryMonths(band VelocityBand, baselineMonths float64) float64 {
	return math.Ceil(baselineMonths * HoldTimeMultiplier(band))
}

// FavorsQuickExit reports whether conditions reward a fast wholesale exit.
func FavorsQuickExit(v MarketVelocity) bool {
	return (v.VelocityBand == VelocityHot || v.VelocityBand == VelocityWarm) && v.LiquidityScore >= 60
}

// SuggestDisposition picks an exit strategy from market speed and liquidity.
func SuggestDisposition(v MarketVelocity) DispositionStrategy {
	if v.VelocityBand == VelocityHot && v.LiquidityScore >= 70 {
		return StrategyAssignment
	}
	if v.VelocityBand == VelocityWarm || v.VelocityBand == VelocityBalanced || v.LiquidityScore >= 50 {
		return StrategyDoubleClose
	}
	return StrategyHoldForAppreciation
}
