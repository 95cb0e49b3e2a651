package underwrite

import "fmt"

// DominantFloor names which seller-side constraint produced the respect
// floor.
type DominantFloor string

const (
	DominantFloorInvestor DominantFloor = "investor"
	DominantFloorPayoff   DominantFloor = "payoff"
)

// ZopaBand classifies the width of the negotiation range relative to ARV.
type ZopaBand string

const (
	ZopaBandWide     ZopaBand = "wide"
	ZopaBandModerate ZopaBand = "moderate"
	ZopaBandNarrow   ZopaBand = "narrow"
	ZopaBandNone     ZopaBand = "none"
)

// PriceGeometryPolicy tunes where the entry point sits inside the ZOPA and
// what minimum range counts as workable.
type PriceGeometryPolicy struct {
	EntryPointPctConservative float64 `json:"entry_point_pct_conservative" yaml:"entry_point_pct_conservative"`
	EntryPointPctBase         float64 `json:"entry_point_pct_base" yaml:"entry_point_pct_base"`
	EntryPointPctAggressive   float64 `json:"entry_point_pct_aggressive" yaml:"entry_point_pct_aggressive"`
	MinZopaThreshold          float64 `json:"min_zopa_threshold" yaml:"min_zopa_threshold"`
	MinZopaPctOfARV           float64 `json:"min_zopa_pct_of_arv" yaml:"min_zopa_pct_of_arv"`
}

// DefaultPriceGeometryPolicy returns the stock entry positioning policy.
func DefaultPriceGeometryPolicy() PriceGeometryPolicy {
	return PriceGeometryPolicy{
		EntryPointPctConservative: 0.25,
		EntryPointPctBase:         0.50,
		EntryPointPctAggressive:   0.75,
		MinZopaThreshold:          5000,
		MinZopaPctOfARV:           2.0,
	}
}

// PriceGeometryInput carries the price points that bound the negotiation.
// FloorInvestor, FloorPayoff, and SellerStrike are nil when unknown.
type PriceGeometryInput struct {
	RespectFloor  float64       `json:"respect_floor"`
	DominantFloor DominantFloor `json:"dominant_floor"`
	FloorInvestor *float64      `json:"floor_investor"`
	FloorPayoff   *float64      `json:"floor_payoff"`
	BuyerCeiling  float64       `json:"buyer_ceiling"`
	SellerStrike  *float64      `json:"seller_strike"`
	ARV           float64       `json:"arv"`
	Posture       Posture       `json:"posture"`
}

// PriceGeometry is the computed negotiation geometry. Zopa and ZopaPctOfARV
// are nil when the floor meets or exceeds the ceiling.
type PriceGeometry struct {
	RespectFloor        float64       `json:"respect_floor"`
	DominantFloor       DominantFloor `json:"dominant_floor"`
	FloorInvestor       *float64      `json:"floor_investor"`
	FloorPayoff         *float64      `json:"floor_payoff"`
	BuyerCeiling        float64       `json:"buyer_ceiling"`
	SellerStrike        *float64      `json:"seller_strike"`
	Zopa                *float64      `json:"zopa"`
	ZopaPctOfARV        *float64      `json:"zopa_pct_of_arv"`
	ZopaExists          bool          `json:"zopa_exists"`
	ZopaBand            ZopaBand      `json:"zopa_band"`
	EntryPoint          float64       `json:"entry_point"`
	EntryPointPctOfZopa float64       `json:"entry_point_pct_of_zopa"`
	EntryPosture        string        `json:"entry_posture"`
}

// priceGeometryTrace is the Details payload for RulePriceGeometry entries.
type priceGeometryTrace struct {
	Inputs struct {
		RespectFloor float64  `json:"respect_floor"`
		BuyerCeiling float64  `json:"buyer_ceiling"`
		SellerStrike *float64 `json:"seller_strike"`
		ARV          float64  `json:"arv"`
		Posture      Posture  `json:"posture"`
	} `json:"inputs"`
	Computation struct {
		EffectiveFloor float64  `json:"effective_floor"`
		RawZopa        float64  `json:"raw_zopa"`
		Zopa           *float64 `json:"zopa"`
		ZopaPctOfARV   *float64 `json:"zopa_pct_of_arv"`
		ZopaExists     bool     `json:"zopa_exists"`
		ZopaBand       ZopaBand `json:"zopa_band"`
		EntryPoint     float64  `json:"entry_point"`
		EntryPct       float64  `json:"entry_pct"`
	} `json:"computation"`
	Policy PriceGeometryPolicy `json:"policy"`
}

// ComputePriceGeometry derives the ZOPA, its band, and the recommended entry
// point. The seller strike, when known, tightens the effective floor but the
// entry point is always anchored at the respect floor, so an entry below a
// high strike is a legitimate opening position.
func ComputePriceGeometry(in PriceGeometryInput, pol PriceGeometryPolicy) (PriceGeometry, TraceEntry) {
	effectiveFloor := in.RespectFloor
	if in.SellerStrike != nil && *in.SellerStrike > effectiveFloor {
		effectiveFloor = *in.SellerStrike
	}

	rawZopa := in.BuyerCeiling - effectiveFloor

	var zopa, zopaPct *float64
	if rawZopa > 0 {
		zopa = f64ptr(rawZopa)
		if in.ARV > 0 {
			zopaPct = f64ptr(round2(rawZopa / in.ARV * 100))
		}
	}

	zopaExists := zopa != nil && *zopa >= pol.MinZopaThreshold

	// Band needs a positive ARV to relate the range to; no ARV, no band.
	band := ZopaBandNone
	if zopa != nil && zopaPct != nil {
		switch {
		case *zopaPct >= 10:
			band = ZopaBandWide
		case *zopaPct >= 5:
			band = ZopaBandModerate
		default:
			band = ZopaBandNarrow
		}
	}

	entryPct := entryPctForPosture(in.Posture, pol)
	entry := in.RespectFloor
	if zopaExists {
		entry = in.RespectFloor + *zopa*entryPct
	}
	entry = round2(entry)

	result := PriceGeometry{
		RespectFloor:        in.RespectFloor,
		DominantFloor:       in.DominantFloor,
		FloorInvestor:       in.FloorInvestor,
		FloorPayoff:         in.FloorPayoff,
		BuyerCeiling:        in.BuyerCeiling,
		SellerStrike:        in.SellerStrike,
		Zopa:                zopa,
		ZopaPctOfARV:        zopaPct,
		ZopaExists:          zopaExists,
		ZopaBand:            band,
		EntryPoint:          entry,
		EntryPointPctOfZopa: entryPct * 100,
		EntryPosture:        entryPostureLabel(in.Posture),
	}

	var details priceGeometryTrace
	details.Inputs.RespectFloor = in.RespectFloor
	details.Inputs.BuyerCeiling = in.BuyerCeiling
	details.Inputs.SellerStrike = in.SellerStrike
	details.Inputs.ARV = in.ARV
	details.Inputs.Posture = in.Posture
	details.Computation.EffectiveFloor = effectiveFloor
	details.Computation.RawZopa = rawZopa
	details.Computation.Zopa = zopa
	details.Computation.ZopaPctOfARV = zopaPct
	details.Computation.ZopaExists = zopaExists
	details.Computation.ZopaBand = band
	details.Computation.EntryPoint = entry
	details.Computation.EntryPct = entryPct
	details.Policy = pol

	trace := TraceEntry{
		Rule:    RulePriceGeometry,
		Used:    []string{"respect_floor", "buyer_ceiling", "seller_strike", "arv", "posture"},
		Details: details,
	}
	return result, trace
}

func entryPctForPosture(p Posture, pol PriceGeometryPolicy) float64 {
	switch p {
	case PostureConservative:
		return pol.EntryPointPctConservative
	case PostureAggressive:
		return pol.EntryPointPctAggressive
	default:
		return pol.EntryPointPctBase
	}
}

func entryPostureLabel(p Posture) string {
	switch p {
	case PostureConservative:
		return "conservative"
	case PostureAggressive:
		return "aggressive"
	default:
		return "balanced"
	}
}

// ValidatePriceGeometryInput reports input problems as warnings. The
// calculator still produces a result for flawed inputs; these tell the
// caller the result is suspect.
func ValidatePriceGeometryInput(in PriceGeometryInput) []string {
	var warns []string
	if in.RespectFloor < 0 {
		warns = append(warns, "respect_floor is negative")
	}
	if in.BuyerCeiling <= 0 {
		warns = append(warns, "buyer_ceiling must be positive")
	}
	if in.ARV < 0 {
		warns = append(warns, "arv is negative")
	}
	if in.SellerStrike != nil && *in.SellerStrike < 0 {
		warns = append(warns, "seller_strike is negative")
	}
	switch in.DominantFloor {
	case DominantFloorInvestor:
		if in.FloorInvestor == nil {
			warns = append(warns, "dominant_floor is investor but floor_investor is unknown")
		}
	case DominantFloorPayoff:
		if in.FloorPayoff == nil {
			warns = append(warns, "dominant_floor is payoff but floor_payoff is unknown")
		}
	default:
		warns = append(warns, fmt.Sprintf("unknown dominant_floor %q", in.DominantFloor))
	}
	switch in.Posture {
	case PostureConservative, PostureBase, PostureAggressive:
	default:
		warns = append(warns, fmt.Sprintf("unknown posture %q", in.Posture))
	}
	return warns
}

// ValidatePriceGeometryPolicy reports policy misconfigurations.
func ValidatePriceGeometryPolicy(pol PriceGeometryPolicy) []string {
	var warns []string
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"entry_point_pct_conservative", pol.EntryPointPctConservative},
		{"entry_point_pct_base", pol.EntryPointPctBase},
		{"entry_point_pct_aggressive", pol.EntryPointPctAggressive},
	} {
		if p.v < 0 || p.v > 1 {
			warns = append(warns, fmt.Sprintf("%s must be within [0,1]", p.name))
		}
	}
	if pol.EntryPointPctConservative > pol.EntryPointPctBase || pol.EntryPointPctBase > pol.EntryPointPctAggressive {
		warns = append(warns, "entry point percentages must be ordered conservative <= base <= aggressive")
	}
	if pol.MinZopaThreshold < 0 {
		warns = append(warns, "min_zopa_threshold is negative")
	}
	if pol.MinZopaPctOfARV < 0 {
		warns = append(warns, "min_zopa_pct_of_arv is negative")
	}
	return warns
}
