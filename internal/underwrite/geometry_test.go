package underwrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePriceGeometry_BasicZopa(t *testing.T) {
	result, trace := ComputePriceGeometry(PriceGeometryInput{
		RespectFloor:  150000,
		DominantFloor: DominantFloorInvestor,
		FloorInvestor: f64ptr(150000),
		BuyerCeiling:  200000,
		ARV:           250000,
		Posture:       PostureBase,
	}, DefaultPriceGeometryPolicy())

	require.NotNil(t, result.Zopa)
	assert.Equal(t, 50000.0, *result.Zopa)
	assert.True(t, result.ZopaExists)
	assert.Equal(t, 175000.0, result.EntryPoint, "base posture splits the range")
	assert.Equal(t, 50.0, result.EntryPointPctOfZopa)
	assert.Equal(t, "balanced", result.EntryPosture)
	assert.Equal(t, ZopaBandWide, result.ZopaBand, "20% of ARV is wide")
	require.NotNil(t, result.ZopaPctOfARV)
	assert.Equal(t, 20.0, *result.ZopaPctOfARV)
	assert.Equal(t, RulePriceGeometry, trace.Rule)
}

func TestComputePriceGeometry_NoZopa(t *testing.T) {
	result, _ := ComputePriceGeometry(PriceGeometryInput{
		RespectFloor:  200000,
		DominantFloor: DominantFloorPayoff,
		FloorPayoff:   f64ptr(200000),
		BuyerCeiling:  180000,
		ARV:           250000,
		Posture:       PostureBase,
	}, DefaultPriceGeometryPolicy())

	assert.Nil(t, result.Zopa)
	assert.Nil(t, result.ZopaPctOfARV)
	assert.False(t, result.ZopaExists)
	assert.Equal(t, ZopaBandNone, result.ZopaBand)
	assert.Equal(t, 200000.0, result.EntryPoint, "entry falls back to the respect floor")
}

func TestComputePriceGeometry_ZopaBelowDollarThreshold(t *testing.T) {
	// 3,000 range is positive but under the 5,000 minimum.
	result, _ := ComputePriceGeometry(PriceGeometryInput{
		RespectFloor:  197000,
		DominantFloor: DominantFloorInvestor,
		FloorInvestor: f64ptr(197000),
		BuyerCeiling:  200000,
		ARV:           250000,
		Posture:       PostureBase,
	}, DefaultPriceGeometryPolicy())

	require.NotNil(t, result.Zopa)
	assert.Equal(t, 3000.0, *result.Zopa)
	assert.False(t, result.ZopaExists)
	assert.Equal(t, ZopaBandNarrow, result.ZopaBand)
	assert.Equal(t, 197000.0, result.EntryPoint)
}

func TestComputePriceGeometry_NarrowZopaStillExists(t *testing.T) {
	// 6,000 is only 0.6% of a 1M ARV, but the dollar threshold alone
	// decides existence; the percentage gate belongs to the verdict.
	result, _ := ComputePriceGeometry(PriceGeometryInput{
		RespectFloor:  494000,
		DominantFloor: DominantFloorInvestor,
		FloorInvestor: f64ptr(494000),
		BuyerCeiling:  500000,
		ARV:           1000000,
		Posture:       PostureBase,
	}, DefaultPriceGeometryPolicy())

	require.NotNil(t, result.Zopa)
	assert.True(t, result.ZopaExists)
	assert.Equal(t, ZopaBandNarrow, result.ZopaBand)
	assert.Equal(t, 497000.0, result.EntryPoint, "entry splits the range instead of sitting on the floor")
}

func TestComputePriceGeometry_SellerStrikeTightensFloor(t *testing.T) {
	result, _ := ComputePriceGeometry(PriceGeometryInput{
		RespectFloor:  150000,
		DominantFloor: DominantFloorInvestor,
		FloorInvestor: f64ptr(150000),
		BuyerCeiling:  200000,
		SellerStrike:  f64ptr(170000),
		ARV:           250000,
		Posture:       PostureBase,
	}, DefaultPriceGeometryPolicy())

	require.NotNil(t, result.Zopa)
	assert.Equal(t, 30000.0, *result.Zopa, "range is measured from the strike")
	assert.Equal(t, 165000.0, result.EntryPoint, "entry stays anchored at the respect floor")
}

func TestComputePriceGeometry_Postures(t *testing.T) {
	pol := DefaultPriceGeometryPolicy()
	tests := []struct {
		name      string
		posture   Posture
		wantEntry float64
		wantLabel string
	}{
		{"conservative", PostureConservative, 162500, "conservative"},
		{"base", PostureBase, 175000, "balanced"},
		{"aggressive", PostureAggressive, 187500, "aggressive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _ := ComputePriceGeometry(PriceGeometryInput{
				RespectFloor:  150000,
				DominantFloor: DominantFloorInvestor,
				FloorInvestor: f64ptr(150000),
				BuyerCeiling:  200000,
				ARV:           250000,
				Posture:       tt.posture,
			}, pol)
			assert.Equal(t, tt.wantEntry, result.EntryPoint)
			assert.Equal(t, tt.wantLabel, result.EntryPosture)
		})
	}
}

func TestComputePriceGeometry_BandModerate(t *testing.T) {
	// 15,000 on a 250,000 ARV is 6%.
	result, _ := ComputePriceGeometry(PriceGeometryInput{
		RespectFloor:  185000,
		DominantFloor: DominantFloorInvestor,
		FloorInvestor: f64ptr(185000),
		BuyerCeiling:  200000,
		ARV:           250000,
		Posture:       PostureBase,
	}, DefaultPriceGeometryPolicy())

	assert.Equal(t, ZopaBandModerate, result.ZopaBand)
	assert.True(t, result.ZopaExists)
}

func TestComputePriceGeometry_ZeroARV(t *testing.T) {
	result, _ := ComputePriceGeometry(PriceGeometryInput{
		RespectFloor:  150000,
		DominantFloor: DominantFloorInvestor,
		FloorInvestor: f64ptr(150000),
		BuyerCeiling:  200000,
		ARV:           0,
		Posture:       PostureBase,
	}, DefaultPriceGeometryPolicy())

	assert.Nil(t, result.ZopaPctOfARV)
	assert.True(t, result.ZopaExists, "dollar threshold alone decides without an ARV")
	assert.Equal(t, ZopaBandNone, result.ZopaBand, "width cannot be assessed without an ARV")
}

func TestValidatePriceGeometryInput(t *testing.T) {
	warns := ValidatePriceGeometryInput(PriceGeometryInput{
		RespectFloor:  -1,
		DominantFloor: DominantFloorInvestor,
		BuyerCeiling:  0,
		ARV:           -5,
		Posture:       Posture("yolo"),
	})
	assert.Len(t, warns, 5)

	warns = ValidatePriceGeometryInput(PriceGeometryInput{
		RespectFloor:  150000,
		DominantFloor: DominantFloorPayoff,
		FloorPayoff:   f64ptr(150000),
		BuyerCeiling:  200000,
		ARV:           250000,
		Posture:       PostureBase,
	})
	assert.Empty(t, warns)
}

func TestValidatePriceGeometryPolicy(t *testing.T) {
	assert.Empty(t, ValidatePriceGeometryPolicy(DefaultPriceGeometryPolicy()))

	bad := DefaultPriceGeometryPolicy()
	bad.EntryPointPctConservative = 0.9
	bad.MinZopaThreshold = -1
	warns := ValidatePriceGeometryPolicy(bad)
	assert.Len(t, warns, 2)
}
