package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hps-internal/dealdesk/internal/underwrite"
)

const sampleDealYAML = `name: palmetto
address: 114 Palmetto Ave
deal:
  price_geometry:
    respect_floor: 150000
    buyer_ceiling: 200000
    seller_strike: 170000
    arv: 250000
  net_clearance:
    purchase_price: 150000
    mao_wholesale: 175000
    arv: 250000
  evidence_health:
    payoff_letter: 2026-08-20
    reference_date: 2026-08-25
`

func writeDealFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDealFile(t *testing.T) {
	path := writeDealFile(t, sampleDealYAML)

	df, err := loadDealFile(path)
	require.NoError(t, err)

	assert.Equal(t, "palmetto", df.Name)
	assert.Equal(t, "114 Palmetto Ave", df.Address)
	assert.Equal(t, 150000.0, df.Deal.PriceGeometry.RespectFloor)
	require.NotNil(t, df.Deal.PriceGeometry.SellerStrike)
	assert.Equal(t, 170000.0, *df.Deal.PriceGeometry.SellerStrike)
	require.NotNil(t, df.Deal.NetClearance.MaoWholesale)
	assert.Equal(t, 175000.0, *df.Deal.NetClearance.MaoWholesale)

	// Unquoted YAML dates should land in the time-typed evidence fields.
	require.NotNil(t, df.Deal.EvidenceHealth.PayoffLetter)
	assert.Equal(t, 2026, df.Deal.EvidenceHealth.PayoffLetter.Year())
	require.NotNil(t, df.Deal.EvidenceHealth.ReferenceDate)
}

func TestLoadDealFile_NameDefaultsToPath(t *testing.T) {
	path := writeDealFile(t, "deal:\n  price_geometry:\n    respect_floor: 1\n")

	df, err := loadDealFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, df.Name)
}

func TestLoadDealFile_MissingDealSection(t *testing.T) {
	path := writeDealFile(t, "name: palmetto\n")

	_, err := loadDealFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no deal section")
}

func TestLoadDealFile_MissingFile(t *testing.T) {
	_, err := loadDealFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read")
}

func TestLoadDealFile_BadYAML(t *testing.T) {
	path := writeDealFile(t, "deal: [not\n  a: map\n")

	_, err := loadDealFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestFormatEvaluation(t *testing.T) {
	path := writeDealFile(t, sampleDealYAML)
	df, err := loadDealFile(path)
	require.NoError(t, err)

	result, err := underwrite.Evaluate(context.Background(), df.Deal, underwrite.DefaultPolicySet())
	require.NoError(t, err)

	var buf bytes.Buffer
	formatEvaluation(&buf, df.Name, result)
	out := buf.String()

	assert.Contains(t, out, "Deal:")
	assert.Contains(t, out, "palmetto")
	assert.Contains(t, out, "Recommendation:")
	assert.Contains(t, out, "Respect floor:")
	assert.Contains(t, out, "$150,000", "money should be rendered with grouped thousands")
	assert.Contains(t, out, "$24,500", "assignment net of 175k gross minus 150k purchase and flat fee")
	assert.Contains(t, out, "ZOPA:")
	assert.Contains(t, out, "$30,000", "zopa is ceiling minus the seller strike")
	assert.Contains(t, out, "Recommended exit:")
}

func TestFormatEvaluation_NoZopa(t *testing.T) {
	result, err := underwrite.Evaluate(context.Background(), underwrite.DealInput{
		PriceGeometry: underwrite.PriceGeometryInput{
			RespectFloor: 200000,
			BuyerCeiling: 150000,
			ARV:          250000,
		},
		NetClearance: underwrite.NetClearanceInput{
			PurchasePrice: 200000,
			Arv:           250000,
		},
	}, underwrite.DefaultPolicySet())
	require.NoError(t, err)

	var buf bytes.Buffer
	formatEvaluation(&buf, "upside-down", result)

	assert.Regexp(t, `ZOPA:\s+none`, buf.String())
}
