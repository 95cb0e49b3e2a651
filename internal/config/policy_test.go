package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hps-internal/dealdesk/internal/underwrite"
)

func TestLoadPoliciesEmptyPathReturnsDefaults(t *testing.T) {
	pol, err := LoadPolicies("")
	require.NoError(t, err)
	assert.Equal(t, underwrite.DefaultPolicySet(), pol)
}

func TestLoadPoliciesReplacesSectionWholesale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	yaml := `
price_geometry:
  min_zopa_threshold: 10000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	pol, err := LoadPolicies(path)
	require.NoError(t, err)

	// The whole section is replaced: unspecified fields go to zero, not to
	// their defaults.
	assert.Equal(t, 10000.0, pol.PriceGeometry.MinZopaThreshold)
	assert.Zero(t, pol.PriceGeometry.EntryPointPctBase)
	assert.Zero(t, pol.PriceGeometry.MinZopaPctOfARV)

	// Untouched sections keep their defaults.
	assert.Equal(t, underwrite.DefaultCompQualityPolicy(), pol.CompQuality)
	assert.Equal(t, underwrite.DefaultDealVerdictPolicy(), pol.DealVerdict)
}

func TestLoadPoliciesMultipleSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	yaml := `
net_clearance:
  assignment_fee_flat: 1000
  dc_preference_margin_threshold: 2500
deal_verdict:
  min_spread_for_pursue: 20000
  min_spread_for_evidence: 8000
  min_zopa_pct_for_pursue: 4.0
  low_confidence_grade: C
  block_on_any_risk_stop: true
  deal_killer_gates: [title]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	pol, err := LoadPolicies(path)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, pol.NetClearance.AssignmentFeeFlat)
	assert.Equal(t, 2500.0, pol.NetClearance.DcPreferenceMarginThreshold)
	assert.Equal(t, 20000.0, pol.DealVerdict.MinSpreadForPursue)
	assert.Equal(t, []string{"title"}, pol.DealVerdict.DealKillerGates)
	assert.Equal(t, underwrite.DefaultPriceGeometryPolicy(), pol.PriceGeometry)
}

func TestLoadPoliciesMissingFile(t *testing.T) {
	_, err := LoadPolicies(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read policy file")
}

func TestLoadPoliciesInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("price_geometry: [not a map"), 0o644))

	_, err := LoadPolicies(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse policy file")
}
