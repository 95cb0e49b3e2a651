package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/hps-internal/dealdesk/internal/underwrite"
)

// policyFile mirrors PolicySet with every section optional. A section that
// appears in the file replaces the corresponding default policy wholesale;
// there is no field-level merging.
type policyFile struct {
	PriceGeometry  *underwrite.PriceGeometryPolicy  `yaml:"price_geometry"`
	CompQuality    *underwrite.CompQualityPolicy    `yaml:"comp_quality"`
	EvidenceHealth *underwrite.EvidenceHealthPolicy `yaml:"evidence_health"`
	MarketVelocity *underwrite.MarketVelocityPolicy `yaml:"market_velocity"`
	NetClearance   *underwrite.NetClearancePolicy   `yaml:"net_clearance"`
	DealVerdict    *underwrite.DealVerdictPolicy    `yaml:"deal_verdict"`
}

// LoadPolicies reads a policy override file and applies it on top of the
// default policy set. An empty path returns the defaults unchanged.
func LoadPolicies(path string) (underwrite.PolicySet, error) {
	pol := underwrite.DefaultPolicySet()
	if path == "" {
		return pol, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return pol, eris.Wrap(err, "config: read policy file")
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return pol, eris.Wrap(err, "config: parse policy file")
	}

	if pf.PriceGeometry != nil {
		pol.PriceGeometry = *pf.PriceGeometry
	}
	if pf.CompQuality != nil {
		pol.CompQuality = *pf.CompQuality
	}
	if pf.EvidenceHealth != nil {
		pol.EvidenceHealth = *pf.EvidenceHealth
	}
	if pf.MarketVelocity != nil {
		pol.MarketVelocity = *pf.MarketVelocity
	}
	if pf.NetClearance != nil {
		pol.NetClearance = *pf.NetClearance
	}
	if pf.DealVerdict != nil {
		pol.DealVerdict = *pf.DealVerdict
	}

	return pol, nil
}
