package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/hps-internal/dealdesk/internal/config"
	"github.com/hps-internal/dealdesk/internal/model"
	"github.com/hps-internal/dealdesk/internal/underwrite"
)

var money = message.NewPrinter(language.English)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <deal-file>",
	Short: "Underwrite a single deal from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		df, err := loadDealFile(args[0])
		if err != nil {
			return err
		}

		policyPath, _ := cmd.Flags().GetString("policy")
		pol, err := config.LoadPolicies(policyPath)
		if err != nil {
			return err
		}

		asOf, _ := cmd.Flags().GetString("as-of")
		if asOf != "" {
			ref, err := time.Parse("2006-01-02", asOf)
			if err != nil {
				return eris.Wrapf(err, "evaluate: parse --as-of %q", asOf)
			}
			df.Deal.EvidenceHealth.ReferenceDate = &ref
		}

		for _, w := range underwrite.ValidatePolicySet(pol) {
			zap.L().Warn("policy warning", zap.String("warning", w))
		}
		for _, w := range underwrite.ValidateDealInput(df.Deal) {
			zap.L().Warn("input warning", zap.String("deal", df.Name), zap.String("warning", w))
		}

		result, err := underwrite.Evaluate(ctx, df.Deal, pol)
		if err != nil {
			return eris.Wrap(err, "evaluate: run")
		}

		if save, _ := cmd.Flags().GetBool("save"); save {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}

			saved, err := st.SaveEvaluation(ctx, model.Evaluation{
				DealName: df.Name,
				Address:  df.Address,
				Input:    df.Deal,
				Result:   &result,
			})
			if err != nil {
				return eris.Wrap(err, "evaluate: save")
			}
			zap.L().Info("evaluation saved",
				zap.String("id", saved.ID),
				zap.String("deal", saved.DealName),
				zap.String("recommendation", string(saved.Recommendation)),
			)
		}

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return eris.Wrapf(err, "evaluate: create %s", path)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		formatEvaluation(out, df.Name, result)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().String("policy", "", "policy override YAML file")
	evaluateCmd.Flags().String("format", "table", "output format (table, json)")
	evaluateCmd.Flags().String("output", "", "write output to file instead of stdout")
	evaluateCmd.Flags().Bool("save", false, "persist the evaluation to the store")
	evaluateCmd.Flags().String("as-of", "", "evidence reference date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(evaluateCmd)
}

// dealFile is one deal dossier on disk: a name, an optional address, and
// the calculator inputs under the deal key.
type dealFile struct {
	Name    string
	Address string
	Deal    underwrite.DealInput
}

// loadDealFile reads a YAML or JSON deal file. The deal section is routed
// through JSON so the engine's json-tagged input structs are the single
// schema for files and for the HTTP API.
func loadDealFile(path string) (*dealFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "evaluate: read %s", path)
	}

	var raw struct {
		Name    string         `yaml:"name"`
		Address string         `yaml:"address"`
		Deal    map[string]any `yaml:"deal"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "evaluate: parse %s", path)
	}
	if raw.Deal == nil {
		return nil, eris.Errorf("evaluate: %s has no deal section", path)
	}

	dealJSON, err := json.Marshal(raw.Deal)
	if err != nil {
		return nil, eris.Wrap(err, "evaluate: encode deal section")
	}

	df := &dealFile{Name: raw.Name, Address: raw.Address}
	if err := json.Unmarshal(dealJSON, &df.Deal); err != nil {
		return nil, eris.Wrapf(err, "evaluate: decode deal section of %s", path)
	}
	if df.Name == "" {
		df.Name = path
	}
	return df, nil
}

// formatEvaluation writes a human-readable summary of one evaluation.
func formatEvaluation(out io.Writer, name string, r underwrite.DealEvaluation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "Deal:\t%s\n", name)
	_, _ = fmt.Fprintf(w, "Recommendation:\t%s (%.0f%% confidence)\n", r.Verdict.Recommendation, r.Verdict.ConfidencePct)
	_, _ = fmt.Fprintf(w, "Rationale:\t%s\n", r.Verdict.Rationale)
	_, _ = fmt.Fprintf(w, "Reason code:\t%s\n", r.Verdict.PrimaryReasonCode)
	for _, bf := range r.Verdict.BlockingFactors {
		_, _ = fmt.Fprintf(w, "Blocking:\t%s\n", bf)
	}
	_, _ = fmt.Fprintln(w)

	g := r.PriceGeometry
	_, _ = fmt.Fprintf(w, "Respect floor:\t%s\n", money.Sprintf("$%.0f", g.RespectFloor))
	_, _ = fmt.Fprintf(w, "Buyer ceiling:\t%s\n", money.Sprintf("$%.0f", g.BuyerCeiling))
	if g.Zopa != nil {
		_, _ = fmt.Fprintf(w, "ZOPA:\t%s (%s)\n", money.Sprintf("$%.0f", *g.Zopa), g.ZopaBand)
	} else {
		_, _ = fmt.Fprintf(w, "ZOPA:\tnone\n")
	}
	_, _ = fmt.Fprintf(w, "Entry point:\t%s (%s)\n", money.Sprintf("$%.0f", g.EntryPoint), g.EntryPosture)
	_, _ = fmt.Fprintln(w)

	c := r.NetClearance
	_, _ = fmt.Fprintf(w, "Assignment net:\t%s\n", money.Sprintf("$%.0f", c.Assignment.Net))
	_, _ = fmt.Fprintf(w, "Double close net:\t%s\n", money.Sprintf("$%.0f", c.DoubleClose.Net))
	if c.Wholetail != nil {
		_, _ = fmt.Fprintf(w, "Wholetail net:\t%s\n", money.Sprintf("$%.0f", c.Wholetail.Net))
	}
	_, _ = fmt.Fprintf(w, "Recommended exit:\t%s\n", c.RecommendedExit)
	_, _ = fmt.Fprintf(w, "Exit reason:\t%s\n", c.RecommendationReason)
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintf(w, "Comp quality:\t%.1f (%s)\n", r.CompQuality.QualityScore, r.CompQuality.QualityBand)
	_, _ = fmt.Fprintf(w, "Evidence health:\t%.1f (%s)\n", r.EvidenceHealth.HealthScore, r.EvidenceHealth.HealthBand)
	_, _ = fmt.Fprintf(w, "Evidence action:\t%s\n", r.EvidenceHealth.RecommendedAction)
	_, _ = fmt.Fprintf(w, "Market:\t%s, liquidity %.0f, urgency %s\n",
		r.MarketVelocity.VelocityBand, r.MarketVelocity.LiquidityScore, r.MarketVelocity.UrgencySignal)

	_ = w.Flush()
}
