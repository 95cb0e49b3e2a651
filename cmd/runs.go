package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hps-internal/dealdesk/internal/model"
	"github.com/hps-internal/dealdesk/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored evaluations",
	Long:  "Commands for listing and viewing past underwriting runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored evaluations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		recommendation, _ := cmd.Flags().GetString("recommendation")
		dealName, _ := cmd.Flags().GetString("deal")
		limit, _ := cmd.Flags().GetInt("limit")

		evals, err := st.ListEvaluations(ctx, store.EvaluationFilter{
			Recommendation: recommendation,
			DealName:       dealName,
			Limit:          limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(evals) == 0 {
			fmt.Fprintln(os.Stderr, "No evaluations found.")
			return nil
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(evals)
		}

		formatEvaluationsList(os.Stdout, evals)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <evaluation-id>",
	Short: "Show full details of a stored evaluation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		ev, err := st.GetEvaluation(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ev)
	},
}

func init() {
	runsListCmd.Flags().String("recommendation", "", "filter by verdict (pursue, needs_evidence, pass)")
	runsListCmd.Flags().String("deal", "", "filter by deal name")
	runsListCmd.Flags().Int("limit", 50, "max number of evaluations to display")
	runsListCmd.Flags().Bool("json", false, "emit the list as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatEvaluationsList writes a tabular list of evaluations to w.
func formatEvaluationsList(out io.Writer, evals []model.Evaluation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDEAL\tRECOMMENDATION\tCONFIDENCE\tSPREAD\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t--------------\t----------\t------\t-------")

	for _, ev := range evals {
		confidence := ""
		spread := ""
		if ev.Result != nil {
			confidence = fmt.Sprintf("%.0f%%", ev.Result.Verdict.ConfidencePct)
			spread = money.Sprintf("$%.0f", ev.Result.NetClearance.RecommendedNet())
		}

		name := ev.DealName
		if len(name) > 30 {
			name = name[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(ev.ID),
			name,
			ev.Recommendation,
			confidence,
			spread,
			ev.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
