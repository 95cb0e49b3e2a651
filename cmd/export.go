package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hps-internal/dealdesk/internal/report"
	"github.com/hps-internal/dealdesk/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored evaluations to an xlsx deal sheet",
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
		limit, _ := cmd.Flags().GetInt("limit")

		evals, err := st.ListEvaluations(ctx, store.EvaluationFilter{
			Recommendation: recommendation,
			Limit:          limit,
		})
		if err != nil {
			return eris.Wrap(err, "export: list evaluations")
		}

		output, _ := cmd.Flags().GetString("output")
		if err := report.WriteWorkbook(output, evals); err != nil {
			return err
		}

		zap.L().Info("deal sheet written",
			zap.String("path", output),
			zap.Int("evaluations", len(evals)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "deals.xlsx", "destination xlsx file")
	exportCmd.Flags().String("recommendation", "", "export only one verdict (pursue, needs_evidence, pass)")
	exportCmd.Flags().Int("limit", 1000, "max evaluations to export")
	rootCmd.AddCommand(exportCmd)
}
