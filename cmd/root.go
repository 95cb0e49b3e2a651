package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hps-internal/dealdesk/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dealdesk",
	Short: "Wholesale deal underwriting calculator",
	Long:  "Scores price geometry, comp quality, evidence freshness, and market velocity for wholesale real-estate deals, compares exit strategies, and derives an auditable pursue/pass verdict.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
