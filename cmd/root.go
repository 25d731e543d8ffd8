package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pe-score/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pe-score",
	Short: "Fuzzy-logic Potential Enrichment scoring",
	Long:  "Scores raster grids for rare-earth and critical-mineral Potential Enrichment with a fuzzy-logic Data Supporting model, and keeps a ledger of runs and failed blocks.",
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
