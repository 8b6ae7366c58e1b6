package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "zoning-cli",
	Short: "Florida county zoning data acquisition pipeline",
	Long:  "Researches county zoning codes through a three-mode cascade (portal discovery, LLM extraction, browser-automation fallback) and reconciles districts, standards, and permitted uses into the zoning database.",
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
