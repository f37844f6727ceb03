package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crisisobs/shockwatch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "shockwatch",
	Short: "Configurable shock detection over humanitarian event data",
	Long:  "Scores raw event records against configurable field, keyword and location rules, classifies shock types, clusters related alerts, and persists the resulting detections.",
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
