package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crisisobs/shockwatch/internal/detector"
)

var detectorsCmd = &cobra.Command{
	Use:   "detectors",
	Short: "Inspect the configured detectors",
}

var detectorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detectors loaded from the config directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("detectors"); err != nil {
			return err
		}
		detectors, err := detector.LoadDir(cfg.Detectors.Dir, detectorDeps(cfg.Classifier))
		if err != nil {
			return err
		}
		for _, d := range detectors {
			scope := d.VariableCode()
			if scope == "" {
				scope = "(all records)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d.Name(), scope)
		}
		return nil
	},
}

var detectorsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate every detector config document",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("detectors"); err != nil {
			return err
		}
		detectors, err := detector.LoadDir(cfg.Detectors.Dir, detectorDeps(cfg.Classifier))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d detector config(s) OK\n", len(detectors))
		return nil
	},
}

func init() {
	detectorsCmd.AddCommand(detectorsListCmd)
	detectorsCmd.AddCommand(detectorsValidateCmd)
	rootCmd.AddCommand(detectorsCmd)
}
