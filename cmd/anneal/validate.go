package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/anneal/internal/config"
	"github.com/aretw0/anneal/pkg/domain"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a run configuration without executing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		if path == "" {
			return fmt.Errorf("no configuration file given, use --config")
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if _, err := domain.NewSchedule(domain.ScheduleKind(cfg.Schedule)); err != nil {
			return fmt.Errorf("building schedule: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
