package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "anneal",
	Short: "Anneal estimates free energy differences by nonequilibrium switching",
	Long: `Anneal equilibrates the two end-states of an alchemical transformation,
drives independent particles along a lambda schedule while accumulating
protocol work, and turns the collected work values into free energy
estimates.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML run configuration")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
}
