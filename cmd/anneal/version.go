package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/anneal"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of anneal",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("anneal version %s\n", strings.TrimSpace(anneal.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
