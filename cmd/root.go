package cmd

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "fuelhedge",
	Short: "Fuel-cost hedging and dispatch co-optimization engine",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.AddCommand(runCmd, calibrateCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }
