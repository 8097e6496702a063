package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dfisim",
	Short: "dfisim simulates a DDR memory controller driving a DFI interface.",
	Long: `dfisim runs a cycle-accurate behavioral model of a DDR memory ` +
		`controller. It trains the PHY, issues write and read transactions, ` +
		`and records the DFI signal trace for inspection.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
