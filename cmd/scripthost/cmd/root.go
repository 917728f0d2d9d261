package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scripthost",
	Short: "Embeddable polyglot script host",
	Long: `scripthost runs guest programs in isolated execution contexts with
plugin-injected capabilities.

Available commands:
  run        Execute a guest script file in a fresh context
  serve      Start the admin HTTP server
  modules    List registered built-in modules
  extract    Write embedded setup scripts to a directory

Use "scripthost [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
