package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version can be overridden at build time with -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the scripthost version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("scripthost", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
