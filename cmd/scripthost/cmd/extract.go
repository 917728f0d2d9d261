package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/nfrund/scripthost/internal/app"
)

var extractCmd = &cobra.Command{
	Use:   "extract [target directory]",
	Short: "Write embedded setup scripts to a directory",
	Long: `Writes the embedded setup scripts for every manifest entry to the target
directory, grouped by language. Point HOST_BUNDLE_OVERRIDE_DIR at the
directory to have edited copies shadow the embedded versions.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		application, err := app.New(ctx, app.Options{})
		if err != nil {
			log.Fatalf("Failed to build engine: %v", err)
		}
		defer application.Shutdown(ctx)

		count, err := application.Manifest.ExtractScripts(args[0])
		if err != nil {
			log.Fatalf("Extraction failed: %v", err)
		}
		fmt.Printf("Extracted %d script(s) to %s\n", count, args[0])
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
