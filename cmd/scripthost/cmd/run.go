package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/nfrund/scripthost/internal/app"
	"github.com/nfrund/scripthost/internal/lang"
)

var runLanguage string

var runCmd = &cobra.Command{
	Use:   "run [script file]",
	Short: "Execute a guest script file in a fresh context",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("Failed to read script: %v", err)
		}

		ctx := context.Background()
		application, err := app.New(ctx, app.Options{})
		if err != nil {
			log.Fatalf("Failed to build engine: %v", err)
		}
		defer application.Shutdown(ctx)

		sandbox, err := application.Engine.AcquireContext(ctx)
		if err != nil {
			log.Fatalf("Failed to acquire context: %v", err)
		}
		defer sandbox.Dispose()

		result, err := sandbox.Evaluate(ctx, lang.ID(runLanguage), string(source))
		if err != nil {
			log.Fatalf("Execution failed: %v", err)
		}
		if result != nil {
			fmt.Println(result)
		}
	},
}

func init() {
	runCmd.Flags().StringVarP(&runLanguage, "language", "l", "", "guest language (defaults to the engine default)")
	rootCmd.AddCommand(runCmd)
}
