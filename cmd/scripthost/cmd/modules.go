package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nfrund/scripthost/internal/app"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List registered built-in modules",
	Long: `Builds the engine and lists every capability name registered in the
process-wide module registry, in registration order.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		application, err := app.New(ctx, app.Options{})
		if err != nil {
			log.Fatalf("Failed to build engine: %v", err)
		}
		defer application.Shutdown(ctx)

		names := application.Modules.Names()
		if len(names) == 0 {
			fmt.Println("No modules registered.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODULE")
		for _, name := range names {
			fmt.Fprintln(w, name)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}
