package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfrund/scripthost/internal/app"
	"github.com/nfrund/scripthost/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		application, err := app.New(ctx, app.Options{})
		if err != nil {
			log.Fatalf("Failed to build engine: %v", err)
		}

		s := server.New(application.Engine, application.Config)

		go func() {
			if err := s.Start(); err != nil {
				slog.Info("Admin server stopped", "error", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("Application shutdown failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
