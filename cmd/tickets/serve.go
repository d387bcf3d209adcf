package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tickets/internal/app"
	"github.com/JonMunkholm/tickets/internal/reader"
	"github.com/JonMunkholm/tickets/internal/web"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server that runs the pipeline on uploaded files and serves the run history.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"run_max_concurrent", cfg.Run.MaxConcurrent,
		"output_dir", cfg.Run.OutputDir,
	)

	ctx := cmd.Context()

	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer st.Close()

	a := app.New(app.Deps{
		Reader: reader.NewCSVReader(cfg.Run.MaxFileSize, app.IDColumns...),
		Store:  st,
	})
	server := web.NewServer(a, st, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}
	<-done
	slog.Info("server stopped")
	return nil
}
