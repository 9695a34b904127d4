package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hubstore/config"
	hubhttp "github.com/sagarc03/hubstore/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP hub server",
	Long: `Start the hub HTTP server.

Routes:
  POST /store/{address}/{path}   write an object (Authorization: bearer <token>)
  POST /list-files/{address}     list a namespace page by page
  GET  /hub_info                 challenge text and read URL prefix
  GET  /read/{address}/{path}    read back objects for drivers that support it`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default: 3000, env: HUBSTORE_SERVER_PORT)")
	serveCmd.Flags().String("server-name", "", "hub name used in the challenge text (env: HUBSTORE_SERVER_NAME)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logger := slog.Default()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("start hub: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("release resources", "err", err)
		}
	}()

	handler := hubhttp.NewHandler(&hubhttp.HandlerConfig{
		MaxUploadSize: cfg.Server.MaxUploadSize,
		CORS:          cfg.CORS,
		Logger:        logger,
	}, a.hub)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := hubhttp.NewServer(addr, handler.Router(), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr, "name", cfg.Server.Name, "driver", cfg.Driver.Type, "proofs", cfg.Proofs.Enabled)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
