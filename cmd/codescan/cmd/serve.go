package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MeKo-Tech/codescan/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WebSocket scanning server",
	Long: `Start an HTTP server that runs one scanner session per WebSocket connection.

The server provides the following endpoints:
  GET /ws/scan   - WebSocket scanning session
  GET /sessions  - Active sessions
  GET /health    - Health check endpoint
  GET /metrics   - Prometheus metrics

Examples:
  codescan serve
  codescan serve --port 8080 --scan-mode once
  codescan serve --host 0.0.0.0 --sessions-per-minute 30`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindScannerFlags(cmd, args); err != nil {
			return err
		}
		return bindFlags(cmd.Flags(), serveBindings)
	},
	RunE: runServe,
}

var serveBindings = []flagBinding{
	{"server.host", "host"},
	{"server.port", "port"},
	{"server.cors_origin", "cors-origin"},
	{"server.read_timeout_sec", "read-timeout"},
	{"server.max_message_kb", "max-message-kb"},
	{"server.shutdown_timeout", "shutdown-timeout"},
	{"server.sessions_per_minute", "sessions-per-minute"},
	{"server.sessions_per_hour", "sessions-per-hour"},
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := scannerConfig(cmd)
	if err != nil {
		return err
	}
	sc := cfg.Server

	scanServer, err := server.NewServer(server.Config{
		Host:              sc.Host,
		Port:              sc.Port,
		CORSOrigin:        sc.CORSOrigin,
		ReadTimeout:       time.Duration(sc.ReadTimeoutSec) * time.Second,
		MaxMessageKB:      sc.MaxMessageKB,
		SessionsPerMinute: sc.SessionsPerMinute,
		SessionsPerHour:   sc.SessionsPerHour,
		Scanner:           cfg.Scanner,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() { _ = scanServer.Close() }()

	mux := http.NewServeMux()
	scanServer.SetupRoutes(mux)

	// WebSocket connections are long-lived: no read or write timeout on the
	// listener; the scan handler enforces its own read deadline.
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting scanning server", "host", sc.Host, "port", sc.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", sc.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
	defer cancel()

	// Sessions first, so that open WebSocket handlers return.
	if err := scanServer.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addScannerFlags(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("read-timeout", 60, "seconds without client traffic before a session is closed")
	serveCmd.Flags().Int("max-message-kb", 512, "maximum WebSocket message size in KB")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("sessions-per-minute", 0, "new sessions per client per minute (0 = unlimited)")
	serveCmd.Flags().Int("sessions-per-hour", 0, "new sessions per client per hour (0 = unlimited)")
}
