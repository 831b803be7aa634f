package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/inpaint/internal/config"
	"github.com/MeKo-Tech/inpaint/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the inpainting API",
	Long: `Start an HTTP server that provides REST and WebSocket endpoints for inpainting.

The server provides the following endpoints:
  POST /inpaint           - Inpaint an uploaded image (multipart: image, polygons)
  POST /inpaint/debug     - Return every intermediate image as JSON
  POST /inpaint/visualize - Draw polygons and planned boxes
  GET  /ws/inpaint        - WebSocket endpoint with progress messages
  GET  /health            - Health check endpoint
  GET  /models            - List available models
  GET  /metrics           - Prometheus metrics

Examples:
  inpaint serve
  inpaint serve --port 8080
  inpaint serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		serverConfig, err := configToServerConfig(cfg, cmd)
		if err != nil {
			return err
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		inpaintServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		timeout := time.Duration(serverConfig.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port),
			Handler:           inpaintServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			// Leave room for encoding after the pipeline timeout fires.
			WriteTimeout: timeout + 5*time.Second,
		}

		go func() {
			slog.Info("Starting inpainting server", "host", serverConfig.Host, "port", serverConfig.Port,
				"engine", serverConfig.PipelineConfig.Engine)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}
		if err := inpaintServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// configToServerConfig maps centralized configuration to server.Config,
// applying the flags set on the command line.
func configToServerConfig(cfg *config.Config, cmd *cobra.Command) (server.Config, error) {
	if err := applyPipelineFlags(cmd, cfg); err != nil {
		return server.Config{}, err
	}
	flags := cmd.Flags()
	s := cfg.Server

	if flags.Changed("host") {
		s.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		s.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		s.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		s.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("timeout") {
		s.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("rate-limit-enabled") {
		s.RateLimit.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		s.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		s.RateLimit.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		s.RateLimit.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day") {
		s.RateLimit.MaxDataPerDayMB, _ = flags.GetInt("max-data-per-day")
	}

	if s.Port < 1 || s.Port > 65535 {
		return server.Config{}, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", s.Port)
	}
	maxData, err := config.ParseMemorySize(fmt.Sprintf("%dMB", s.RateLimit.MaxDataPerDayMB))
	if err != nil {
		return server.Config{}, fmt.Errorf("invalid data quota: %w", err)
	}

	return server.Config{
		Host:           s.Host,
		Port:           s.Port,
		CORSOrigin:     s.CORSOrigin,
		MaxUploadMB:    int64(s.MaxUploadMB),
		TimeoutSec:     s.TimeoutSec,
		PipelineConfig: cfg.ToPipelineConfig(),
		RateLimit: server.RateLimitConfig{
			Enabled:           s.RateLimit.Enabled,
			RequestsPerMinute: s.RateLimit.RequestsPerMinute,
			RequestsPerHour:   s.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: s.RateLimit.MaxRequestsPerDay,
			MaxDataPerDay:     int64(maxData), //nolint:gosec // bounded by an int of megabytes
		},
	}, nil
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("host", "H", "localhost", "server host")
	cmd.Flags().IntP("port", "p", 8080, "server port")
	cmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	cmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	cmd.Flags().Int("timeout", 60, "request timeout in seconds")
	cmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	addPipelineFlags(cmd)
	// Rate limiting flags
	cmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	cmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	cmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	cmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	cmd.Flags().Int("max-data-per-day", 1024, "maximum upload volume per day per client in MB")
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}
