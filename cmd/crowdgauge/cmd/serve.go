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

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/crowdgauge/internal/config"
	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
	"github.com/MeKo-Tech/crowdgauge/internal/server"
)

// Limiter state for contributors idle this long is dropped.
const (
	janitorInterval = 10 * time.Minute
	limiterIdle     = 24 * time.Hour
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SMS/MMS webhook server",
	Long: `Start an HTTP server that receives Twilio SMS/MMS webhooks.

Photos are queued and read in the background; the contributor gets an SMS
reply once the reading is accepted or rejected. Text readings are parsed and
answered right away.

The server provides the following endpoints:
  POST /sms/incoming                    - Twilio messaging webhook
  GET  /health                          - Health check endpoint
  GET  /metrics                         - Prometheus metrics
  GET  /api/stations                    - Station registry
  GET  /api/stations/{id}/contributions - Recent readings for a station
  GET  /ws/outcomes                     - Live pipeline outcomes (websocket)

Examples:
  crowdgauge serve
  crowdgauge serve --port 8080 --public-url https://gauge.example.org
  crowdgauge serve --host 0.0.0.0 --workers 4 --static-reading NY1000:1.5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyServeFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		staticReading, _ := cmd.Flags().GetString("static-reading")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store, err := contribution.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("failed to open contribution store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				slog.Error("Store cleanup error", "error", err)
			}
		}()

		notifier, err := newNotifier(cfg)
		if err != nil {
			return err
		}

		parts, err := buildPipeline(ctx, cfg, store, notifier, staticReading)
		if err != nil {
			return fmt.Errorf("failed to initialize pipeline: %w", err)
		}
		defer func() {
			if err := parts.Close(); err != nil {
				slog.Error("Detector cleanup error", "error", err)
			}
		}()

		dispatcher := pipeline.NewDispatcherWithConfig(parts.orchestrator, cfg.ToDispatcherConfig())
		outcomes := pipeline.NewBroadcaster(16)
		dispatcher.OnOutcome(outcomes.Publish)

		webhookServer, err := server.NewServer(cfg.ToServerConfig(), server.Deps{
			Enqueuer: dispatcher,
			Registry: parts.registry,
			Store:    store,
			Outcomes: outcomes,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		go webhookServer.RunJanitor(ctx, janitorInterval, limiterIdle)

		timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           webhookServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			// No WriteTimeout: /ws/outcomes streams for as long as the client stays.
		}

		go func() {
			slog.Info("Starting crowdgauge server",
				"host", cfg.Server.Host,
				"port", cfg.Server.Port,
				"workers", dispatcher.Workers(),
				"store", cfg.Store.Driver,
				"signatures", cfg.ToServerConfig().AuthToken != "")
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

		// The detector and the store are closed by the deferred calls above,
		// after the queue has drained.
		return shutdown(httpServer, dispatcher, cfg.Server.ShutdownTimeout)
	},
}

// shutdown stops intake first, then drains queued submissions.
func shutdown(httpServer *http.Server, dispatcher *pipeline.Dispatcher, timeoutSec int) error {
	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", timeoutSec))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer shutdownCancel()

	slog.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	slog.Info("Draining submission queue", "queued", dispatcher.QueueDepth())
	drainErr := dispatcher.Shutdown(shutdownCtx)
	if drainErr != nil {
		slog.Error("Dispatcher shutdown error", "error", drainErr)
	} else {
		slog.Info("Dispatcher drained")
	}

	slog.Info("Graceful shutdown completed")
	return drainErr
}

// applyServeFlags copies explicitly set flags over the loaded configuration.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("public-url") {
		cfg.Server.PublicURL, _ = flags.GetString("public-url")
	}
	if flags.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("rate-per-minute") {
		cfg.Server.RatePerMinute, _ = flags.GetInt("rate-per-minute")
	}
	if flags.Changed("max-per-day") {
		cfg.Server.MaxPerDay, _ = flags.GetInt("max-per-day")
	}
	if flags.Changed("workers") {
		cfg.Dispatcher.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("queue-size") {
		cfg.Dispatcher.QueueSize, _ = flags.GetInt("queue-size")
	}
	if flags.Changed("store-driver") {
		cfg.Store.Driver, _ = flags.GetString("store-driver")
	}
	if flags.Changed("validate-signatures") {
		cfg.Twilio.ValidateSignatures, _ = flags.GetBool("validate-signatures")
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().String("public-url", "", "public base URL used to verify Twilio signatures")
	serveCmd.Flags().Int("timeout", 30, "request read timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 30, "shutdown timeout in seconds")
	serveCmd.Flags().Int("rate-per-minute", 6, "webhook messages per minute per contributor (0 disables)")
	serveCmd.Flags().Int("max-per-day", 50, "webhook messages per day per contributor (0 disables)")
	serveCmd.Flags().Int("workers", 4, "pipeline workers (0 = number of CPUs)")
	serveCmd.Flags().Int("queue-size", 64, "queued photos before the webhook answers 503")
	serveCmd.Flags().String("store-driver", "memory", "contribution store: memory, postgres or mysql")
	serveCmd.Flags().Bool("validate-signatures", true, "reject webhooks without a valid Twilio signature")
	serveCmd.Flags().String("static-reading", "",
		"answer every photo with STATION:HEIGHT instead of calling the vision model")
}
