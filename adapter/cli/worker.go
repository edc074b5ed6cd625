package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Publish outbox events to the configured broker",
	Long: `Run the outbox processor. It polls the outbox, publishes each event
through the configured broker (EVENT_BROKER=rabbitmq|kafka|none) and
periodically deletes messages past OUTBOX_RETENTION_DAYS.

When WORKER_HEALTH_ADDR is set, /healthz reports processor statistics and
/readyz reports database and broker readiness.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireContainer()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		cfg := a.Config

		processor := a.Container.NewOutboxProcessor()
		logger.Info("starting outbox processor",
			"broker", cfg.EventBroker,
			"poll_interval", cfg.OutboxPollInterval,
			"batch_size", cfg.OutboxBatchSize,
			"max_retries", cfg.OutboxMaxRetries,
		)
		if err := processor.Start(ctx); err != nil {
			return fmt.Errorf("failed to start outbox processor: %w", err)
		}

		go runOutboxCleanup(ctx, a, cfg.OutboxCleanupInterval)
		go logOutboxStats(ctx, processor, cfg.OutboxStatsInterval)

		if cfg.WorkerHealthAddr != "" {
			healthSrv := &http.Server{
				Addr:              cfg.WorkerHealthAddr,
				Handler:           workerHealthMux(a, processor),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
				if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("health server error", "error", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := healthSrv.Shutdown(shutdownCtx); err != nil {
					logger.Warn("health server shutdown error", "error", err)
				}
			}()
		}

		<-ctx.Done()
		logger.Info("shutting down worker")
		processor.Stop()
		logger.Info("worker stopped")
		return nil
	},
}

func workerHealthMux(a *App, processor *outbox.Processor) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := processor.GetStats()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":            "ok",
			"running":           stats.IsRunning,
			"published":         stats.PublishedCount,
			"failed":            stats.FailedCount,
			"dead":              stats.DeadCount,
			"lag_seconds":       stats.LagSeconds,
			"last_processed_at": stats.LastProcessedAt,
			"last_error_at":     stats.LastErrorAt,
			"last_error":        stats.LastError,
		})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		health := a.Container.Health.GetOverallHealth(checkCtx)
		if health.Status == observability.HealthStatusUnhealthy {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"checks": health.Checks,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})
	return mux
}

func logOutboxStats(ctx context.Context, processor *outbox.Processor, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := processor.GetStats()
			logger.Info("outbox stats",
				"running", stats.IsRunning,
				"published", stats.PublishedCount,
				"failed", stats.FailedCount,
				"dead", stats.DeadCount,
				"lag_seconds", stats.LagSeconds,
				"oldest_message_at", stats.OldestMessageAt,
				"last_processed_at", stats.LastProcessedAt,
				"last_error_at", stats.LastErrorAt,
				"last_error", stats.LastError,
			)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
