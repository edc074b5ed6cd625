package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/studiobook/adapter/api"
	"github.com/felixgeelhaar/studiobook/internal/notifications"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	withProcessor bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the reservation and attendance HTTP API.

With --outbox the outbox processor runs in the same process, which is
convenient for local SQLite setups. Production deployments run the
worker command separately.

Examples:
  studiobook serve
  studiobook serve --addr :9090 --outbox`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireContainer()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		c := a.Container
		cfg := a.Config

		serverCfg := api.DefaultServerConfig()
		if serveAddr != "" {
			serverCfg.Addr = serveAddr
		} else if cfg.HTTPAddr != "" {
			serverCfg.Addr = cfg.HTTPAddr
		}
		serverCfg.JWTSecret = cfg.JWTSecret
		if len(cfg.CORSOrigin) > 0 {
			serverCfg.CORSOrigins = cfg.CORSOrigin
		}
		serverCfg.Debug = cfg.IsDevelopment()

		server := api.NewServer(serverCfg, api.Handlers{
			Reservations: api.NewReservationHandler(api.ReservationHandlerConfig{
				CreateReservation: c.CreateReservationHandler,
				UpdateReservation: c.UpdateReservationHandler,
				CancelReservation: c.CancelReservationHandler,
				CreateRecurring:   c.CreateRecurringHandler,
				GetReservation:    c.GetReservationHandler,
				ListSeries:        c.ListSeriesHandler,
				PreviewRecurrence: c.PreviewRecurrenceHandler,
				DetectConflicts:   c.DetectConflictsHandler,
				Logger:            logger,
			}),
			Attendance: api.NewAttendanceHandler(c.Ledger, logger),
			Health:     api.NewHealthHandler(c.Health, cfg.Version),
			Metrics:    c.Metrics,
		}, logger)

		if bus := c.LocalBus; bus != nil {
			bus.Subscribe(notifications.RoutingKeyPrefix+"#", func(_ context.Context, key string, payload []byte) error {
				logger.Info("notification", "routing_key", key, "bytes", len(payload))
				return nil
			})
		}

		if withProcessor {
			processor := c.NewOutboxProcessor()
			if err := processor.Start(ctx); err != nil {
				return fmt.Errorf("failed to start outbox processor: %w", err)
			}
			defer processor.Stop()
			go runOutboxCleanup(ctx, a, cfg.OutboxCleanupInterval)
		}

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

// runOutboxCleanup deletes published and dead outbox messages past
// retention until ctx is done.
func runOutboxCleanup(ctx context.Context, a *App, interval time.Duration) {
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
			deleted, err := a.Container.CleanupOutbox(ctx)
			if err != nil {
				logger.Error("outbox cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("outbox cleanup completed", "deleted", deleted, "retention_days", a.Config.OutboxRetentionDays)
			}
		}
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default HTTP_ADDR)")
	serveCmd.Flags().BoolVar(&withProcessor, "outbox", false, "also run the outbox processor")
	rootCmd.AddCommand(serveCmd)
}
