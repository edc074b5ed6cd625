// Package notifications delivers post-commit notifications to the broker.
// Delivery is best effort: failures are counted and logged, never returned.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/sony/gobreaker/v2"
)

// RoutingKeyPrefix prefixes every notification routing key.
const RoutingKeyPrefix = "notifications."

// Notification is one message for downstream consumers.
type Notification struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// Config tunes the circuit breaker around the publisher.
type Config struct {
	// MaxFailures trips the breaker after this many consecutive failures.
	MaxFailures uint32
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// PublishTimeout bounds a single publish.
	PublishTimeout time.Duration
}

// DefaultConfig returns the breaker defaults.
func DefaultConfig() Config {
	return Config{
		MaxFailures:    5,
		Timeout:        30 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

// Dispatcher publishes notifications behind a circuit breaker.
type Dispatcher struct {
	publisher eventbus.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	timeout   time.Duration
	metrics   observability.Metrics
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(publisher eventbus.Publisher, cfg Config, metrics observability.Metrics, logger *slog.Logger) *Dispatcher {
	defaults := DefaultConfig()
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaults.MaxFailures
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaults.PublishTimeout
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		publisher: publisher,
		timeout:   cfg.PublishTimeout,
		metrics:   metrics,
		logger:    logger.With("component", "notifications"),
	}
	d.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "notifications",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return d
}

// Dispatch publishes n. It outlives the caller's cancellation but is
// bounded by the publish timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		d.fail(n.Type, err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	_, err = d.breaker.Execute(func() (any, error) {
		return nil, d.publisher.Publish(pubCtx, RoutingKeyPrefix+n.Type, payload)
	})
	if err != nil {
		d.fail(n.Type, err)
	}
}

// State reports the breaker state.
func (d *Dispatcher) State() gobreaker.State {
	return d.breaker.State()
}

func (d *Dispatcher) fail(notificationType string, err error) {
	d.metrics.Counter(observability.MetricNotificationsFailed, 1, observability.T("type", notificationType))
	level := slog.LevelWarn
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		level = slog.LevelDebug
	}
	d.logger.Log(context.Background(), level, "notification dropped",
		"type", notificationType,
		"error", err,
	)
}
