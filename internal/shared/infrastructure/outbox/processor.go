package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
)

// ProcessorConfig holds configuration for the outbox processor.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

// DefaultProcessorConfig returns the settings used when nothing is configured.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     500 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
	}
}

// ProcessorOption customises a Processor.
type ProcessorOption func(*Processor)

// WithMetrics reports deliveries, retries, dead letters and lag.
func WithMetrics(m observability.Metrics) ProcessorOption {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// delivery is what happened to one message in a pass.
type delivery int

const (
	delivered delivery = iota
	retrying
	deadLettered
)

func (d delivery) String() string {
	switch d {
	case delivered:
		return "delivered"
	case retrying:
		return "retrying"
	default:
		return "dead"
	}
}

// Processor relays booking and attendance events from the outbox to the
// broker. A message that keeps failing backs off exponentially and is
// dead-lettered after MaxRetries attempts.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	statsMu sync.Mutex
	stats   Stats
}

// NewProcessor creates a new outbox processor.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger.With("component", "outbox"),
		metrics:   observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the relay loop until Stop is called or ctx ends. Starting a
// running processor is a no-op.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, p.done)

	p.logger.Info("outbox relay started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_retries", p.config.MaxRetries,
	)
	return nil
}

// Stop ends the loop and waits for the current pass to finish.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done
	p.logger.Info("outbox relay stopped")
}

// IsRunning reports whether the loop is active.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Processor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.relay(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox pass failed", "error", err)
			}
		}
	}
}

// ProcessOnce relays one batch synchronously.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	return p.relay(ctx)
}

// relay publishes every due message once. A failing message never stops the
// rest of the batch.
func (p *Processor) relay(ctx context.Context) error {
	batch, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.noteError(err)
		return err
	}
	p.notePass(batch)

	var counts [3]int
	for _, msg := range batch {
		outcome := p.deliver(ctx, msg)
		counts[outcome]++
		p.metrics.Counter(observability.MetricOutboxMessages, 1,
			observability.T("outcome", outcome.String()),
			observability.T("aggregate", msg.AggregateType),
		)
	}
	if len(batch) > 0 {
		p.logger.Debug("outbox pass",
			"messages", len(batch),
			"delivered", counts[delivered],
			"retrying", counts[retrying],
			"dead", counts[deadLettered],
		)
	}
	return nil
}

func (p *Processor) deliver(ctx context.Context, msg *Message) delivery {
	pubErr := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload)
	if pubErr == nil {
		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			// The broker has it; a later pass will publish it again.
			p.logger.Error("outbox message published but not marked",
				"outbox_id", msg.ID,
				"event_id", msg.EventID,
				"error", err,
			)
			return retrying
		}
		p.noteDelivered(msg)
		return delivered
	}

	attempt := msg.RetryCount + 1
	meta := decodeMetadata(msg)
	log := p.logger.With(
		"outbox_id", msg.ID,
		"event", msg.RoutingKey,
		"aggregate", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"attempt", attempt,
		"correlation_id", meta.CorrelationID,
		"actor", meta.Actor,
	)

	if p.exhausted(attempt) {
		p.noteFailure(pubErr, true)
		log.Error("outbox message dead-lettered", "error", pubErr)
		if err := p.repo.MarkDead(ctx, msg.ID, pubErr.Error()); err != nil {
			log.Error("failed to dead-letter outbox message", "error", err)
		}
		return deadLettered
	}

	p.noteFailure(pubErr, false)
	next := time.Now().Add(p.backoff(attempt))
	log.Warn("outbox publish failed, will retry", "next_retry_at", next, "error", pubErr)
	if err := p.repo.MarkFailed(ctx, msg.ID, pubErr.Error(), next); err != nil {
		log.Error("failed to schedule outbox retry", "error", err)
	}
	return retrying
}

func (p *Processor) exhausted(attempt int) bool {
	return p.config.MaxRetries <= 0 || attempt >= p.config.MaxRetries
}

// backoff doubles from RetryBackoffBase per attempt, capped at
// RetryBackoffMax.
func (p *Processor) backoff(attempt int) time.Duration {
	base, limit := p.config.RetryBackoffBase, p.config.RetryBackoffMax
	if base <= 0 {
		base = time.Second
	}
	if limit <= 0 {
		limit = time.Minute
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d <= 0 || d >= limit {
			return limit
		}
	}
	return min(d, limit)
}

type eventMeta struct {
	CorrelationID string
	Actor         string
}

func decodeMetadata(msg *Message) eventMeta {
	var m domain.EventMetadata
	if len(msg.Metadata) == 0 || json.Unmarshal(msg.Metadata, &m) != nil {
		return eventMeta{}
	}
	return eventMeta{CorrelationID: m.CorrelationID.String(), Actor: m.Actor}
}

// Stats is a snapshot of the relay's progress.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// GetStats returns a copy of the current statistics.
func (p *Processor) GetStats() Stats {
	running := p.IsRunning()
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	s := p.stats
	s.IsRunning = running
	return s
}

func (p *Processor) noteDelivered(msg *Message) {
	p.metrics.Timing(observability.MetricOutboxLag, time.Since(msg.CreatedAt),
		observability.T("aggregate", msg.AggregateType))
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.PublishedCount++
}

func (p *Processor) noteFailure(err error, dead bool) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	if dead {
		p.stats.DeadCount++
	} else {
		p.stats.FailedCount++
	}
	p.setLastError(err)
}

func (p *Processor) noteError(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.setLastError(err)
}

func (p *Processor) setLastError(err error) {
	now := time.Now()
	p.stats.LastError = err.Error()
	p.stats.LastErrorAt = &now
}

// notePass records when the batch was read and how far behind its oldest
// message is.
func (p *Processor) notePass(batch []*Message) {
	now := time.Now()
	var oldest *time.Time
	for _, msg := range batch {
		if oldest == nil || msg.CreatedAt.Before(*oldest) {
			created := msg.CreatedAt
			oldest = &created
		}
	}

	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.LastProcessedAt = &now
	p.stats.OldestMessageAt = oldest
	p.stats.LagSeconds = 0
	if oldest != nil {
		p.stats.LagSeconds = now.Sub(*oldest).Seconds()
	}
}
