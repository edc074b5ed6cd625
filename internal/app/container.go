// Package app wires studiobook's repositories, services and handlers from
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	attendanceApp "github.com/felixgeelhaar/studiobook/internal/attendance/application"
	attendancePersistence "github.com/felixgeelhaar/studiobook/internal/attendance/infrastructure/persistence"
	"github.com/felixgeelhaar/studiobook/internal/booking/application/commands"
	"github.com/felixgeelhaar/studiobook/internal/booking/application/queries"
	"github.com/felixgeelhaar/studiobook/internal/booking/application/services"
	bookingPersistence "github.com/felixgeelhaar/studiobook/internal/booking/infrastructure/persistence"
	"github.com/felixgeelhaar/studiobook/internal/notifications"
	pricingApp "github.com/felixgeelhaar/studiobook/internal/pricing/application"
	pricingDomain "github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	sharedApplication "github.com/felixgeelhaar/studiobook/internal/shared/application"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database/postgres"
	_ "github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database/sqlite" // registers the SQLite driver
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/studiobook/pkg/config"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver
	Replica  *postgres.Replica

	// Redis
	RedisClient *redis.Client

	// Repositories
	ReservationRepo  *bookingPersistence.SQLReservationRepository
	AttendanceRepo   *attendancePersistence.SQLRecordRepository
	PassRepo         *attendancePersistence.SQLPassRepository
	ServiceTypeRepo  pricingDomain.ServiceTypeRepository
	PriceCodeRepo    pricingDomain.PriceCodeRepository
	OutboxRepo       *outbox.SQLRepository
	UnitOfWork       sharedApplication.UnitOfWork
	EventRecorder    sharedApplication.EventRecorder
	PriceResolver    *pricingApp.Resolver
	EventPublisher   eventbus.Publisher
	LocalBus         *eventbus.InProcessBus
	Notifications    *notifications.Dispatcher
	ConflictDetector *services.ConflictDetector

	// Reservation Command Handlers
	CreateReservationHandler *commands.CreateReservationHandler
	UpdateReservationHandler *commands.UpdateReservationHandler
	CancelReservationHandler *commands.CancelReservationHandler
	CreateRecurringHandler   *commands.CreateRecurringHandler

	// Reservation Query Handlers
	GetReservationHandler    *queries.GetReservationHandler
	ListSeriesHandler        *queries.ListSeriesHandler
	PreviewRecurrenceHandler *queries.PreviewRecurrenceHandler
	DetectConflictsHandler   *queries.DetectConflictsHandler

	// Attendance
	Ledger *attendanceApp.Ledger

	closers []func() error
}

// NewContainer connects to the configured stores and builds every handler.
// SQLite databases are migrated on open; PostgreSQL is migrated by the
// migrate command.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	if err := c.connect(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.connectPublisher(); err != nil {
		_ = c.Close()
		return nil, err
	}
	c.wire()
	return c, nil
}

func (c *Container) connect(ctx context.Context) error {
	cfg := c.Config
	conn, err := database.NewConnection(ctx, database.Config{
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
		MaxConns:   cfg.DatabaseMaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	c.closers = append(c.closers, conn.Close)
	c.Health.Register("database", observability.DatabaseHealthChecker(conn.Ping))
	c.Logger.Info("connected to database", "driver", c.DBDriver)

	if c.DBDriver == database.DriverSQLite {
		applied, err := migrations.Run(ctx, conn)
		if err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		if len(applied) > 0 {
			c.Logger.Info("applied migrations", "count", len(applied))
		}
	}

	if cfg.DatabaseReplicaURL != "" {
		replica, err := postgres.NewReplica(ctx, cfg.DatabaseReplicaURL, cfg.DatabaseMaxConns)
		if err != nil {
			return fmt.Errorf("failed to connect to replica: %w", err)
		}
		c.Replica = replica
		c.closers = append(c.closers, replica.Close)
		c.Health.Register("replica", observability.DatabaseHealthChecker(replica.Ping))
		c.Logger.Info("connected to read replica")
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			c.Logger.Warn("redis not reachable, service type cache will fall back", "error", err)
		}
		c.RedisClient = client
		c.closers = append(c.closers, client.Close)
		c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}
	return nil
}

func (c *Container) connectPublisher() error {
	cfg := c.Config
	var (
		publisher eventbus.Publisher
		err       error
	)
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		publisher, err = eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.EventsExchange, c.Logger)
	case config.BrokerKafka:
		kafkaCfg := eventbus.DefaultKafkaConfig()
		kafkaCfg.Brokers = cfg.KafkaBrokers
		kafkaCfg.Topic = cfg.KafkaTopic
		publisher, err = eventbus.NewKafkaPublisher(kafkaCfg, c.Logger)
	case config.BrokerInProcess:
		c.LocalBus = eventbus.NewInProcessBus(c.Logger)
		publisher = c.LocalBus
	default:
		publisher = eventbus.NewNoopPublisher(c.Logger)
	}
	if err != nil {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to connect to %s: %w", cfg.EventBroker, err)
		}
		c.Logger.Warn("event broker not available, using noop publisher", "broker", cfg.EventBroker, "error", err)
		publisher = eventbus.NewNoopPublisher(c.Logger)
	}

	c.EventPublisher = publisher
	c.closers = append(c.closers, publisher.Close)
	if pinger, ok := publisher.(eventbus.Pinger); ok {
		c.Health.Register("broker", observability.BrokerHealthChecker(cfg.EventBroker, pinger.Ping))
	}
	return nil
}

func (c *Container) wire() {
	cfg := c.Config
	factory := NewRepositoryFactory(c.DBConn)

	c.ReservationRepo = factory.ReservationRepository()
	c.AttendanceRepo = factory.AttendanceRecordRepository()
	c.PassRepo = factory.PassRepository()
	c.ServiceTypeRepo = factory.ServiceTypeRepository(c.RedisClient, cfg.ServiceTypeCacheTTL, c.Logger)
	c.PriceCodeRepo = factory.PriceCodeRepository()
	c.OutboxRepo = factory.OutboxRepository()
	c.UnitOfWork = database.NewUnitOfWork(c.DBConn)
	c.EventRecorder = outbox.NewRecorder(c.OutboxRepo)
	c.PriceResolver = pricingApp.NewResolver(c.ServiceTypeRepo, c.PriceCodeRepo)

	c.Notifications = notifications.NewDispatcher(c.EventPublisher, notifications.Config{
		MaxFailures: cfg.NotifyBreakerMaxFailures,
		Timeout:     cfg.NotifyBreakerTimeout,
	}, c.Metrics, c.Logger)

	// Writers re-check conflicts on the primary inside their transaction.
	c.ConflictDetector = services.NewConflictDetector(factory.ConflictReader(), c.Metrics)
	readDetector := c.ConflictDetector
	if c.Replica != nil {
		readDetector = services.NewConflictDetector(NewRepositoryFactory(c.Replica).ConflictReader(), c.Metrics)
	}

	deps := commands.Deps{
		Reservations: c.ReservationRepo,
		Slots:        c.AttendanceRepo,
		Detector:     c.ConflictDetector,
		Guests:       services.NewGuestAggregator(c.PriceResolver),
		Pricing:      c.PriceResolver,
		Events:       c.EventRecorder,
		UoW:          c.UnitOfWork,
		Notifier:     notifications.NewBookingNotifier(c.Notifications),
		Metrics:      c.Metrics,
		Logger:       c.Logger,
	}
	expander := services.NewRecurrenceExpander(c.ConflictDetector, c.ReservationRepo, c.UnitOfWork, cfg.MaxOccurrences, c.Metrics, c.Logger)
	previewer := services.NewRecurrenceExpander(readDetector, nil, nil, cfg.MaxOccurrences, c.Metrics, c.Logger)

	c.CreateReservationHandler = commands.NewCreateReservationHandler(deps)
	c.UpdateReservationHandler = commands.NewUpdateReservationHandler(deps)
	c.CancelReservationHandler = commands.NewCancelReservationHandler(deps)
	c.CreateRecurringHandler = commands.NewCreateRecurringHandler(deps, expander)

	c.GetReservationHandler = queries.NewGetReservationHandler(c.ReservationRepo)
	c.ListSeriesHandler = queries.NewListSeriesHandler(c.ReservationRepo)
	c.PreviewRecurrenceHandler = queries.NewPreviewRecurrenceHandler(previewer)
	c.DetectConflictsHandler = queries.NewDetectConflictsHandler(readDetector)

	c.Ledger = attendanceApp.NewLedger(
		c.ReservationRepo,
		c.AttendanceRepo,
		c.PassRepo,
		c.EventRecorder,
		c.UnitOfWork,
		cfg.DefaultCreditsRequired,
		c.Metrics,
		c.Logger,
	)
}

// NewOutboxProcessor creates a processor that publishes this container's
// outbox through its event publisher.
func (c *Container) NewOutboxProcessor() *outbox.Processor {
	pc := outbox.DefaultProcessorConfig()
	if c.Config.OutboxPollInterval > 0 {
		pc.PollInterval = c.Config.OutboxPollInterval
	}
	if c.Config.OutboxBatchSize > 0 {
		pc.BatchSize = c.Config.OutboxBatchSize
	}
	if c.Config.OutboxMaxRetries > 0 {
		pc.MaxRetries = c.Config.OutboxMaxRetries
	}
	return outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, pc, c.Logger, outbox.WithMetrics(c.Metrics))
}

// CleanupOutbox removes published and dead messages past retention.
func (c *Container) CleanupOutbox(ctx context.Context) (int64, error) {
	return c.OutboxRepo.DeleteOld(ctx, c.Config.OutboxRetentionDays)
}

// Close releases every connection in reverse order of opening.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
