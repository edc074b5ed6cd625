package app

import (
	"log/slog"
	"time"

	attendancePersistence "github.com/felixgeelhaar/studiobook/internal/attendance/infrastructure/persistence"
	bookingDomain "github.com/felixgeelhaar/studiobook/internal/booking/domain"
	bookingPersistence "github.com/felixgeelhaar/studiobook/internal/booking/infrastructure/persistence"
	pricingDomain "github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	pricingCache "github.com/felixgeelhaar/studiobook/internal/pricing/infrastructure/cache"
	pricingPersistence "github.com/felixgeelhaar/studiobook/internal/pricing/infrastructure/persistence"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/outbox"
	"github.com/redis/go-redis/v9"
)

// RepositoryFactory creates repositories on one connection. The SQL is
// portable, so the same types serve PostgreSQL and SQLite.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(conn database.Connection) *RepositoryFactory {
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
	}
}

// ReservationRepository stores reservations and guest allocations.
func (f *RepositoryFactory) ReservationRepository() *bookingPersistence.SQLReservationRepository {
	return bookingPersistence.NewSQLReservationRepository(f.conn)
}

// ConflictReader reads overlapping reservations. Pass a replica factory to
// move previews off the primary.
func (f *RepositoryFactory) ConflictReader() bookingDomain.ConflictReader {
	return bookingPersistence.NewSQLConflictReader(f.conn)
}

// AttendanceRecordRepository stores attendance slots.
func (f *RepositoryFactory) AttendanceRecordRepository() *attendancePersistence.SQLRecordRepository {
	return attendancePersistence.NewSQLRecordRepository(f.conn)
}

// PassRepository stores client credit passes.
func (f *RepositoryFactory) PassRepository() *attendancePersistence.SQLPassRepository {
	return attendancePersistence.NewSQLPassRepository(f.conn)
}

// ServiceTypeRepository returns the service type store, fronted by Redis
// when a client is given.
func (f *RepositoryFactory) ServiceTypeRepository(client *redis.Client, ttl time.Duration, logger *slog.Logger) pricingDomain.ServiceTypeRepository {
	repo := pricingPersistence.NewSQLServiceTypeRepository(f.conn)
	if client == nil {
		return repo
	}
	return pricingCache.NewServiceTypeRepository(repo, client, ttl, logger)
}

// PriceCodeRepository stores client price overrides.
func (f *RepositoryFactory) PriceCodeRepository() pricingDomain.PriceCodeRepository {
	return pricingPersistence.NewSQLPriceCodeRepository(f.conn)
}

// OutboxRepository stores domain events awaiting publication.
func (f *RepositoryFactory) OutboxRepository() *outbox.SQLRepository {
	return outbox.NewSQLRepository(f.conn)
}

// Driver returns the current database driver.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}

// Connection returns the underlying database connection.
func (f *RepositoryFactory) Connection() database.Connection {
	return f.conn
}
