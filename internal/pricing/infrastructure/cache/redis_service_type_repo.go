package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces service type entries.
const KeyPrefix = "studiobook:service_type:"

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 5 * time.Minute

// ServiceTypeRepository is a read-through Redis cache in front of another
// ServiceTypeRepository. Redis failures are logged and fall back to the
// wrapped repository.
type ServiceTypeRepository struct {
	next   domain.ServiceTypeRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewServiceTypeRepository wraps next with a cache.
func NewServiceTypeRepository(next domain.ServiceTypeRepository, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *ServiceTypeRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ServiceTypeRepository{next: next, client: client, ttl: ttl, logger: logger}
}

// Key returns the cache key for a service type id.
func Key(id int64) string {
	return fmt.Sprintf("%s%d", KeyPrefix, id)
}

// FindByID serves from Redis when possible.
func (r *ServiceTypeRepository) FindByID(ctx context.Context, id int64) (*domain.ServiceType, error) {
	key := Key(id)

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var st domain.ServiceType
		if jsonErr := json.Unmarshal(raw, &st); jsonErr == nil {
			return &st, nil
		}
		r.logger.Warn("discarding corrupt cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		r.logger.Warn("service type cache read failed", "key", key, "error", err)
	}

	st, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(st); err == nil {
		if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
			r.logger.Warn("service type cache write failed", "key", key, "error", err)
		}
	}
	return st, nil
}

// Save writes through and invalidates the cached entry.
func (r *ServiceTypeRepository) Save(ctx context.Context, st *domain.ServiceType) error {
	if err := r.next.Save(ctx, st); err != nil {
		return err
	}
	if err := r.client.Del(ctx, Key(st.ID)).Err(); err != nil {
		r.logger.Warn("service type cache invalidation failed", "id", st.ID, "error", err)
	}
	return nil
}
