package outbox_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/shared/application"
	"github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cancelledEvent struct {
	domain.BaseEvent
	Reason string `json:"reason"`
}

func setupSQLite(t *testing.T) database.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "outbox.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = migrations.Run(ctx, conn)
	require.NoError(t, err)
	return conn
}

func TestSQLRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	conn := setupSQLite(t)
	repo := outbox.NewSQLRepository(conn)

	event := &cancelledEvent{
		BaseEvent: domain.NewBaseEvent(uuid.New(), "Reservation", "booking.reservation.cancelled"),
		Reason:    "client request",
	}
	msg, err := outbox.NewMessage(event)
	require.NoError(t, err)
	require.NoError(t, repo.SaveBatch(ctx, []*outbox.Message{msg}))
	assert.NotZero(t, msg.ID)

	due, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, event.EventID(), due[0].EventID)
	assert.Equal(t, "booking.reservation.cancelled", due[0].RoutingKey)
	assert.JSONEq(t, `{"reason":"client request"}`, string(due[0].Payload))

	require.NoError(t, repo.MarkFailed(ctx, msg.ID, "broker down", time.Now().Add(time.Hour)))
	due, err = repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "message is backing off")

	require.NoError(t, repo.MarkPublished(ctx, msg.ID))
	deleted, err := repo.DeleteOld(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestRecorder_WritesInsideUnitOfWork(t *testing.T) {
	ctx := context.Background()
	conn := setupSQLite(t)
	repo := outbox.NewSQLRepository(conn)
	recorder := outbox.NewRecorder(repo)
	uow := database.NewUnitOfWork(conn)

	event := &cancelledEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Reservation", "booking.reservation.cancelled")}

	err := application.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		if err := recorder.Record(txCtx, []domain.DomainEvent{event}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	due, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "rolled back with the transaction")

	err = application.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		return recorder.Record(txCtx, []domain.DomainEvent{event})
	})
	require.NoError(t, err)

	due, err = repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}
