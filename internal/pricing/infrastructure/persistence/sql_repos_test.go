package persistence_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/pricing/application"
	"github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	"github.com/felixgeelhaar/studiobook/internal/pricing/infrastructure/persistence"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/migrations"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) database.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "pricing.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = migrations.Run(ctx, conn)
	require.NoError(t, err)
	return conn
}

func TestSQLServiceTypeRepository(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSQLServiceTypeRepository(setupSQLite(t))

	st := &domain.ServiceType{
		ID:               3,
		Name:             "Pilates",
		EntryFeeBrutto:   decimal.RequireFromString("12.50"),
		TrainerFeeBrutto: decimal.RequireFromString("30.00"),
		Active:           true,
	}
	require.NoError(t, repo.Save(ctx, st))

	got, err := repo.FindByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Pilates", got.Name)
	assert.True(t, got.EntryFeeBrutto.Equal(st.EntryFeeBrutto))
	assert.True(t, got.Active)

	st.Active = false
	require.NoError(t, repo.Save(ctx, st))
	got, err = repo.FindByID(ctx, 3)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = repo.FindByID(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrServiceTypeNotFound)

	bad := &domain.ServiceType{ID: 4, EntryFeeBrutto: decimal.NewFromInt(-1)}
	assert.ErrorIs(t, repo.Save(ctx, bad), domain.ErrNegativeFee)
}

func TestResolver_AgainstSQLite(t *testing.T) {
	ctx := context.Background()
	conn := setupSQLite(t)
	stRepo := persistence.NewSQLServiceTypeRepository(conn)
	pcRepo := persistence.NewSQLPriceCodeRepository(conn)

	require.NoError(t, stRepo.Save(ctx, &domain.ServiceType{
		ID:               3,
		Name:             "Personal training",
		EntryFeeBrutto:   decimal.RequireFromString("20"),
		TrainerFeeBrutto: decimal.RequireFromString("40"),
		Active:           true,
	}))

	now := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)
	code := &domain.PriceCode{
		ClientID:         5,
		ServiceTypeID:    3,
		EntryFeeBrutto:   decimal.RequireFromString("15"),
		TrainerFeeBrutto: decimal.RequireFromString("35"),
		ValidFrom:        now.AddDate(0, -1, 0),
		ValidUntil:       &tomorrow,
		Active:           true,
	}
	require.NoError(t, pcRepo.Save(ctx, code))
	assert.NotZero(t, code.ID)

	codes, err := pcRepo.FindForClient(ctx, 5, 3)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	require.NotNil(t, codes[0].ValidUntil)
	assert.True(t, codes[0].ValidUntil.Equal(tomorrow))

	resolver := application.NewResolver(stRepo, pcRepo)

	quote, err := resolver.ResolveForClient(ctx, 5, 3, now)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceClientOverride, quote.Source)
	assert.True(t, quote.TrainerFeeBrutto.Equal(decimal.NewFromInt(35)))

	quote, err = resolver.ResolveForClient(ctx, 5, 3, tomorrow)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceServiceDefault, quote.Source)

	code.Active = false
	require.NoError(t, pcRepo.Save(ctx, code))
	quote, err = resolver.ResolveForClient(ctx, 5, 3, now)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceServiceDefault, quote.Source)
}
