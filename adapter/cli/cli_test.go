package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	internalApp "github.com/felixgeelhaar/studiobook/internal/app"
	"github.com/felixgeelhaar/studiobook/internal/booking/application/commands"
	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	pricingDomain "github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	"github.com/felixgeelhaar/studiobook/pkg/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCLIApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{
		AppEnv:                 "test",
		SQLitePath:             filepath.Join(t.TempDir(), "cli.db"),
		EventBroker:            config.BrokerNone,
		DefaultCreditsRequired: 1,
		MaxOccurrences:         52,
	}
	container, err := internalApp.NewContainer(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	require.NoError(t, container.ServiceTypeRepo.Save(ctx, &pricingDomain.ServiceType{
		ID: 3, Name: "Pilates", EntryFeeBrutto: decimal.NewFromInt(20), Active: true,
	}))

	a := NewApp(cfg, container)
	SetApp(a)
	t.Cleanup(func() { SetApp(nil) })
	return a
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "studiobook "+Version)
}

func TestCommandsRequireContainer(t *testing.T) {
	SetApp(nil)
	for _, args := range [][]string{{"migrate"}, {"migrate", "status"}} {
		_, err := runCLI(t, args...)
		assert.ErrorIs(t, err, errNotInitialized)
	}
}

func TestMigrateCommand(t *testing.T) {
	setupCLIApp(t)

	out, err := runCLI(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	out, err = runCLI(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending migrations.")
}

func TestPreviewCommand(t *testing.T) {
	a := setupCLIApp(t)
	ctx := context.Background()

	window, err := domain.NewTimeWindow(
		time.Date(2025, 1, 20, 10, 30, 0, 0, time.UTC),
		time.Date(2025, 1, 20, 11, 30, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	_, err = a.Container.CreateReservationHandler.Handle(ctx, commands.CreateReservationCommand{
		Title:         "Physio",
		ServiceTypeID: 3,
		ResourceKeys:  []domain.ResourceKey{domain.RoomKey(1)},
		Window:        window,
	})
	require.NoError(t, err)

	out, err := runCLI(t, "preview",
		"--day", "mon", "--time", "10:00", "--duration", "60",
		"--from", "2025-01-06", "--to", "2025-01-27",
		"--room", "1", "--skip", "2025-01-13",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "DATE")
	assert.Contains(t, out, "2025-01-13  10:00  11:00  skipped")
	assert.Contains(t, out, "Physio")
	assert.Contains(t, out, "2 of 4 dates can be booked.")
}

func TestPreviewCommand_RequiresResource(t *testing.T) {
	setupCLIApp(t)
	previewRooms, previewStaff = nil, nil

	_, err := runCLI(t, "preview",
		"--day", "monday", "--time", "10:00",
		"--from", "2025-01-06", "--to", "2025-01-27",
	)
	assert.ErrorContains(t, err, "--room or --staff")
}

func TestPreviewResources(t *testing.T) {
	keys := previewResources([]int64{1, 2}, []int64{9})
	assert.Equal(t, []domain.ResourceKey{domain.RoomKey(1), domain.RoomKey(2), domain.StaffKey(9)}, keys)
}

func TestHealthCommand(t *testing.T) {
	setupCLIApp(t)

	out, err := runCLI(t, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "database   healthy")
	assert.Contains(t, out, "overall    healthy")
}

func TestWorkerHealthMux(t *testing.T) {
	a := setupCLIApp(t)
	mux := workerHealthMux(a, a.Container.NewOutboxProcessor())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["running"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)
}
