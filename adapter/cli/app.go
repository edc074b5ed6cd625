package cli

import (
	"errors"

	internalApp "github.com/felixgeelhaar/studiobook/internal/app"
	"github.com/felixgeelhaar/studiobook/pkg/config"
)

// errNotInitialized is returned by commands that need a database when the
// container could not be built.
var errNotInitialized = errors.New("application not initialized - database connection required")

// App holds the CLI application dependencies.
type App struct {
	Config    *config.Config
	Container *internalApp.Container
}

// NewApp creates a new CLI application.
func NewApp(cfg *config.Config, container *internalApp.Container) *App {
	return &App{Config: cfg, Container: container}
}

var app *App

// SetApp sets the global CLI application.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application.
func GetApp() *App {
	return app
}

func requireContainer() (*App, error) {
	if app == nil || app.Container == nil {
		return nil, errNotInitialized
	}
	return app, nil
}
