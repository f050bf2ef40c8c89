package core

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/vrsandeep/tubeindex/internal/auth"
	"github.com/vrsandeep/tubeindex/internal/channel"
	"github.com/vrsandeep/tubeindex/internal/client"
	"github.com/vrsandeep/tubeindex/internal/config"
	"github.com/vrsandeep/tubeindex/internal/coordinator"
	"github.com/vrsandeep/tubeindex/internal/db"
	"github.com/vrsandeep/tubeindex/internal/store"
)

// App holds the core components of the application that are shared
// between the CLI subcommands.
type App struct {
	Config      *config.Config
	DB          *sql.DB
	Store       *store.Store
	API         *client.Client
	Channel     *channel.Manager
	Auth        *auth.Service
	Coordinator *coordinator.Coordinator
	Version     string
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the local database, and wiring the HTTP
// client, push channel and coordinator against the configured server.
func New(version string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database); err != nil {
		// We can't proceed without a valid database schema.
		// Close the DB connection before failing.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	st := store.New(database)

	api := client.New(cfg.Server.URL, cfg.RequestTimeout())
	authSvc := auth.NewService(st, api)
	api.SetTokenSource(authSvc.AccessToken)

	mgr := channel.New(cfg.Server.URL, &channel.Options{
		RetryAttempts: cfg.Channel.RetryAttempts,
		RetryBackoff:  cfg.RetryBackoff(),
	})

	coord := coordinator.New(mgr, api, &coordinator.Options{
		ConnectTimeout: cfg.ConnectTimeout(),
		QuietPeriod:    cfg.QuietPeriod(),
	})

	log.Println("Core application setup complete.")
	return &App{
		Config:      cfg,
		DB:          database,
		Store:       st,
		API:         api,
		Channel:     mgr,
		Auth:        authSvc,
		Coordinator: coord,
		Version:     version,
	}, nil
}

// Close gracefully closes the application's resources: the push channel
// and the DB connection.
func (a *App) Close() {
	if a.Channel != nil {
		a.Channel.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
