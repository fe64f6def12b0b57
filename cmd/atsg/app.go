package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/config"
	"github.com/aristath/testscriptgen/internal/events"
	"github.com/aristath/testscriptgen/internal/keyseal"
	"github.com/aristath/testscriptgen/internal/localstore"
	"github.com/aristath/testscriptgen/internal/logging"
	"github.com/aristath/testscriptgen/internal/session"
	"github.com/aristath/testscriptgen/internal/settings"
	"github.com/aristath/testscriptgen/internal/workflow"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	apiURL     string
	logLevel   string
}

// app is the wired set of session objects one command runs against.
type app struct {
	cfg      *config.DashboardConfig
	store    *localstore.SQLiteStore
	client   *api.Client
	sealer   *keyseal.Sealer
	auth     *session.Auth
	settings *settings.Store
	bus      *events.Bus
	log      *logrus.Entry
	logFile  io.Closer
}

// loadConfig resolves configuration from files, environment and flags.
func loadConfig(flags *globalFlags) (*config.DashboardConfig, error) {
	var (
		cfg *config.DashboardConfig
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.Load(flags.configPath, "")
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if flags.apiURL != "" {
		cfg.API.BaseURL = flags.apiURL
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	return cfg, nil
}

// openApp wires storage, the API client, encryption and the session.
// logToFile sends logs to the configured file instead of stderr.
func openApp(ctx context.Context, flags *globalFlags, logToFile bool) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logPath := ""
	if logToFile {
		logPath = cfg.Log.File
	}
	logFile, err := logging.Configure(cfg.Log.Level, logPath)
	if err != nil {
		return nil, err
	}
	log := logging.Component("atsg")

	store, err := localstore.NewSQLiteStore(ctx, cfg.Storage.Path)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening local store: %w", err)
	}

	pem, err := cfg.PublicKey()
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, err
	}
	sealer, err := keyseal.New(pem, logging.Component("keyseal"))
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("loading public key: %w", err)
	}

	client := api.NewFromConfig(cfg.API, store, logging.Component("api"))
	bus := events.NewBus()
	auth := session.NewAuth(client, store, logging.Component("session"))
	auth.PublishTo(bus)

	return &app{
		cfg:      cfg,
		store:    store,
		client:   client,
		sealer:   sealer,
		auth:     auth,
		settings: settings.NewStore(),
		bus:      bus,
		log:      log,
		logFile:  logFile,
	}, nil
}

// formDeps returns the collaborators for task forms.
func (a *app) formDeps() workflow.FormDeps {
	return workflow.FormDeps{
		API:      a.client,
		Settings: a.settings,
		Sealer:   a.sealer,
		Keys:     a.store,
		History:  a.store,
		Bus:      a.bus,
		Log:      logging.Component("workflow"),
		Timings:  workflow.TimingsFromConfig(a.cfg),
	}
}

// taskList returns a task list bound to the app's client and bus.
func (a *app) taskList() *workflow.TaskList {
	banner := time.Duration(a.cfg.UI.BannerSeconds) * time.Second
	return workflow.NewTaskList(a.client, a.bus, banner, logging.Component("tasks"))
}

// requireLogin restores the persisted session or explains how to get one.
func (a *app) requireLogin(ctx context.Context) (*api.User, error) {
	user, err := a.auth.Restore(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) || api.IsUnauthorized(err) {
			return nil, fmt.Errorf("not logged in, run `atsg login` first")
		}
		return nil, err
	}
	return user, nil
}

func (a *app) Close() {
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("closing local store")
	}
	a.logFile.Close()
}
