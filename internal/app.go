// Package internal provides the App struct that wires all components of
// the OmniFocus sync pipeline together and initializes the CLI layer.
package internal

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/rhydlewis/omnifocus-to-kanban/internal/board"
	"github.com/rhydlewis/omnifocus-to-kanban/internal/cli"
	"github.com/rhydlewis/omnifocus-to-kanban/internal/core"
	"github.com/rhydlewis/omnifocus-to-kanban/internal/observability"
	"github.com/rhydlewis/omnifocus-to-kanban/internal/omnifocus"
	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// App holds all service dependencies for the sync pipeline.
type App struct {
	ConfigMgr core.ConfigurationManager
	Config    *models.Config

	// Observability
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp loads configuration and wires all components. configPath may be
// empty to use the standard search locations.
func NewApp(configPath string) (*App, error) {
	app := &App{}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(configPath)
	cfg, err := app.ConfigMgr.Load()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.Validate(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// --- Observability ---
	if home, err := os.UserHomeDir(); err == nil {
		eventLogPath := filepath.Join(home, ".ofkb_events.jsonl")
		app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
		if err != nil {
			// Non-fatal: run without an event log.
			app.EventLog = nil
		}
	}
	if app.EventLog != nil {
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.WebhookURL != "" {
		app.Notifier = observability.NewWebhookNotifier(cfg.WebhookURL)
	}

	// --- Wire CLI package-level variables ---
	cli.Cfg = cfg
	cli.OpenStore = app.OpenStore
	cli.NewAdapter = app.NewAdapter
	cli.NewEngine = app.NewEngine
	cli.EventLog = app.EventLog
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// OpenStore opens the OmniFocus cache with the configured selection
// policy. Callers own the returned store and must close it.
func (a *App) OpenStore() (omnifocus.Store, error) {
	policy := omnifocus.Policy{SyncPrefix: a.Config.SyncPrefix}
	return omnifocus.NewStore(a.Config.OmniFocus, policy)
}

// NewAdapter builds the board adapter for the named backend, defaulting
// to the configured board when name is empty.
func (a *App) NewAdapter(name string) (board.Adapter, models.BoardConfig, error) {
	if name == "" {
		name = a.Config.Board
	}
	bc, err := a.ConfigMgr.BoardConfig(a.Config, name)
	if err != nil {
		return nil, models.BoardConfig{}, err
	}
	adapter, err := board.New(name, bc)
	if err != nil {
		return nil, models.BoardConfig{}, err
	}
	return adapter, bc, nil
}

// NewEngine wires a reconciliation engine for one run. The returned
// store must be closed by the caller once the run is done.
func (a *App) NewEngine(name string, dryRun bool) (*core.Engine, omnifocus.Store, error) {
	adapter, bc, err := a.NewAdapter(name)
	if err != nil {
		return nil, nil, err
	}
	store, err := a.OpenStore()
	if err != nil {
		return nil, nil, err
	}
	return core.NewEngine(store, adapter, adapter.Name(), bc, dryRun), store, nil
}

// Close releases resources held by the App, such as the event log file
// handle. Safe to call when EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}
