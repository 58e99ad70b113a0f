package cli

import (
	"github.com/rhydlewis/omnifocus-to-kanban/internal/board"
	"github.com/rhydlewis/omnifocus-to-kanban/internal/core"
	"github.com/rhydlewis/omnifocus-to-kanban/internal/observability"
	"github.com/rhydlewis/omnifocus-to-kanban/internal/omnifocus"
	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	// Cfg is the loaded configuration.
	Cfg *models.Config

	// OpenStore opens the OmniFocus task store. Opened lazily because
	// commands like report never touch OmniFocus.
	OpenStore func() (omnifocus.Store, error)

	// NewAdapter builds the board adapter for the named backend (empty
	// means the configured default).
	NewAdapter func(boardName string) (board.Adapter, models.BoardConfig, error)

	// NewEngine wires a reconciliation engine; the returned store must be
	// closed by the caller.
	NewEngine func(boardName string, dryRun bool) (*core.Engine, omnifocus.Store, error)

	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
