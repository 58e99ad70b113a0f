// Package core contains the business logic for omnifocus-to-kanban:
// configuration loading, the reconciliation engine that mirrors flagged
// OmniFocus tasks onto a kanban board, and the two-way completion flow.
package core

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// ConfigFileName is the base name of the configuration file, resolved as
// ofkb.yaml in the search path.
const ConfigFileName = "ofkb"

// ConfigurationManager defines the interface for loading and validating
// the ofkb.yaml configuration.
type ConfigurationManager interface {
	Load() (*models.Config, error)
	BoardConfig(cfg *models.Config, board string) (models.BoardConfig, error)
	Validate(cfg *models.Config) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file.
type viperConfigManager struct {
	// path optionally pins the config file; when empty the standard
	// search path (cwd, then ~/.ofkb) is used.
	path string
}

// NewConfigurationManager creates a ConfigurationManager. path may be
// empty to use the standard search locations.
func NewConfigurationManager(path string) ConfigurationManager {
	return &viperConfigManager{path: path}
}

// Load reads the configuration file and applies defaults.
func (cm *viperConfigManager) Load() (*models.Config, error) {
	v := viper.New()
	if cm.path != "" {
		v.SetConfigFile(cm.path)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ofkb")
	}

	v.SetDefault("log_level", "info")
	v.SetDefault("sync_prefix", "WF")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	return &cfg, nil
}

// BoardConfig resolves the per-backend section for the requested board,
// falling back to the configured default when board is empty.
func (cm *viperConfigManager) BoardConfig(cfg *models.Config, board string) (models.BoardConfig, error) {
	if board == "" {
		board = cfg.Board
	}
	if board == "" {
		return models.BoardConfig{}, fmt.Errorf("no board selected: set board in ofkb.yaml or pass --board")
	}
	bc, ok := cfg.Boards[board]
	if !ok {
		return models.BoardConfig{}, fmt.Errorf("board %q is not configured", board)
	}
	return bc, nil
}

// validLogLevels is the set of allowed log_level values.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// knownBoards is the set of backend names an adapter exists for.
var knownBoards = map[string]bool{
	"leankit":    true,
	"kanbanflow": true,
	"trello":     true,
	"zenkit":     true,
}

// Validate checks the configuration for invalid values and returns a
// clear error message identifying the problem.
func (cm *viperConfigManager) Validate(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Sprintf(
			"log_level %q is invalid, must be one of: debug, info, warn, error",
			cfg.LogLevel,
		))
	}

	if len(cfg.Boards) == 0 {
		errs = append(errs, "no boards configured")
	}

	for name, bc := range cfg.Boards {
		if !knownBoards[name] {
			errs = append(errs, fmt.Sprintf(
				"board %q is unknown, must be one of: leankit, kanbanflow, trello, zenkit",
				name,
			))
			continue
		}
		if bc.DefaultDropBucket == "" {
			errs = append(errs, fmt.Sprintf("boards.%s.default_drop_bucket must not be empty", name))
		}
		if len(bc.CompletedBuckets) == 0 {
			errs = append(errs, fmt.Sprintf("boards.%s.completed_buckets must list at least one bucket", name))
		}
		if bc.RequestsPerSecond < 0 {
			errs = append(errs, fmt.Sprintf(
				"boards.%s.requests_per_second must be non-negative, got %g",
				name, bc.RequestsPerSecond,
			))
		}
		if bc.FetchWorkers < 0 {
			errs = append(errs, fmt.Sprintf(
				"boards.%s.fetch_workers must be non-negative, got %d",
				name, bc.FetchWorkers,
			))
		}
	}

	if cfg.Board != "" {
		if _, ok := cfg.Boards[cfg.Board]; !ok {
			errs = append(errs, fmt.Sprintf("default board %q is not configured", cfg.Board))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
