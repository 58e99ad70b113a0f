package board

import (
	"fmt"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// New returns the adapter for the named backend.
func New(name string, cfg models.BoardConfig) (Adapter, error) {
	switch name {
	case "leankit":
		if cfg.Account == "" || cfg.Email == "" || cfg.Password == "" {
			return nil, &ConfigError{Reason: "leankit requires account, email and password"}
		}
		return NewLeanKitAdapter(cfg), nil
	case "kanbanflow":
		if cfg.Token == "" {
			return nil, &ConfigError{Reason: "kanbanflow requires an api token"}
		}
		return NewKanbanFlowAdapter(cfg), nil
	case "trello":
		if cfg.AppKey == "" || cfg.Token == "" {
			return nil, &ConfigError{Reason: "trello requires an app key and token"}
		}
		return NewTrelloAdapter(cfg), nil
	case "zenkit":
		if cfg.Token == "" || cfg.ListID == "" {
			return nil, &ConfigError{Reason: "zenkit requires an api key and list id"}
		}
		return NewZenkitAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown board type %q", name)
	}
}
