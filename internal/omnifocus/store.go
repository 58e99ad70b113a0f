// Package omnifocus reads flagged tasks out of the OmniFocus cache
// database and closes tasks through the application's scripting bridge.
// The cache is read-only: all mutation goes through AppleScript so
// OmniFocus keeps its own database consistent.
package omnifocus

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// Store is the task source the reconciliation engine pulls from and
// pushes completions back into.
type Store interface {
	// EligibleTasks returns the flagged, actionable tasks that should
	// exist on the board, with children attached and sorted.
	EligibleTasks(ctx context.Context) ([]*models.SourceTask, error)

	// CloseTask marks the referenced task complete. Already-closed tasks
	// are skipped, as are tasks whose current name no longer matches the
	// ref (the identifier may have been reused). Closing a repeating task
	// reports ClosedRepeating so the caller can detach the board marker
	// before the regenerated task appears under a fresh identifier.
	CloseTask(ctx context.Context, ref models.CompletedRef) (models.CloseOutcome, error)

	// Close releases the underlying database handle.
	Close() error
}

type store struct {
	cache  *cacheDB
	script *scriptRunner
	policy Policy
	log    *logrus.Entry
}

// NewStore opens the OmniFocus cache at cfg.DBPath (or the default
// location when empty) and returns a Store filtering through policy.
func NewStore(cfg models.OmniFocusConfig, policy Policy) (Store, error) {
	cache, err := openCache(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening omnifocus cache: %w", err)
	}
	return &store{
		cache:  cache,
		script: newScriptRunner(),
		policy: policy,
		log:    logrus.WithField("component", "omnifocus"),
	}, nil
}

func (s *store) EligibleTasks(ctx context.Context) ([]*models.SourceTask, error) {
	tasks, err := s.cache.flaggedTasks(ctx)
	if err != nil {
		return nil, err
	}
	eligible := s.policy.Filter(tasks)
	s.log.Debugf("%d flagged tasks, %d eligible", len(tasks), len(eligible))
	return eligible, nil
}

func (s *store) CloseTask(ctx context.Context, ref models.CompletedRef) (models.CloseOutcome, error) {
	task, err := s.cache.taskByIdentifier(ctx, ref.Identifier)
	if err != nil {
		return models.CloseSkipped, err
	}
	if task == nil {
		s.log.Infof("task %s no longer exists; skipping close", ref.Identifier)
		return models.CloseSkipped, nil
	}

	// The cache may be stale, so the application is the authority on
	// completion state.
	done, err := s.script.taskCompleted(ctx, ref.Identifier)
	if err != nil {
		return models.CloseSkipped, err
	}
	if done {
		return models.CloseSkipped, nil
	}

	// Identifiers of repeating tasks are reused by the regenerated copy.
	// If the names have drifted apart, the board item belongs to an
	// earlier incarnation and closing would hit the wrong task.
	if task.Name != ref.Name {
		s.log.Warnf("task %s renamed (%q on board, %q in omnifocus); skipping close", ref.Identifier, ref.Name, task.Name)
		return models.CloseSkipped, nil
	}

	if err := s.script.closeTask(ctx, ref.Identifier); err != nil {
		return models.CloseSkipped, err
	}

	if task.IsRepeating() {
		s.log.Infof("closed repeating task %q; it will regenerate under a new identifier", task.Name)
		return models.ClosedRepeating, nil
	}
	return models.Closed, nil
}

func (s *store) Close() error {
	return s.cache.close()
}
