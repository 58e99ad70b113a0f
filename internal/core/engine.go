package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rhydlewis/omnifocus-to-kanban/internal/board"
	"github.com/rhydlewis/omnifocus-to-kanban/internal/omnifocus"
	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// Engine mirrors flagged OmniFocus tasks onto one kanban board. A run
// has two phases: first completions flow backwards (items found in
// completed buckets close their source tasks), then existence flows
// forwards (eligible tasks get cards created or updated). Phases always
// run in that order so a task completed on the board is never
// re-created by the same run.
type Engine struct {
	store     omnifocus.Store
	adapter   board.Adapter
	boardName string
	cfg       models.BoardConfig
	dryRun    bool
	log       *logrus.Entry
}

// NewEngine wires an engine for one board. dryRun reports every planned
// write without performing it.
func NewEngine(store omnifocus.Store, adapter board.Adapter, boardName string, cfg models.BoardConfig, dryRun bool) *Engine {
	return &Engine{
		store:     store,
		adapter:   adapter,
		boardName: boardName,
		cfg:       cfg,
		dryRun:    dryRun,
		log:       logrus.WithFields(logrus.Fields{"board": boardName, "dry_run": dryRun}),
	}
}

// Run executes one reconciliation pass and always returns a report,
// also on error, so callers can record partial progress.
func (e *Engine) Run(ctx context.Context) (*models.SyncReport, error) {
	report := &models.SyncReport{
		RunID:   uuid.NewString(),
		Board:   e.boardName,
		Started: time.Now(),
	}
	defer func() {
		report.Elapsed = time.Since(report.Started).Seconds()
		stats := e.adapter.Stats()
		report.APIRequests = stats.Requests
		report.BytesTransferred = stats.BytesTransferred
	}()

	e.log.WithField("run_id", report.RunID).Info("starting reconciliation run")

	builder := board.NewIndexBuilder(e.adapter, e.cfg.CompletedBuckets, e.cfg.FetchWorkers)
	index, err := builder.Build(ctx)
	if err != nil {
		return report, fmt.Errorf("building correlation index: %w", err)
	}

	e.closePhase(ctx, index, report)

	if err := e.pushPhase(ctx, index, report); err != nil {
		return report, err
	}

	e.log.WithFields(logrus.Fields{
		"closed":  report.TasksClosed,
		"created": report.CardsCreated,
		"updated": report.CardsUpdated,
		"skipped": report.TasksSkipped,
	}).Info("run complete")
	return report, nil
}

// closePhase closes the source task behind every item found in a
// completed bucket. Individual failures are recorded and skipped; the
// run continues.
func (e *Engine) closePhase(ctx context.Context, index *board.CorrelationIndex, report *models.SyncReport) {
	for _, ref := range index.Completed() {
		if e.dryRun {
			e.log.Infof("would close task %q (%s)", ref.Name, ref.Identifier)
			report.TasksClosed++
			continue
		}

		outcome, err := e.store.CloseTask(ctx, ref)
		if err != nil {
			e.recordFailure(report, fmt.Sprintf("closing task %q: %v", ref.Name, err))
			continue
		}

		switch outcome {
		case models.Closed:
			report.TasksClosed++
		case models.ClosedRepeating:
			report.TasksClosed++
			report.RepeatingTasksClosed++
			// The regenerated task gets a new identifier, so the old
			// item's marker must go or the next run would never create
			// a fresh card for it.
			if item, ok := index.Find(ref.Identifier); ok {
				if err := e.adapter.RemoveMarker(ctx, item); err != nil {
					e.recordFailure(report, fmt.Sprintf("removing marker for %q: %v", ref.Name, err))
				}
			}
		case models.CloseSkipped:
			report.TasksSkipped++
		}
	}
}

// pushPhase creates or updates a card for every eligible source task.
func (e *Engine) pushPhase(ctx context.Context, index *board.CorrelationIndex, report *models.SyncReport) error {
	tasks, err := e.store.EligibleTasks(ctx)
	if err != nil {
		return fmt.Errorf("reading eligible tasks: %w", err)
	}
	e.log.Debugf("%d eligible tasks against %d correlated items", len(tasks), index.Len())

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.pushTask(ctx, index, task, report); err != nil {
			e.recordFailure(report, fmt.Sprintf("task %q: %v", task.Name, err))
		}
	}
	return nil
}

func (e *Engine) pushTask(ctx context.Context, index *board.CorrelationIndex, task *models.SourceTask, report *models.SyncReport) error {
	if item, exists := index.Find(task.Identifier); exists {
		return e.updateCard(ctx, task, item, report)
	}

	// The type mapping only matters when a card is created, so an
	// unmapped context must not stop updates to an existing card.
	mapping, err := e.resolveType(task)
	if err != nil {
		report.TasksSkipped++
		return err
	}
	return e.createCard(ctx, task, mapping, report)
}

// resolveType maps the task's context name through the card type table.
// Tasks without a context take the defaults; a context the table does
// not know is a configuration error and skips the task.
func (e *Engine) resolveType(task *models.SourceTask) (models.TypeMapping, error) {
	if task.Type == "" {
		return models.TypeMapping{}, nil
	}
	mapping, ok := e.cfg.CardTypes[task.Type]
	if !ok {
		return models.TypeMapping{}, &board.ConfigError{
			Task:   task.Name,
			Reason: fmt.Sprintf("no card type mapping for context %q", task.Type),
		}
	}
	if mapping.Color == "None" {
		return models.TypeMapping{}, &board.ConfigError{
			Task:   task.Name,
			Reason: fmt.Sprintf("context %q maps to no card type", task.Type),
		}
	}
	return mapping, nil
}

func (e *Engine) createCard(ctx context.Context, task *models.SourceTask, mapping models.TypeMapping, report *models.SyncReport) error {
	bucket := e.cfg.DefaultDropBucket
	if mapping.Bucket != "" {
		bucket = mapping.Bucket
	}

	if e.dryRun {
		e.log.Infof("would create card %q in bucket %s", task.Name, bucket)
		report.CardsCreated++
		report.SubItemsCreated += len(task.Children)
		return nil
	}

	item, err := e.adapter.CreateItem(ctx, board.CreateItemRequest{
		Title:       task.Name,
		BucketID:    bucket,
		Description: task.Note,
		Color:       mapping.Color,
	})
	if err != nil {
		return err
	}

	// Marker first, sub-items second: a crash after the create must
	// leave a correlated card, not a future duplicate.
	if err := e.adapter.AttachMarker(ctx, item, task.Identifier); err != nil {
		return fmt.Errorf("attaching marker: %w", err)
	}
	report.CardsCreated++
	e.log.Infof("created card %q (%s)", task.Name, item.ID)

	for _, child := range task.SortedChildren() {
		if err := e.adapter.CreateSubItem(ctx, item, child.Name, child.Completed); err != nil {
			return fmt.Errorf("creating sub-item %q: %w", child.Name, err)
		}
		report.SubItemsCreated++
	}
	return nil
}

func (e *Engine) updateCard(ctx context.Context, task *models.SourceTask, item *models.RemoteItem, report *models.SyncReport) error {
	var update models.ItemUpdate
	if task.Name != item.Title {
		update.Title = &task.Name
	}
	// An absent note and an empty remote description are the same thing.
	if task.Note != item.Description {
		update.Description = &task.Note
	}

	if !update.IsEmpty() {
		if e.dryRun {
			e.log.Infof("would update card %q (%s)", task.Name, item.ID)
			report.CardsUpdated++
		} else {
			if err := e.adapter.UpdateItem(ctx, item, update); err != nil {
				return err
			}
			report.CardsUpdated++
			e.log.Infof("updated card %q (%s)", task.Name, item.ID)
		}
	}

	if len(task.Children) == 0 {
		return nil
	}

	existing := map[string]bool{}
	if !e.dryRun {
		var err error
		existing, err = e.adapter.ListSubItemNames(ctx, item)
		if err != nil {
			return fmt.Errorf("listing sub-items: %w", err)
		}
	}
	for _, child := range task.SortedChildren() {
		if existing[child.Name] {
			continue
		}
		if e.dryRun {
			e.log.Infof("would create sub-item %q on card %s", child.Name, item.ID)
			report.SubItemsCreated++
			continue
		}
		if err := e.adapter.CreateSubItem(ctx, item, child.Name, child.Completed); err != nil {
			return fmt.Errorf("creating sub-item %q: %w", child.Name, err)
		}
		report.SubItemsCreated++
	}
	return nil
}

func (e *Engine) recordFailure(report *models.SyncReport, msg string) {
	e.log.Warn(msg)
	report.Failures = append(report.Failures, msg)
}
