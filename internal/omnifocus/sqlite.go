package omnifocus

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// OmniFocus stores dates as seconds since the Apple epoch (2001-01-01).
const appleEpochOffset = 978307200

// Candidate cache locations, tried in order. The Mac App Store build
// uses a different bundle identifier.
var cacheLocations = []string{
	"Library/Caches/com.omnigroup.OmniFocus3/OmniFocusDatabase.db",
	"Library/Caches/com.omnigroup.OmniFocus3.MacAppStore/OmniFocusDatabase.db",
}

// cacheDB reads the task cache SQLite database OmniFocus maintains
// alongside its own store.
type cacheDB struct {
	db *sql.DB
}

func openCache(path string) (*cacheDB, error) {
	if path == "" {
		var err error
		path, err = defaultCachePath()
		if err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cache database %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	return &cacheDB{db: db}, nil
}

func defaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	for _, loc := range cacheLocations {
		path := filepath.Join(home, loc)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no omnifocus cache database found under %s", home)
}

func (c *cacheDB) close() error {
	return c.db.Close()
}

const taskColumns = `t.persistentIdentifier, t.name, t.plainTextNote,
	t.dateCompleted, t.effectiveDateToStart, t.blocked,
	t.blockedByFutureStartDate, t.containsNextTask,
	t.repetitionMethodString, c.name, p.status`

// Both flag columns: effectiveFlagged alone would also match children
// that merely inherit the flag from a flagged parent, surfacing them as
// top-level candidates next to the parent that already carries them.
const flaggedTasksQuery = `
	SELECT ` + taskColumns + `
	FROM Task t
	LEFT JOIN Context c ON t.context = c.persistentIdentifier
	LEFT JOIN ProjectInfo p ON t.containingProjectInfo = p.pk
	WHERE t.flagged = 1 AND t.effectiveFlagged = 1`

const taskByIDQuery = `
	SELECT ` + taskColumns + `
	FROM Task t
	LEFT JOIN Context c ON t.context = c.persistentIdentifier
	LEFT JOIN ProjectInfo p ON t.containingProjectInfo = p.pk
	WHERE t.persistentIdentifier = ?`

const childTasksQuery = `
	SELECT ` + taskColumns + `
	FROM Task t
	LEFT JOIN Context c ON t.context = c.persistentIdentifier
	LEFT JOIN ProjectInfo p ON t.containingProjectInfo = p.pk
	WHERE t.parent = ?`

// Project states that take a task off the board regardless of flags.
func projectInactive(status string) bool {
	switch status {
	case "done", "dropped", "inactive":
		return true
	}
	return false
}

// flaggedTasks returns every flagged task in an active project, with
// children attached one level deep. The project join is outer: tasks
// with no containing project (inbox tasks) are kept, since a flagged
// inbox task is still actionable.
func (c *cacheDB) flaggedTasks(ctx context.Context) ([]*models.SourceTask, error) {
	rows, err := c.db.QueryContext(ctx, flaggedTasksQuery)
	if err != nil {
		return nil, fmt.Errorf("querying flagged tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*models.SourceTask
	for rows.Next() {
		task, status, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		if projectInactive(status) {
			continue
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, task := range tasks {
		children, err := c.childTasks(ctx, task.Identifier)
		if err != nil {
			return nil, err
		}
		task.Children = children
	}
	return tasks, nil
}

// taskByIdentifier returns the task or nil when no row matches.
func (c *cacheDB) taskByIdentifier(ctx context.Context, identifier string) (*models.SourceTask, error) {
	rows, err := c.db.QueryContext(ctx, taskByIDQuery, identifier)
	if err != nil {
		return nil, fmt.Errorf("querying task %s: %w", identifier, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	task, _, err := scanTask(rows)
	return task, err
}

func (c *cacheDB) childTasks(ctx context.Context, parentID string) ([]*models.SourceTask, error) {
	rows, err := c.db.QueryContext(ctx, childTasksQuery, parentID)
	if err != nil {
		return nil, fmt.Errorf("querying children of %s: %w", parentID, err)
	}
	defer func() { _ = rows.Close() }()

	var children []*models.SourceTask
	for rows.Next() {
		task, _, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, task)
	}
	return children, rows.Err()
}

func scanTask(rows *sql.Rows) (*models.SourceTask, string, error) {
	var (
		identifier     string
		name           sql.NullString
		note           sql.NullString
		dateCompleted  sql.NullFloat64
		dateToStart    sql.NullFloat64
		blocked        sql.NullInt64
		blockedByStart sql.NullInt64
		hasNextStep    sql.NullInt64
		repetition     sql.NullString
		contextName    sql.NullString
		projectStatus  sql.NullString
	)
	err := rows.Scan(&identifier, &name, &note, &dateCompleted, &dateToStart,
		&blocked, &blockedByStart, &hasNextStep, &repetition, &contextName, &projectStatus)
	if err != nil {
		return nil, "", fmt.Errorf("scanning task row: %w", err)
	}

	task := &models.SourceTask{
		Identifier:     identifier,
		Name:           name.String,
		Note:           note.String,
		Type:           contextName.String,
		Completed:      dateCompleted.Valid,
		Blocked:        blocked.Int64 != 0 && blockedByStart.Int64 == 0,
		HasNextStep:    hasNextStep.Int64 != 0,
		RepetitionRule: repetition.String,
	}
	if dateToStart.Valid && dateToStart.Float64 != 0 {
		t := time.Unix(int64(dateToStart.Float64)+appleEpochOffset, 0)
		task.DeferredUntil = &t
	}
	return task, projectStatus.String, nil
}
