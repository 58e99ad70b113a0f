package omnifocus

import (
	"sort"
	"strings"
	"time"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// Policy decides which flagged tasks belong on the board. The zero
// value uses the current time and no prefix override.
type Policy struct {
	// SyncPrefix force-includes tasks whose name starts with it even
	// when sequencing marks them blocked. Waiting-for tasks are named
	// this way so they stay visible on the board.
	SyncPrefix string

	// Now anchors deferral checks; the zero value means time.Now().
	Now time.Time
}

func (p Policy) now() time.Time {
	if p.Now.IsZero() {
		return time.Now()
	}
	return p.Now
}

// Filter returns the tasks that should exist on the board, with each
// kept task's children pruned and sorted.
func (p Policy) Filter(tasks []*models.SourceTask) []*models.SourceTask {
	var eligible []*models.SourceTask
	for _, task := range tasks {
		if !p.Eligible(task) {
			continue
		}
		task.Children = p.filterChildren(task.Children)
		eligible = append(eligible, task)
	}
	return eligible
}

// Eligible reports whether a single flagged task belongs on the board.
// Container tasks (tasks with children) stay off the board unless they
// contain a next actionable step or carry the prefix; blocked tasks
// without children stay off unless prefixed. Both rules keep parent
// projects with no standalone actionable meaning from flooding the
// board as cards.
func (p Policy) Eligible(task *models.SourceTask) bool {
	if task.Completed {
		return false
	}
	if task.IsDeferred(p.now()) {
		return false
	}
	if len(task.Children) > 0 && !task.HasNextStep && !p.prefixed(task) {
		return false
	}
	if task.Blocked && len(task.Children) == 0 && !p.prefixed(task) {
		return false
	}
	return true
}

// filterChildren drops children deferred into the future and sorts the
// rest by name. Completed children are kept: they become sub-items
// created in the finished state.
func (p Policy) filterChildren(children []*models.SourceTask) []*models.SourceTask {
	now := p.now()
	var kept []*models.SourceTask
	for _, child := range children {
		if child.IsDeferred(now) {
			continue
		}
		kept = append(kept, child)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Name < kept[j].Name })
	return kept
}

func (p Policy) prefixed(task *models.SourceTask) bool {
	return p.SyncPrefix != "" && strings.HasPrefix(task.Name, p.SyncPrefix)
}
