package observability

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

func TestMetricsCalculator_Calculate(t *testing.T) {
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reports := []*models.SyncReport{
		{RunID: "r1", Board: "trello", Started: base, TasksClosed: 2, CardsCreated: 1, APIRequests: 10, BytesTransferred: 512},
		{RunID: "r2", Board: "trello", Started: base.Add(time.Hour), CardsUpdated: 3, SubItemsCreated: 2, APIRequests: 6},
		{RunID: "r3", Board: "leankit", Started: base.Add(2 * time.Hour), TasksSkipped: 1, Failures: []string{"boom"}},
	}
	for _, r := range reports {
		if err := RecordReport(log, r); err != nil {
			t.Fatalf("recording: %v", err)
		}
	}
	// Non-run events count toward EventCount but not run totals.
	if err := log.Write(Event{Time: base.Add(3 * time.Hour), Level: "INFO", Type: EventTaskClosed}); err != nil {
		t.Fatalf("writing: %v", err)
	}

	m, err := NewMetricsCalculator(log).Calculate(base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("calculating: %v", err)
	}

	if m.Runs != 3 || m.EventCount != 4 {
		t.Errorf("expected 3 runs over 4 events, got %d/%d", m.Runs, m.EventCount)
	}
	if m.RunsWithFailures != 1 {
		t.Errorf("expected 1 run with failures, got %d", m.RunsWithFailures)
	}
	if m.TasksClosed != 2 || m.CardsCreated != 1 || m.CardsUpdated != 3 || m.SubItemsCreated != 2 || m.TasksSkipped != 1 {
		t.Errorf("unexpected totals %+v", m)
	}
	if m.APIRequests != 16 || m.BytesTransferred != 512 {
		t.Errorf("unexpected accounting %+v", m)
	}
	if m.RunsByBoard["trello"] != 2 || m.RunsByBoard["leankit"] != 1 {
		t.Errorf("unexpected per-board counts %v", m.RunsByBoard)
	}
	if m.OldestEvent == nil || !m.OldestEvent.Equal(base) {
		t.Errorf("unexpected oldest event %v", m.OldestEvent)
	}
	if m.NewestEvent == nil || !m.NewestEvent.Equal(base.Add(3*time.Hour)) {
		t.Errorf("unexpected newest event %v", m.NewestEvent)
	}
}

func TestMetricsCalculator_SinceCutoff(t *testing.T) {
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := &models.SyncReport{RunID: "old", Board: "trello", Started: base.Add(-48 * time.Hour), TasksClosed: 5}
	recent := &models.SyncReport{RunID: "new", Board: "trello", Started: base, TasksClosed: 1}
	for _, r := range []*models.SyncReport{old, recent} {
		if err := RecordReport(log, r); err != nil {
			t.Fatalf("recording: %v", err)
		}
	}

	m, err := NewMetricsCalculator(log).Calculate(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("calculating: %v", err)
	}
	if m.Runs != 1 || m.TasksClosed != 1 {
		t.Errorf("expected only the recent run counted, got %+v", m)
	}
}
