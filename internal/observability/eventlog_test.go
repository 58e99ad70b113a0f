package observability

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

func newTestLog(t *testing.T) EventLog {
	t.Helper()
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log := newTestLog(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Time: base, Level: "INFO", Type: EventRunCompleted, Message: "run one", Data: map[string]any{"board": "trello"}},
		{Time: base.Add(time.Hour), Level: "WARN", Type: EventRunCompleted, Message: "run two", Data: map[string]any{"board": "leankit"}},
		{Time: base.Add(2 * time.Hour), Level: "INFO", Type: EventTaskClosed, Message: "closed"},
	}
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	all, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].Message != "run one" || !all[0].Time.Equal(base) {
		t.Errorf("unexpected first event %+v", all[0])
	}
}

func TestEventLog_Filters(t *testing.T) {
	log := newTestLog(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writes := []Event{
		{Time: base, Level: "INFO", Type: EventRunCompleted, Data: map[string]any{"board": "trello"}},
		{Time: base.Add(time.Hour), Level: "WARN", Type: EventRunCompleted, Data: map[string]any{"board": "leankit"}},
		{Time: base.Add(2 * time.Hour), Level: "ERROR", Type: EventRunFailed, Data: map[string]any{"board": "trello"}},
	}
	for _, e := range writes {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	since := base.Add(30 * time.Minute)
	got, err := log.Read(EventFilter{Since: &since})
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("since filter: expected 2 events, got %d", len(got))
	}

	got, err = log.Read(EventFilter{Type: EventRunFailed})
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if len(got) != 1 || got[0].Level != "ERROR" {
		t.Errorf("type filter: unexpected events %+v", got)
	}

	got, err = log.Read(EventFilter{Board: "trello"})
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("board filter: expected 2 events, got %d", len(got))
	}

	got, err = log.Read(EventFilter{Board: "trello", Level: "INFO"})
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("combined filter: expected 1 event, got %d", len(got))
	}
}

func TestEventLog_ReadMissingFileIsEmpty(t *testing.T) {
	log := &jsonlEventLog{path: filepath.Join(t.TempDir(), "never-written.jsonl")}
	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestRecordReport(t *testing.T) {
	log := newTestLog(t)

	report := &models.SyncReport{
		RunID:        "run-1",
		Board:        "trello",
		Started:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Elapsed:      3.2,
		TasksClosed:  2,
		CardsCreated: 1,
		APIRequests:  14,
	}
	if err := RecordReport(log, report); err != nil {
		t.Fatalf("recording report: %v", err)
	}

	events, err := log.Read(EventFilter{Type: EventRunCompleted})
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	e := events[0]
	if e.Level != "INFO" {
		t.Errorf("clean run must log at INFO, got %s", e.Level)
	}
	if e.Data["board"] != "trello" || e.Data["run_id"] != "run-1" {
		t.Errorf("unexpected event data %v", e.Data)
	}
	// Numbers round-trip through JSON as float64.
	if e.Data["tasks_closed"].(float64) != 2 {
		t.Errorf("unexpected tasks_closed %v", e.Data["tasks_closed"])
	}

	report.Failures = []string{"task x: boom"}
	if err := RecordReport(log, report); err != nil {
		t.Fatalf("recording report: %v", err)
	}
	events, _ = log.Read(EventFilter{Level: "WARN"})
	if len(events) != 1 {
		t.Errorf("run with failures must log at WARN, got %d events", len(events))
	}
}
