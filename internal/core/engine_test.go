package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rhydlewis/omnifocus-to-kanban/internal/board"
	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// memStore is an in-memory omnifocus.Store for engine tests.
type memStore struct {
	tasks    []*models.SourceTask
	tasksErr error

	outcomes map[string]models.CloseOutcome
	closeErr map[string]error
	closed   []models.CompletedRef
}

func (s *memStore) EligibleTasks(ctx context.Context) ([]*models.SourceTask, error) {
	return s.tasks, s.tasksErr
}

func (s *memStore) CloseTask(ctx context.Context, ref models.CompletedRef) (models.CloseOutcome, error) {
	if err := s.closeErr[ref.Identifier]; err != nil {
		return models.CloseSkipped, err
	}
	s.closed = append(s.closed, ref)
	if outcome, ok := s.outcomes[ref.Identifier]; ok {
		return outcome, nil
	}
	return models.Closed, nil
}

func (s *memStore) Close() error { return nil }

// memBoard is an in-memory board.Adapter recording every write.
type memBoard struct {
	buckets  []board.BucketItems
	subNames map[string]map[string]bool

	createErr map[string]error
	nextID    int

	created    []board.CreateItemRequest
	markers    map[string]string
	updates    map[string]models.ItemUpdate
	subCreated map[string][]string
	removed    []string
}

func newMemBoard(buckets ...board.BucketItems) *memBoard {
	return &memBoard{
		buckets:    buckets,
		subNames:   map[string]map[string]bool{},
		createErr:  map[string]error{},
		markers:    map[string]string{},
		updates:    map[string]models.ItemUpdate{},
		subCreated: map[string][]string{},
	}
}

func (b *memBoard) Name() string           { return "mem" }
func (b *memBoard) Stats() board.CallStats { return board.CallStats{Requests: 1} }

func (b *memBoard) FetchAllItems(ctx context.Context) ([]board.BucketItems, error) {
	return b.buckets, nil
}

func (b *memBoard) CreateItem(ctx context.Context, req board.CreateItemRequest) (*models.RemoteItem, error) {
	if err := b.createErr[req.Title]; err != nil {
		return nil, err
	}
	b.nextID++
	b.created = append(b.created, req)
	return &models.RemoteItem{ID: fmt.Sprintf("card-%d", b.nextID), Title: req.Title}, nil
}

func (b *memBoard) AttachMarker(ctx context.Context, item *models.RemoteItem, identifier string) error {
	b.markers[item.ID] = identifier
	item.Marker = models.MarkerPrefix + identifier
	return nil
}

func (b *memBoard) CreateSubItem(ctx context.Context, item *models.RemoteItem, name string, finished bool) error {
	b.subCreated[item.ID] = append(b.subCreated[item.ID], name)
	return nil
}

func (b *memBoard) UpdateItem(ctx context.Context, item *models.RemoteItem, update models.ItemUpdate) error {
	b.updates[item.ID] = update
	return nil
}

func (b *memBoard) ListSubItemNames(ctx context.Context, item *models.RemoteItem) (map[string]bool, error) {
	names, ok := b.subNames[item.ID]
	if !ok {
		return map[string]bool{}, nil
	}
	return names, nil
}

func (b *memBoard) RemoveMarker(ctx context.Context, item *models.RemoteItem) error {
	b.removed = append(b.removed, item.ID)
	item.Marker = ""
	return nil
}

func marked(id, title, identifier string) *models.RemoteItem {
	return &models.RemoteItem{ID: id, Title: title, Marker: models.MarkerPrefix + identifier}
}

func testBoardConfig() models.BoardConfig {
	return models.BoardConfig{
		DefaultDropBucket: "backlog",
		CompletedBuckets:  []string{"done"},
		CardTypes: map[string]models.TypeMapping{
			"Errand": {Color: "Orange", Bucket: "errands"},
			"Void":   {Color: "None"},
		},
	}
}

func TestEngine_Run_CloseThenPush(t *testing.T) {
	adapter := newMemBoard(
		board.BucketItems{
			Bucket: models.Bucket{ID: "todo"},
			Items:  []*models.RemoteItem{marked("existing-1", "old title", "of-keep")},
		},
		board.BucketItems{
			Bucket: models.Bucket{ID: "done"},
			Items:  []*models.RemoteItem{marked("existing-2", "pay invoice", "of-done")},
		},
	)
	store := &memStore{
		tasks: []*models.SourceTask{
			{Identifier: "of-keep", Name: "new title", Note: "updated note"},
			{
				Identifier: "of-new",
				Name:       "buy milk",
				Type:       "Errand",
				Children:   []*models.SourceTask{{Name: "find wallet"}},
			},
		},
	}

	engine := NewEngine(store, adapter, "mem", testBoardConfig(), false)
	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(store.closed) != 1 || store.closed[0].Identifier != "of-done" {
		t.Errorf("expected of-done closed, got %v", store.closed)
	}
	if report.TasksClosed != 1 {
		t.Errorf("expected 1 task closed, got %d", report.TasksClosed)
	}

	if len(adapter.created) != 1 {
		t.Fatalf("expected 1 card created, got %d", len(adapter.created))
	}
	created := adapter.created[0]
	if created.BucketID != "errands" || created.Color != "Orange" {
		t.Errorf("expected type mapping applied, got %+v", created)
	}
	newID := fmt.Sprintf("card-%d", adapter.nextID)
	if adapter.markers["existing-1"] != "" || adapter.markers[newID] != "of-new" {
		t.Errorf("expected marker attached to the new card, got %v", adapter.markers)
	}
	if subs := adapter.subCreated[newID]; len(subs) != 1 || subs[0] != "find wallet" {
		t.Errorf("expected child sub-item created, got %v", subs)
	}

	update, ok := adapter.updates["existing-1"]
	if !ok {
		t.Fatal("expected drifted card updated")
	}
	if update.Title == nil || *update.Title != "new title" {
		t.Errorf("expected title update, got %+v", update)
	}
	if update.Description == nil || *update.Description != "updated note" {
		t.Errorf("expected description update, got %+v", update)
	}
	if report.CardsCreated != 1 || report.CardsUpdated != 1 {
		t.Errorf("unexpected counts %+v", report)
	}

	if report.APIRequests != 1 {
		t.Errorf("expected adapter stats in report, got %d", report.APIRequests)
	}
}

func TestEngine_Run_DryRunMakesNoWrites(t *testing.T) {
	adapter := newMemBoard(
		board.BucketItems{
			Bucket: models.Bucket{ID: "done"},
			Items:  []*models.RemoteItem{marked("card-1", "pay invoice", "of-done")},
		},
	)
	store := &memStore{
		tasks: []*models.SourceTask{
			{Identifier: "of-new", Name: "buy milk", Children: []*models.SourceTask{{Name: "a"}, {Name: "b"}}},
		},
	}

	engine := NewEngine(store, adapter, "mem", testBoardConfig(), true)
	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(store.closed) != 0 {
		t.Errorf("dry run must not close tasks, got %v", store.closed)
	}
	if len(adapter.created) != 0 || len(adapter.markers) != 0 || len(adapter.subCreated) != 0 {
		t.Error("dry run must not write to the board")
	}

	// The report still counts the planned operations.
	if report.TasksClosed != 1 || report.CardsCreated != 1 || report.SubItemsCreated != 2 {
		t.Errorf("unexpected dry-run counts %+v", report)
	}
}

func TestEngine_Run_RepeatingTaskDetachesMarker(t *testing.T) {
	adapter := newMemBoard(
		board.BucketItems{
			Bucket: models.Bucket{ID: "done"},
			Items:  []*models.RemoteItem{marked("card-1", "water plants", "of-rep")},
		},
	)
	store := &memStore{
		outcomes: map[string]models.CloseOutcome{"of-rep": models.ClosedRepeating},
	}

	engine := NewEngine(store, adapter, "mem", testBoardConfig(), false)
	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(adapter.removed) != 1 || adapter.removed[0] != "card-1" {
		t.Errorf("expected marker removed from card-1, got %v", adapter.removed)
	}
	if report.TasksClosed != 1 || report.RepeatingTasksClosed != 1 {
		t.Errorf("unexpected counts %+v", report)
	}
}

func TestEngine_Run_UnknownContextSkipsTask(t *testing.T) {
	adapter := newMemBoard()
	store := &memStore{
		tasks: []*models.SourceTask{
			{Identifier: "of-1", Name: "mystery", Type: "Unmapped"},
			{Identifier: "of-2", Name: "voided", Type: "Void"},
			{Identifier: "of-3", Name: "fine"},
		},
	}

	engine := NewEngine(store, adapter, "mem", testBoardConfig(), false)
	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if report.TasksSkipped != 2 {
		t.Errorf("expected 2 skipped, got %d", report.TasksSkipped)
	}
	if len(report.Failures) != 2 {
		t.Errorf("expected skips surfaced as failures, got %v", report.Failures)
	}
	if len(adapter.created) != 1 || adapter.created[0].Title != "fine" {
		t.Errorf("mapped task must still sync, got %v", adapter.created)
	}
}

func TestEngine_Run_UnmappedContextStillUpdatesExistingCard(t *testing.T) {
	adapter := newMemBoard(
		board.BucketItems{
			Bucket: models.Bucket{ID: "todo"},
			Items:  []*models.RemoteItem{marked("existing-1", "old title", "of-1")},
		},
	)
	store := &memStore{
		tasks: []*models.SourceTask{
			{Identifier: "of-1", Name: "new title", Type: "Unmapped"},
		},
	}

	engine := NewEngine(store, adapter, "mem", testBoardConfig(), false)
	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	update, ok := adapter.updates["existing-1"]
	if !ok {
		t.Fatal("existing card must receive drift updates regardless of type mapping")
	}
	if update.Title == nil || *update.Title != "new title" {
		t.Errorf("expected title update, got %+v", update)
	}
	if report.TasksSkipped != 0 || len(report.Failures) != 0 {
		t.Errorf("update path must not consult the type table, got %+v", report)
	}
}

func TestEngine_Run_SubItemDedup(t *testing.T) {
	adapter := newMemBoard(
		board.BucketItems{
			Bucket: models.Bucket{ID: "todo"},
			Items:  []*models.RemoteItem{marked("card-1", "project", "of-p")},
		},
	)
	adapter.subNames["card-1"] = map[string]bool{"a step": true}
	store := &memStore{
		tasks: []*models.SourceTask{
			{
				Identifier: "of-p",
				Name:       "project",
				Children: []*models.SourceTask{
					{Name: "a step"},
					{Name: "b step"},
				},
			},
		},
	}

	engine := NewEngine(store, adapter, "mem", testBoardConfig(), false)
	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if subs := adapter.subCreated["card-1"]; len(subs) != 1 || subs[0] != "b step" {
		t.Errorf("expected only the missing sub-item created, got %v", subs)
	}
	if report.SubItemsCreated != 1 || report.CardsUpdated != 0 {
		t.Errorf("unexpected counts %+v", report)
	}
}

func TestEngine_Run_PartialFailuresContinue(t *testing.T) {
	adapter := newMemBoard()
	adapter.createErr["doomed"] = errors.New("backend said no")
	store := &memStore{
		tasks: []*models.SourceTask{
			{Identifier: "of-1", Name: "doomed"},
			{Identifier: "of-2", Name: "survivor"},
		},
	}

	engine := NewEngine(store, adapter, "mem", testBoardConfig(), false)
	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("per-task failures must not fail the run, got %v", err)
	}

	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure recorded, got %v", report.Failures)
	}
	if len(adapter.created) != 1 || adapter.created[0].Title != "survivor" {
		t.Errorf("expected the second task to sync, got %v", adapter.created)
	}
	if report.CardsCreated != 1 {
		t.Errorf("expected 1 card created, got %d", report.CardsCreated)
	}
}

func TestEngine_Run_CloseFailureRecorded(t *testing.T) {
	adapter := newMemBoard(
		board.BucketItems{
			Bucket: models.Bucket{ID: "done"},
			Items:  []*models.RemoteItem{marked("card-1", "stuck", "of-x")},
		},
	)
	store := &memStore{
		closeErr: map[string]error{"of-x": errors.New("osascript exploded")},
	}

	engine := NewEngine(store, adapter, "mem", testBoardConfig(), false)
	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.TasksClosed != 0 || len(report.Failures) != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}
