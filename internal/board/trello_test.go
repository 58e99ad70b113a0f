package board

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

func newTrelloFixture(t *testing.T) (*TrelloAdapter, *http.ServeMux) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := NewTrelloAdapter(models.BoardConfig{
		AppKey:            "key",
		Token:             "tok",
		BoardID:           "b1",
		RequestsPerSecond: 1000,
	})
	a.transport.baseURL = srv.URL
	return a, mux
}

func TestTrelloAdapter_FetchAllItemsSkipsArchived(t *testing.T) {
	a, mux := newTrelloFixture(t)
	mux.HandleFunc("/boards/b1/lists", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "key" || r.URL.Query().Get("token") != "tok" {
			t.Error("expected key/token query credentials")
		}
		_, _ = w.Write([]byte(`[{"id":"l1","name":"To Do"},{"id":"l2","name":"Done"}]`))
	})
	mux.HandleFunc("/boards/b1/cards", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"c1","name":"write report","idList":"l1"},
			{"id":"c2","name":"old thing","idList":"l1","closed":true},
			{"id":"c3","name":"pay invoice","idList":"l2"}
		]`))
	})

	buckets, err := a.FetchAllItems(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 lists, got %d", len(buckets))
	}
	if len(buckets[0].Items) != 1 {
		t.Fatalf("archived cards must be skipped, got %d items", len(buckets[0].Items))
	}
	if buckets[1].Items[0].ID != "c3" {
		t.Errorf("unexpected item %+v", buckets[1].Items[0])
	}
}

func TestTrelloAdapter_ItemAnnotations(t *testing.T) {
	a, mux := newTrelloFixture(t)
	mux.HandleFunc("/cards/c1/actions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter") != "commentCard" {
			t.Error("expected commentCard filter")
		}
		_, _ = w.Write([]byte(`[
			{"id":"a1","data":{"text":"just a note"}},
			{"id":"a2","data":{"text":"external_id=of-abc"}}
		]`))
	})

	texts, err := a.ItemAnnotations(context.Background(), &models.RemoteItem{ID: "c1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(texts) != 2 || texts[1] != models.MarkerPrefix+"of-abc" {
		t.Errorf("unexpected annotations %v", texts)
	}
}

func TestTrelloAdapter_SubItemsUseOneChecklist(t *testing.T) {
	a, mux := newTrelloFixture(t)

	mux.HandleFunc("/cards/c1/checklists", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"ck1","name":"Subtasks","checkItems":[{"name":"step one","state":"complete"}]}
		]`))
	})

	var created []string
	mux.HandleFunc("/checklists/ck1/checkItems", func(w http.ResponseWriter, r *http.Request) {
		created = append(created, r.Method)
		_, _ = w.Write([]byte(`{"id":"ci2"}`))
	})

	item := &models.RemoteItem{ID: "c1"}
	names, err := a.ListSubItemNames(context.Background(), item)
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if !names["step one"] {
		t.Errorf("expected existing check item, got %v", names)
	}

	// The list call cached the checklist id; creating must reuse it
	// instead of creating a second checklist.
	if err := a.CreateSubItem(context.Background(), item, "step two", false); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(created) != 1 || created[0] != http.MethodPost {
		t.Errorf("expected one POST to the cached checklist, got %v", created)
	}
}

func TestTrelloAdapter_RemoveMarkerDeletesAction(t *testing.T) {
	a, mux := newTrelloFixture(t)
	mux.HandleFunc("/cards/c1/actions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a9","data":{"text":"external_id=of-abc"}}]`))
	})
	deleted := false
	mux.HandleFunc("/actions/a9", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("unexpected method %s", r.Method)
		}
		deleted = true
		_, _ = w.Write([]byte(`{}`))
	})

	item := &models.RemoteItem{ID: "c1", Marker: models.MarkerPrefix + "of-abc"}
	if err := a.RemoveMarker(context.Background(), item); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if !deleted {
		t.Error("expected marker action deleted")
	}
	if item.Marker != "" {
		t.Error("expected marker cleared on item")
	}
}
