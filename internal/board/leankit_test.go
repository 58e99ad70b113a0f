package board

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

func lkReply(code int, data any) string {
	raw, _ := json.Marshal(data)
	envelope := map[string]any{
		"ReplyCode": code,
		"ReplyText": "",
		"ReplyData": []json.RawMessage{raw},
	}
	out, _ := json.Marshal(envelope)
	return string(out)
}

func newLeanKitFixture(t *testing.T) (*LeanKitAdapter, *http.ServeMux) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := NewLeanKitAdapter(models.BoardConfig{
		Account:           "acme",
		Email:             "me@example.com",
		Password:          "secret",
		BoardID:           "42",
		RequestsPerSecond: 1000,
	})
	a.connector.transport.baseURL = srv.URL
	return a, mux
}

func boardDetailsReply() string {
	return lkReply(replyRetrievalSuccess, lkBoardDetails{
		Lanes: []lkLane{
			{
				ID:    100,
				Title: "Ready",
				Index: 0,
				Cards: []lkCard{
					{ID: 7, Title: "write report", ExternalCardID: "of-aaa", TypeID: 1},
					{ID: 8, Title: "manual card"},
				},
			},
			{ID: 101, Title: "Doing", Index: 1, ParentLaneID: 100},
		},
		CardTypes: []lkCardType{
			{ID: 1, Name: "Task", IsDefault: true},
			{ID: 2, Name: "Errand"},
		},
	})
}

func TestLeanKitAdapter_FetchAllItemsInlineMarkers(t *testing.T) {
	a, mux := newLeanKitFixture(t)
	mux.HandleFunc("/Boards/42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(boardDetailsReply()))
	})
	mux.HandleFunc("/Board/42/Backlog", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(lkReply(replyRetrievalSuccess, []lkLane{
			{ID: 99, Title: "Backlog", Index: 0},
		})))
	})

	buckets, err := a.FetchAllItems(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("expected 3 lanes (2 board + backlog), got %d", len(buckets))
	}

	items := buckets[0].Items
	if len(items) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(items))
	}
	if items[0].Marker != models.MarkerPrefix+"of-aaa" {
		t.Errorf("expected inline marker from ExternalCardID, got %q", items[0].Marker)
	}
	if items[1].Marker != "" {
		t.Errorf("unmarked card must stay unmarked, got %q", items[1].Marker)
	}
}

func TestLeanKitAdapter_ThrottleIsUnavailable(t *testing.T) {
	a, mux := newLeanKitFixture(t)
	mux.HandleFunc("/Boards/42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(lkReply(replyThrottleWait, map[string]any{})))
	})

	_, err := a.boardDetails(context.Background())
	if err == nil {
		t.Fatal("expected error for throttle reply")
	}
	if !IsUnavailable(err) {
		t.Errorf("reply code 800 must classify as unavailable, got %v", err)
	}
}

func TestLeanKitAdapter_RejectionReply(t *testing.T) {
	a, mux := newLeanKitFixture(t)
	mux.HandleFunc("/Boards/42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(lkReply(replyUnauthorized, map[string]any{})))
	})

	_, err := a.boardDetails(context.Background())
	if !IsRejected(err) {
		t.Errorf("reply code 1000 must classify as rejection, got %v", err)
	}
}

func TestLeanKitAdapter_CreateItemResolvesCardType(t *testing.T) {
	a, mux := newLeanKitFixture(t)
	mux.HandleFunc("/Boards/42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(boardDetailsReply()))
	})

	var payload map[string]any
	mux.HandleFunc("/Board/42/AddCard/Lane/100/Position/0", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(lkReply(replyInsertSuccess, map[string]any{"CardId": 55})))
	})

	item, err := a.CreateItem(context.Background(), CreateItemRequest{
		Title:    "buy milk",
		BucketID: "100",
		Color:    "Errand",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if item.ID != "55" {
		t.Errorf("expected card id 55, got %q", item.ID)
	}
	if payload["TypeId"].(float64) != 2 {
		t.Errorf("expected Errand type id 2, got %v", payload["TypeId"])
	}
}

func TestLeanKitAdapter_AttachMarkerSendsFullCard(t *testing.T) {
	a, mux := newLeanKitFixture(t)
	mux.HandleFunc("/Boards/42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(boardDetailsReply()))
	})
	mux.HandleFunc("/Board/42/Backlog", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(lkReply(replyRetrievalSuccess, []lkLane{})))
	})

	var payload map[string]any
	mux.HandleFunc("/Board/42/UpdateCard", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(lkReply(replyUpdateSuccess, map[string]any{})))
	})

	buckets, err := a.FetchAllItems(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	card := buckets[0].Items[1] // "manual card", id 8

	if err := a.AttachMarker(context.Background(), card, "of-new"); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if payload["ExternalCardID"] != "of-new" {
		t.Errorf("expected ExternalCardID in update, got %v", payload["ExternalCardID"])
	}
	// UpdateCard needs the full card, not a delta.
	if payload["Title"] != "manual card" {
		t.Errorf("expected full card overlay, got %v", payload["Title"])
	}
}

func TestLeanKitAdapter_ListBucketsNesting(t *testing.T) {
	a, mux := newLeanKitFixture(t)
	mux.HandleFunc("/Boards/42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(boardDetailsReply()))
	})

	table, err := a.ListBuckets(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(table.Buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(table.Buckets))
	}

	ready, _ := table.Find("100")
	if ready.ParentIndex != -1 {
		t.Errorf("top lane should have no parent, got %d", ready.ParentIndex)
	}
	doing, _ := table.Find("101")
	if doing.ParentIndex != 0 {
		t.Errorf("nested lane should point at its parent, got %d", doing.ParentIndex)
	}
}
