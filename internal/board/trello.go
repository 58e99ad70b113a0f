package board

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

const trelloBaseURL = "https://api.trello.com/1"

// TrelloAdapter talks to the Trello REST API. Markers live in card
// comments, fetched per card through the actions sub-resource, so this
// adapter implements AnnotationFetcher. Sub-items are kept in a single
// checklist per card.
type TrelloAdapter struct {
	transport *transport
	boardID   string
	creds     string // key/token query string appended to every URL

	// labels maps label name to label id, fetched lazily; card types map
	// onto Trello labels.
	labels map[string]string

	// checklists caches the sync checklist id per card.
	checklists map[string]string
}

// NewTrelloAdapter creates an adapter authenticated with an app key and
// member token.
func NewTrelloAdapter(cfg models.BoardConfig) *TrelloAdapter {
	creds := url.Values{}
	creds.Set("key", cfg.AppKey)
	creds.Set("token", cfg.Token)
	return &TrelloAdapter{
		transport:  newTransport("trello", trelloBaseURL, cfg.RequestsPerSecond),
		boardID:    cfg.BoardID,
		creds:      creds.Encode(),
		checklists: make(map[string]string),
	}
}

// Name implements Adapter.
func (a *TrelloAdapter) Name() string { return "trello" }

// Stats implements Adapter.
func (a *TrelloAdapter) Stats() CallStats { return a.transport.stats() }

// withCreds appends the key/token pair to a request path.
func (a *TrelloAdapter) withCreds(path string) string {
	sep := "?"
	for _, r := range path {
		if r == '?' {
			sep = "&"
			break
		}
	}
	return path + sep + a.creds
}

type trelloList struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Pos  float64 `json:"pos"`
}

type trelloCard struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Desc   string `json:"desc"`
	IDList string `json:"idList"`
	Closed bool   `json:"closed"`
}

type trelloAction struct {
	ID   string `json:"id"`
	Data struct {
		Text string `json:"text"`
	} `json:"data"`
}

type trelloChecklist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CheckItems []struct {
		Name  string `json:"name"`
		State string `json:"state"`
	} `json:"checkItems"`
}

// FetchAllItems implements Adapter. Closed (archived) cards are skipped.
func (a *TrelloAdapter) FetchAllItems(ctx context.Context) ([]BucketItems, error) {
	lists, err := a.fetchLists(ctx)
	if err != nil {
		return nil, err
	}

	data, status, err := a.transport.get(ctx, a.withCreds("/boards/"+a.boardID+"/cards"))
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "fetching cards"); err != nil {
		return nil, err
	}
	var cards []trelloCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("decoding trello cards: %w", err)
	}

	byList := make(map[string][]*models.RemoteItem)
	for _, card := range cards {
		if card.Closed {
			continue
		}
		byList[card.IDList] = append(byList[card.IDList], &models.RemoteItem{
			ID:          card.ID,
			Title:       card.Name,
			Description: card.Desc,
			BucketID:    card.IDList,
		})
	}

	out := make([]BucketItems, 0, len(lists))
	for i, list := range lists {
		out = append(out, BucketItems{
			Bucket: models.Bucket{
				ID:          list.ID,
				Name:        list.Name,
				Index:       i,
				ParentIndex: -1,
			},
			Items: byList[list.ID],
		})
	}
	return out, nil
}

// ItemAnnotations implements AnnotationFetcher by reading the card's
// comment actions.
func (a *TrelloAdapter) ItemAnnotations(ctx context.Context, item *models.RemoteItem) ([]string, error) {
	actions, err := a.fetchComments(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(actions))
	for _, action := range actions {
		texts = append(texts, action.Data.Text)
	}
	return texts, nil
}

func (a *TrelloAdapter) fetchComments(ctx context.Context, cardID string) ([]trelloAction, error) {
	path := a.withCreds("/cards/" + cardID + "/actions?filter=commentCard")
	data, status, err := a.transport.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "fetching card comments"); err != nil {
		return nil, err
	}
	var actions []trelloAction
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("decoding comments for card %s: %w", cardID, err)
	}
	return actions, nil
}

// CreateItem implements Adapter. req.Color names a Trello label; unknown
// labels are skipped rather than failing the create.
func (a *TrelloAdapter) CreateItem(ctx context.Context, req CreateItemRequest) (*models.RemoteItem, error) {
	payload := map[string]any{
		"idList": req.BucketID,
		"name":   req.Title,
		"desc":   req.Description,
	}
	data, status, err := a.transport.send(ctx, "POST", a.withCreds("/cards"), payload)
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "creating card"); err != nil {
		return nil, err
	}

	var created trelloCard
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("decoding created card: %w", err)
	}

	item := &models.RemoteItem{
		ID:          created.ID,
		Title:       req.Title,
		Description: req.Description,
		BucketID:    req.BucketID,
	}

	if req.Color != "" {
		if err := a.addLabel(ctx, item, req.Color); err != nil {
			a.transport.log.Infof("label %q not applied to card %s: %v", req.Color, item.ID, err)
		}
	}
	return item, nil
}

// AttachMarker implements Adapter by posting a comment.
func (a *TrelloAdapter) AttachMarker(ctx context.Context, item *models.RemoteItem, identifier string) error {
	marker := models.MarkerPrefix + identifier
	path := a.withCreds("/cards/" + item.ID + "/actions/comments?text=" + url.QueryEscape(marker))
	_, status, err := a.transport.send(ctx, "POST", path, nil)
	if err != nil {
		return err
	}
	if err := a.transport.checkStatus(status, "attaching marker"); err != nil {
		return err
	}
	item.Marker = marker
	return nil
}

// CreateSubItem implements Adapter, adding a check item to the card's
// sync checklist (created on first use).
func (a *TrelloAdapter) CreateSubItem(ctx context.Context, item *models.RemoteItem, name string, finished bool) error {
	checklistID, err := a.syncChecklist(ctx, item)
	if err != nil {
		return err
	}
	payload := map[string]any{"name": name, "checked": finished}
	_, status, err := a.transport.send(ctx, "POST", a.withCreds("/checklists/"+checklistID+"/checkItems"), payload)
	if err != nil {
		return err
	}
	return a.transport.checkStatus(status, "creating check item")
}

// UpdateItem implements Adapter.
func (a *TrelloAdapter) UpdateItem(ctx context.Context, item *models.RemoteItem, update models.ItemUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	payload := map[string]any{}
	if update.Title != nil {
		payload["name"] = *update.Title
	}
	if update.Description != nil {
		payload["desc"] = *update.Description
	}
	_, status, err := a.transport.send(ctx, "PUT", a.withCreds("/cards/"+item.ID), payload)
	if err != nil {
		return err
	}
	return a.transport.checkStatus(status, "updating card")
}

// ListSubItemNames implements Adapter by collecting check item names
// across all of the card's checklists.
func (a *TrelloAdapter) ListSubItemNames(ctx context.Context, item *models.RemoteItem) (map[string]bool, error) {
	checklists, err := a.fetchChecklists(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool)
	for _, cl := range checklists {
		if cl.Name == syncChecklistName {
			a.checklists[item.ID] = cl.ID
		}
		for _, ci := range cl.CheckItems {
			names[ci.Name] = true
		}
	}
	return names, nil
}

// RemoveMarker implements Adapter by deleting the marker comment action.
func (a *TrelloAdapter) RemoveMarker(ctx context.Context, item *models.RemoteItem) error {
	actions, err := a.fetchComments(ctx, item.ID)
	if err != nil {
		return err
	}
	for _, action := range actions {
		if _, ok := parseMarker(action.Data.Text); !ok {
			continue
		}
		_, status, err := a.transport.send(ctx, "DELETE", a.withCreds("/actions/"+action.ID), nil)
		if err != nil {
			return err
		}
		if err := a.transport.checkStatus(status, "deleting marker comment"); err != nil {
			return err
		}
		item.Marker = ""
		return nil
	}
	return nil
}

// ListBuckets implements BucketLister. Trello lists are flat.
func (a *TrelloAdapter) ListBuckets(ctx context.Context) (*LaneTable, error) {
	lists, err := a.fetchLists(ctx)
	if err != nil {
		return nil, err
	}
	table := &LaneTable{}
	for i, list := range lists {
		table.Add(models.Bucket{
			ID:          list.ID,
			Name:        list.Name,
			Index:       i,
			ParentIndex: -1,
		})
	}
	return table, nil
}

// ClearBoard implements Clearer by deleting every open card.
func (a *TrelloAdapter) ClearBoard(ctx context.Context) (int, error) {
	buckets, err := a.FetchAllItems(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, bucket := range buckets {
		for _, item := range bucket.Items {
			_, status, err := a.transport.send(ctx, "DELETE", a.withCreds("/cards/"+item.ID), nil)
			if err != nil {
				return deleted, err
			}
			if err := a.transport.checkStatus(status, "deleting card"); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}

const syncChecklistName = "Subtasks"

func (a *TrelloAdapter) syncChecklist(ctx context.Context, item *models.RemoteItem) (string, error) {
	if id, ok := a.checklists[item.ID]; ok {
		return id, nil
	}

	checklists, err := a.fetchChecklists(ctx, item.ID)
	if err != nil {
		return "", err
	}
	for _, cl := range checklists {
		if cl.Name == syncChecklistName {
			a.checklists[item.ID] = cl.ID
			return cl.ID, nil
		}
	}

	payload := map[string]any{"idCard": item.ID, "name": syncChecklistName}
	data, status, err := a.transport.send(ctx, "POST", a.withCreds("/checklists"), payload)
	if err != nil {
		return "", err
	}
	if err := a.transport.checkStatus(status, "creating checklist"); err != nil {
		return "", err
	}
	var created trelloChecklist
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("decoding created checklist: %w", err)
	}
	a.checklists[item.ID] = created.ID
	return created.ID, nil
}

func (a *TrelloAdapter) fetchChecklists(ctx context.Context, cardID string) ([]trelloChecklist, error) {
	data, status, err := a.transport.get(ctx, a.withCreds("/cards/"+cardID+"/checklists"))
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "fetching checklists"); err != nil {
		return nil, err
	}
	var checklists []trelloChecklist
	if err := json.Unmarshal(data, &checklists); err != nil {
		return nil, fmt.Errorf("decoding checklists for card %s: %w", cardID, err)
	}
	return checklists, nil
}

func (a *TrelloAdapter) fetchLists(ctx context.Context) ([]trelloList, error) {
	data, status, err := a.transport.get(ctx, a.withCreds("/boards/"+a.boardID+"/lists"))
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "fetching lists"); err != nil {
		return nil, err
	}
	var lists []trelloList
	if err := json.Unmarshal(data, &lists); err != nil {
		return nil, fmt.Errorf("decoding trello lists: %w", err)
	}
	return lists, nil
}

// addLabel resolves a label by name and applies it to the card.
func (a *TrelloAdapter) addLabel(ctx context.Context, item *models.RemoteItem, name string) error {
	if a.labels == nil {
		data, status, err := a.transport.get(ctx, a.withCreds("/boards/"+a.boardID+"/labels"))
		if err != nil {
			return err
		}
		if err := a.transport.checkStatus(status, "fetching labels"); err != nil {
			return err
		}
		var labels []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &labels); err != nil {
			return fmt.Errorf("decoding labels: %w", err)
		}
		a.labels = make(map[string]string, len(labels))
		for _, l := range labels {
			a.labels[l.Name] = l.ID
		}
	}

	labelID, ok := a.labels[name]
	if !ok {
		return fmt.Errorf("label %q not configured on board", name)
	}
	payload := map[string]any{"value": labelID}
	_, status, err := a.transport.send(ctx, "POST", a.withCreds("/cards/"+item.ID+"/idLabels"), payload)
	if err != nil {
		return err
	}
	return a.transport.checkStatus(status, "adding label")
}
