package board

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// LeanKitAdapter talks to the LeanKit kanban API. Unlike the other
// backends, LeanKit stores the correlation marker in the card's
// ExternalCardID field, so markers come back inline with FetchAllItems and
// no per-item annotation fetch is needed. Lanes nest arbitrarily deep and
// are flattened into a LaneTable.
type LeanKitAdapter struct {
	connector *lkConnector
	boardID   string

	// Lazily fetched board metadata.
	cachedDetails *lkBoardDetails
	cardTypes     map[string]string // type name -> type id
	defaultTypeID string

	// rawCards caches the full card JSON keyed by card id; LeanKit's
	// UpdateCard endpoint requires the complete card, not a delta.
	rawCards map[string]map[string]any
}

// NewLeanKitAdapter creates an adapter for the configured account/board.
func NewLeanKitAdapter(cfg models.BoardConfig) *LeanKitAdapter {
	rps := cfg.RequestsPerSecond
	if rps == 0 {
		// LeanKit throttles aggressively; the connector historically
		// paced requests to one per second.
		rps = 1
	}
	return &LeanKitAdapter{
		connector: newLKConnector(cfg.Account, cfg.Email, cfg.Password, rps),
		boardID:   cfg.BoardID,
		rawCards:  make(map[string]map[string]any),
	}
}

// Name implements Adapter.
func (a *LeanKitAdapter) Name() string { return "leankit" }

// Stats implements Adapter.
func (a *LeanKitAdapter) Stats() CallStats { return a.connector.transport.stats() }

type lkLane struct {
	ID                int64    `json:"Id"`
	Title             string   `json:"Title"`
	Index             int      `json:"Index"`
	ParentLaneID      int64    `json:"ParentLaneId"`
	IsDefaultDropLane bool     `json:"IsDefaultDropLane"`
	Cards             []lkCard `json:"Cards"`
}

type lkCard struct {
	ID             int64  `json:"Id"`
	Title          string `json:"Title"`
	Description    string `json:"Description"`
	ExternalCardID string `json:"ExternalCardID"`
	TypeID         int64  `json:"TypeId"`
	LaneID         int64  `json:"LaneId"`
}

type lkCardType struct {
	ID        int64  `json:"Id"`
	Name      string `json:"Name"`
	ColorHex  string `json:"ColorHex"`
	IsDefault bool   `json:"IsDefault"`
}

type lkBoardDetails struct {
	Lanes     []lkLane     `json:"Lanes"`
	CardTypes []lkCardType `json:"CardTypes"`
}

// FetchAllItems implements Adapter. Board lanes and the backlog are
// fetched together; markers are populated inline from ExternalCardID.
func (a *LeanKitAdapter) FetchAllItems(ctx context.Context) ([]BucketItems, error) {
	details, err := a.boardDetails(ctx)
	if err != nil {
		return nil, err
	}

	lanes := details.Lanes
	backlog, err := a.backlogLanes(ctx)
	if err != nil {
		return nil, err
	}
	lanes = append(lanes, backlog...)

	out := make([]BucketItems, 0, len(lanes))
	for _, lane := range lanes {
		laneID := strconv.FormatInt(lane.ID, 10)
		bucket := BucketItems{
			Bucket: models.Bucket{
				ID:          laneID,
				Name:        lane.Title,
				Index:       lane.Index,
				ParentIndex: -1,
			},
			Items: a.convertCards(lane.Cards, laneID),
		}
		out = append(out, bucket)
	}
	return out, nil
}

func (a *LeanKitAdapter) convertCards(cards []lkCard, laneID string) []*models.RemoteItem {
	var items []*models.RemoteItem
	for _, card := range cards {
		item := &models.RemoteItem{
			ID:          strconv.FormatInt(card.ID, 10),
			Title:       card.Title,
			Description: card.Description,
			BucketID:    laneID,
		}
		if card.ExternalCardID != "" {
			item.Marker = models.MarkerPrefix + card.ExternalCardID
		}
		a.rawCards[item.ID] = map[string]any{
			"Id":             card.ID,
			"Title":          card.Title,
			"Description":    card.Description,
			"ExternalCardID": card.ExternalCardID,
			"TypeId":         card.TypeID,
			"LaneId":         card.LaneID,
		}
		items = append(items, item)
	}
	return items
}

// CreateItem implements Adapter. req.Color names a LeanKit card type;
// unknown names fall back to the board's default type.
func (a *LeanKitAdapter) CreateItem(ctx context.Context, req CreateItemRequest) (*models.RemoteItem, error) {
	if _, err := a.boardDetails(ctx); err != nil {
		return nil, err
	}

	typeID := a.defaultTypeID
	if req.Color != "" {
		if id, ok := a.cardTypes[req.Color]; ok {
			typeID = id
		}
	}

	payload := map[string]any{
		"Title":                  req.Title,
		"Description":            req.Description,
		"TypeId":                 jsonNumber(typeID),
		"IsBlocked":              "false",
		"UserWipOverrideComment": nil,
	}

	url := fmt.Sprintf("/Board/%s/AddCard/Lane/%s/Position/0", a.boardID, req.BucketID)
	envelope, err := a.connector.post(ctx, url, payload)
	if err != nil {
		return nil, err
	}

	var created struct {
		CardID int64 `json:"CardId"`
	}
	if err := envelope.first(&created); err != nil {
		return nil, fmt.Errorf("decoding AddCard reply: %w", err)
	}

	item := &models.RemoteItem{
		ID:          strconv.FormatInt(created.CardID, 10),
		Title:       req.Title,
		Description: req.Description,
		BucketID:    req.BucketID,
	}
	payload["Id"] = created.CardID
	payload["LaneId"] = jsonNumber(req.BucketID)
	a.rawCards[item.ID] = payload
	return item, nil
}

// AttachMarker implements Adapter by writing the card's ExternalCardID.
func (a *LeanKitAdapter) AttachMarker(ctx context.Context, item *models.RemoteItem, identifier string) error {
	if err := a.updateCard(ctx, item, map[string]any{"ExternalCardID": identifier}); err != nil {
		return err
	}
	item.Marker = models.MarkerPrefix + identifier
	return nil
}

// CreateSubItem implements Adapter by adding a card to the item's
// taskboard. LeanKit taskboard cards have no finished flag; the hint is
// ignored.
func (a *LeanKitAdapter) CreateSubItem(ctx context.Context, item *models.RemoteItem, name string, finished bool) error {
	if _, err := a.boardDetails(ctx); err != nil {
		return err
	}
	payload := map[string]any{
		"Title":                  name,
		"TypeId":                 jsonNumber(a.defaultTypeID),
		"IsBlocked":              "false",
		"UserWipOverrideComment": nil,
	}
	url := fmt.Sprintf("/v1/Board/%s/card/%s/tasks/lane/0/position/0", a.boardID, item.ID)
	_, err := a.connector.post(ctx, url, payload)
	return err
}

// UpdateItem implements Adapter. The UpdateCard endpoint needs the full
// card, so the cached raw card is overlaid with the dirty fields.
func (a *LeanKitAdapter) UpdateItem(ctx context.Context, item *models.RemoteItem, update models.ItemUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	fields := map[string]any{}
	if update.Title != nil {
		fields["Title"] = *update.Title
	}
	if update.Description != nil {
		fields["Description"] = *update.Description
	}
	return a.updateCard(ctx, item, fields)
}

// ListSubItemNames implements Adapter by walking the card's taskboard
// lanes.
func (a *LeanKitAdapter) ListSubItemNames(ctx context.Context, item *models.RemoteItem) (map[string]bool, error) {
	url := fmt.Sprintf("/v1/Board/%s/card/%s/taskboard", a.boardID, item.ID)
	envelope, err := a.connector.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var taskboard struct {
		Lanes []lkLane `json:"Lanes"`
	}
	if err := envelope.first(&taskboard); err != nil {
		return nil, fmt.Errorf("decoding taskboard for card %s: %w", item.ID, err)
	}

	names := make(map[string]bool)
	for _, lane := range taskboard.Lanes {
		for _, card := range lane.Cards {
			names[card.Title] = true
		}
	}
	return names, nil
}

// RemoveMarker implements Adapter by clearing ExternalCardID.
func (a *LeanKitAdapter) RemoveMarker(ctx context.Context, item *models.RemoteItem) error {
	if err := a.updateCard(ctx, item, map[string]any{"ExternalCardID": ""}); err != nil {
		return err
	}
	item.Marker = ""
	return nil
}

// ListBuckets implements BucketLister, flattening the nested lane tree
// into a LaneTable with parent indexes.
func (a *LeanKitAdapter) ListBuckets(ctx context.Context) (*LaneTable, error) {
	details, err := a.boardDetails(ctx)
	if err != nil {
		return nil, err
	}

	table := &LaneTable{}
	indexByLaneID := make(map[int64]int, len(details.Lanes))
	for _, lane := range details.Lanes {
		idx := table.Add(models.Bucket{
			ID:          strconv.FormatInt(lane.ID, 10),
			Name:        lane.Title,
			Index:       lane.Index,
			ParentIndex: -1,
			DefaultDrop: lane.IsDefaultDropLane,
		})
		indexByLaneID[lane.ID] = idx
	}
	for i, lane := range details.Lanes {
		if parent, ok := indexByLaneID[lane.ParentLaneID]; ok && lane.ParentLaneID != 0 {
			table.Buckets[i].ParentIndex = parent
		}
	}
	return table, nil
}

func (a *LeanKitAdapter) updateCard(ctx context.Context, item *models.RemoteItem, fields map[string]any) error {
	card, ok := a.rawCards[item.ID]
	if !ok {
		card = map[string]any{"Id": jsonNumber(item.ID), "Title": item.Title, "Description": item.Description}
	}
	data := make(map[string]any, len(card)+len(fields)+1)
	for k, v := range card {
		data[k] = v
	}
	for k, v := range fields {
		data[k] = v
	}
	data["UserWipOverrideComment"] = nil

	url := fmt.Sprintf("/Board/%s/UpdateCard", a.boardID)
	if _, err := a.connector.post(ctx, url, data); err != nil {
		return err
	}
	a.rawCards[item.ID] = data
	return nil
}

func (a *LeanKitAdapter) boardDetails(ctx context.Context) (*lkBoardDetails, error) {
	if a.cardTypes != nil {
		return a.cachedDetails, nil
	}

	envelope, err := a.connector.get(ctx, "/Boards/"+a.boardID)
	if err != nil {
		return nil, err
	}
	var details lkBoardDetails
	if err := envelope.first(&details); err != nil {
		return nil, fmt.Errorf("decoding board %s: %w", a.boardID, err)
	}

	a.cardTypes = make(map[string]string, len(details.CardTypes))
	for _, ct := range details.CardTypes {
		id := strconv.FormatInt(ct.ID, 10)
		a.cardTypes[ct.Name] = id
		if ct.IsDefault {
			a.defaultTypeID = id
		}
	}
	a.cachedDetails = &details
	return &details, nil
}

func (a *LeanKitAdapter) backlogLanes(ctx context.Context) ([]lkLane, error) {
	envelope, err := a.connector.get(ctx, "/Board/"+a.boardID+"/Backlog")
	if err != nil {
		return nil, err
	}
	var lanes []lkLane
	if len(envelope.ReplyData) > 0 {
		if err := envelope.first(&lanes); err != nil {
			return nil, fmt.Errorf("decoding backlog: %w", err)
		}
	}
	return lanes, nil
}

// jsonNumber converts a numeric id string back to an int64 for backends
// that insist on numeric JSON ids.
func jsonNumber(id string) int64 {
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}
