package board

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

const zenkitBaseURL = "https://zenkit.com/api/v1"

// Element names the adapter looks for on the list. Stage categories act
// as buckets; the external-id text field carries the correlation marker
// inline, so no per-item annotation fetch is needed.
const (
	zkStageElementName      = "Stage"
	zkLabelElementName      = "Label"
	zkExternalIDElementName = "External ID"
	zkNotesElementName      = "Notes"
	zkChecklistElementName  = "Checklist"
)

// ZenkitAdapter talks to the Zenkit REST API. Zenkit lists are
// multi-dimensional: every field is an element addressed by UUID, and
// entry payloads key their values as "<elementUUID>_<kind>".
type ZenkitAdapter struct {
	transport *transport
	listID    string

	// elements is the list's schema, resolved lazily.
	elements *zkElements
}

// NewZenkitAdapter creates an adapter authenticated with an API key.
func NewZenkitAdapter(cfg models.BoardConfig) *ZenkitAdapter {
	t := newTransport("zenkit", zenkitBaseURL, cfg.RequestsPerSecond)
	t.setHeader("Zenkit-API-Key", cfg.Token)
	return &ZenkitAdapter{
		transport: t,
		listID:    cfg.ListID,
	}
}

// Name implements Adapter.
func (a *ZenkitAdapter) Name() string { return "zenkit" }

// Stats implements Adapter.
func (a *ZenkitAdapter) Stats() CallStats { return a.transport.stats() }

type zkCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type zkElement struct {
	ID          int64  `json:"id"`
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	IsPrimary   bool   `json:"isPrimary"`
	ElementData struct {
		PredefinedCategories []zkCategory `json:"predefinedCategories"`
	} `json:"elementData"`
}

// zkElements is the resolved schema of the synced list.
type zkElements struct {
	primary    *zkElement // primary text field, holds the title
	stage      *zkElement // categories element acting as the board's columns
	label      *zkElement // optional categories element for card types
	externalID *zkElement // text field carrying the correlation marker
	notes      *zkElement // optional text field for the description
	checklist  *zkElement // optional checklist element for sub-items
}

type zkEntry struct {
	ID     int64  `json:"id"`
	UUID   string `json:"uuid"`
	Fields map[string]json.RawMessage
}

// UnmarshalJSON captures the entry's fixed fields plus the dynamic
// per-element values.
func (e *zkEntry) UnmarshalJSON(data []byte) error {
	var fixed struct {
		ID   int64  `json:"id"`
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(data, &fixed); err != nil {
		return err
	}
	e.ID = fixed.ID
	e.UUID = fixed.UUID
	return json.Unmarshal(data, &e.Fields)
}

func (e *zkEntry) text(el *zkElement) string {
	if el == nil {
		return ""
	}
	raw, ok := e.Fields[el.UUID+"_text"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (e *zkEntry) categories(el *zkElement) []int64 {
	if el == nil {
		return nil
	}
	raw, ok := e.Fields[el.UUID+"_categories"]
	if !ok {
		return nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	return ids
}

type zkCheckItem struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

func (e *zkEntry) checklist(el *zkElement) []zkCheckItem {
	if el == nil {
		return nil
	}
	raw, ok := e.Fields[el.UUID+"_checklists"]
	if !ok {
		return nil
	}
	// Zenkit nests checklist items one level down.
	var lists []struct {
		Items []zkCheckItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &lists); err != nil {
		return nil
	}
	var items []zkCheckItem
	for _, l := range lists {
		items = append(items, l.Items...)
	}
	return items
}

// FetchAllItems implements Adapter. Entries are grouped by their stage
// category; the marker is read inline from the external-id field.
func (a *ZenkitAdapter) FetchAllItems(ctx context.Context) ([]BucketItems, error) {
	schema, err := a.schema(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := a.listEntries(ctx)
	if err != nil {
		return nil, err
	}

	byStage := make(map[int64][]*models.RemoteItem)
	for _, entry := range entries {
		item := &models.RemoteItem{
			ID:          strconv.FormatInt(entry.ID, 10),
			Title:       entry.text(schema.primary),
			Description: entry.text(schema.notes),
		}
		if marker := entry.text(schema.externalID); marker != "" {
			item.Marker = marker
		}
		stages := entry.categories(schema.stage)
		if len(stages) == 0 {
			continue
		}
		item.BucketID = strconv.FormatInt(stages[0], 10)
		byStage[stages[0]] = append(byStage[stages[0]], item)
	}

	cats := schema.stage.ElementData.PredefinedCategories
	out := make([]BucketItems, 0, len(cats))
	for i, cat := range cats {
		out = append(out, BucketItems{
			Bucket: models.Bucket{
				ID:          strconv.FormatInt(cat.ID, 10),
				Name:        cat.Name,
				Index:       i,
				ParentIndex: -1,
			},
			Items: byStage[cat.ID],
		})
	}
	return out, nil
}

// CreateItem implements Adapter. req.Color names a label category;
// unknown names are skipped.
func (a *ZenkitAdapter) CreateItem(ctx context.Context, req CreateItemRequest) (*models.RemoteItem, error) {
	schema, err := a.schema(ctx)
	if err != nil {
		return nil, err
	}

	stageID, err := strconv.ParseInt(req.BucketID, 10, 64)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("zenkit bucket id %q is not numeric", req.BucketID)}
	}

	payload := map[string]any{
		"sortOrder":                      "lowest",
		schema.primary.UUID + "_text":    req.Title,
		schema.stage.UUID + "_categories": []int64{stageID},
	}
	if schema.notes != nil && req.Description != "" {
		payload[schema.notes.UUID+"_text"] = req.Description
	}
	if schema.label != nil && req.Color != "" {
		if id, ok := findCategory(schema.label, req.Color); ok {
			payload[schema.label.UUID+"_categories"] = []int64{id}
		}
	}

	data, status, err := a.transport.send(ctx, "POST", "/lists/"+a.listID+"/entries", payload)
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "creating entry"); err != nil {
		return nil, err
	}

	var created zkEntry
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("decoding created entry: %w", err)
	}

	return &models.RemoteItem{
		ID:          strconv.FormatInt(created.ID, 10),
		Title:       req.Title,
		Description: req.Description,
		BucketID:    req.BucketID,
	}, nil
}

// AttachMarker implements Adapter by writing the external-id text field.
func (a *ZenkitAdapter) AttachMarker(ctx context.Context, item *models.RemoteItem, identifier string) error {
	schema, err := a.schema(ctx)
	if err != nil {
		return err
	}
	if schema.externalID == nil {
		return &ConfigError{Reason: fmt.Sprintf("zenkit list %s has no %q text element", a.listID, zkExternalIDElementName)}
	}
	marker := models.MarkerPrefix + identifier
	if err := a.updateEntry(ctx, item.ID, map[string]any{schema.externalID.UUID + "_text": marker}); err != nil {
		return err
	}
	item.Marker = marker
	return nil
}

// CreateSubItem implements Adapter, appending to the entry's checklist.
func (a *ZenkitAdapter) CreateSubItem(ctx context.Context, item *models.RemoteItem, name string, finished bool) error {
	schema, err := a.schema(ctx)
	if err != nil {
		return err
	}
	if schema.checklist == nil {
		a.transport.log.Infof("list %s has no checklist element; sub-item %q skipped", a.listID, name)
		return nil
	}

	entry, err := a.fetchEntry(ctx, item.ID)
	if err != nil {
		return err
	}
	items := entry.checklist(schema.checklist)
	items = append(items, zkCheckItem{Text: name, Checked: finished})

	payload := map[string]any{
		schema.checklist.UUID + "_checklists": []map[string]any{{"items": items}},
	}
	return a.updateEntry(ctx, item.ID, payload)
}

// UpdateItem implements Adapter.
func (a *ZenkitAdapter) UpdateItem(ctx context.Context, item *models.RemoteItem, update models.ItemUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	schema, err := a.schema(ctx)
	if err != nil {
		return err
	}
	payload := map[string]any{}
	if update.Title != nil {
		payload[schema.primary.UUID+"_text"] = *update.Title
	}
	if update.Description != nil && schema.notes != nil {
		payload[schema.notes.UUID+"_text"] = *update.Description
	}
	if len(payload) == 0 {
		return nil
	}
	return a.updateEntry(ctx, item.ID, payload)
}

// ListSubItemNames implements Adapter from the entry's checklist.
func (a *ZenkitAdapter) ListSubItemNames(ctx context.Context, item *models.RemoteItem) (map[string]bool, error) {
	schema, err := a.schema(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool)
	if schema.checklist == nil {
		return names, nil
	}
	entry, err := a.fetchEntry(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	for _, ci := range entry.checklist(schema.checklist) {
		names[ci.Text] = true
	}
	return names, nil
}

// RemoveMarker implements Adapter by blanking the external-id field.
func (a *ZenkitAdapter) RemoveMarker(ctx context.Context, item *models.RemoteItem) error {
	schema, err := a.schema(ctx)
	if err != nil {
		return err
	}
	if schema.externalID == nil {
		return nil
	}
	if err := a.updateEntry(ctx, item.ID, map[string]any{schema.externalID.UUID + "_text": ""}); err != nil {
		return err
	}
	item.Marker = ""
	return nil
}

// ListBuckets implements BucketLister. Stage categories are flat.
func (a *ZenkitAdapter) ListBuckets(ctx context.Context) (*LaneTable, error) {
	schema, err := a.schema(ctx)
	if err != nil {
		return nil, err
	}
	table := &LaneTable{}
	for i, cat := range schema.stage.ElementData.PredefinedCategories {
		table.Add(models.Bucket{
			ID:          strconv.FormatInt(cat.ID, 10),
			Name:        cat.Name,
			Index:       i,
			ParentIndex: -1,
		})
	}
	return table, nil
}

// ClearBoard implements Clearer by deleting every entry on the list.
func (a *ZenkitAdapter) ClearBoard(ctx context.Context) (int, error) {
	entries, err := a.listEntries(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, entry := range entries {
		path := "/lists/" + a.listID + "/entries/" + strconv.FormatInt(entry.ID, 10)
		_, status, err := a.transport.send(ctx, "DELETE", path, nil)
		if err != nil {
			return deleted, err
		}
		if err := a.transport.checkStatus(status, "deleting entry"); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (a *ZenkitAdapter) updateEntry(ctx context.Context, entryID string, fields map[string]any) error {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["updateAction"] = "replace"
	_, status, err := a.transport.send(ctx, "PUT", "/lists/"+a.listID+"/entries/"+entryID, payload)
	if err != nil {
		return err
	}
	return a.transport.checkStatus(status, "updating entry")
}

func (a *ZenkitAdapter) fetchEntry(ctx context.Context, entryID string) (*zkEntry, error) {
	data, status, err := a.transport.get(ctx, "/lists/"+a.listID+"/entries/"+entryID)
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "fetching entry"); err != nil {
		return nil, err
	}
	var entry zkEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding entry %s: %w", entryID, err)
	}
	return &entry, nil
}

func (a *ZenkitAdapter) listEntries(ctx context.Context) ([]zkEntry, error) {
	payload := map[string]any{"filter": map[string]any{}, "limit": 500}
	data, status, err := a.transport.send(ctx, "POST", "/lists/"+a.listID+"/entries/filter/list", payload)
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "listing entries"); err != nil {
		return nil, err
	}
	var reply struct {
		ListEntries []zkEntry `json:"listEntries"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("decoding entries: %w", err)
	}
	return reply.ListEntries, nil
}

// schema fetches and resolves the list's elements on first use.
func (a *ZenkitAdapter) schema(ctx context.Context) (*zkElements, error) {
	if a.elements != nil {
		return a.elements, nil
	}

	data, status, err := a.transport.get(ctx, "/lists/"+a.listID+"/elements")
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "fetching list elements"); err != nil {
		return nil, err
	}
	var elements []zkElement
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("decoding elements for list %s: %w", a.listID, err)
	}

	schema := &zkElements{}
	for i := range elements {
		el := &elements[i]
		switch {
		case el.IsPrimary:
			schema.primary = el
		case el.Name == zkStageElementName:
			schema.stage = el
		case el.Name == zkLabelElementName:
			schema.label = el
		case el.Name == zkExternalIDElementName:
			schema.externalID = el
		case el.Name == zkNotesElementName:
			schema.notes = el
		case el.Name == zkChecklistElementName:
			schema.checklist = el
		}
	}
	if schema.primary == nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("zenkit list %s has no primary text element", a.listID)}
	}
	if schema.stage == nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("zenkit list %s has no %q categories element", a.listID, zkStageElementName)}
	}
	a.elements = schema
	return schema, nil
}

func findCategory(el *zkElement, name string) (int64, bool) {
	for _, cat := range el.ElementData.PredefinedCategories {
		if cat.Name == name {
			return cat.ID, true
		}
	}
	return 0, false
}
