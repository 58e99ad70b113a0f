package board

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

const kanbanFlowBaseURL = "https://kanbanflow.com/api/v1"

// KanbanFlowAdapter talks to the KanbanFlow REST API. Correlation markers
// live in task comments, which KanbanFlow only exposes through a per-task
// sub-resource, so this adapter implements AnnotationFetcher.
type KanbanFlowAdapter struct {
	transport *transport

	// defaultSwimlane is the first swimlane of the board, resolved
	// lazily; new tasks are created there.
	defaultSwimlane string
}

// NewKanbanFlowAdapter creates an adapter authenticated with the board's
// API token.
func NewKanbanFlowAdapter(cfg models.BoardConfig) *KanbanFlowAdapter {
	t := newTransport("kanbanflow", kanbanFlowBaseURL, cfg.RequestsPerSecond)
	basic := base64.StdEncoding.EncodeToString([]byte("apiToken:" + cfg.Token))
	t.setHeader("Authorization", "Basic "+basic)
	t.setHeader("Accept-Encoding", "gzip")
	return &KanbanFlowAdapter{transport: t}
}

// Name implements Adapter.
func (a *KanbanFlowAdapter) Name() string { return "kanbanflow" }

// Stats implements Adapter.
func (a *KanbanFlowAdapter) Stats() CallStats { return a.transport.stats() }

type kfBoardDetails struct {
	Columns []struct {
		UniqueID string `json:"uniqueId"`
		Name     string `json:"name"`
	} `json:"columns"`
	Swimlanes []struct {
		UniqueID string `json:"uniqueId"`
		Name     string `json:"name"`
	} `json:"swimlanes"`
}

type kfColumn struct {
	ColumnID   string   `json:"columnId"`
	ColumnName string   `json:"columnName"`
	Tasks      []kfTask `json:"tasks"`
}

type kfTask struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	ColumnID    string `json:"columnId"`
}

type kfComment struct {
	ID   string `json:"_id"`
	Text string `json:"text"`
}

type kfSubtask struct {
	Name     string `json:"name"`
	Finished bool   `json:"finished"`
}

// FetchAllItems implements Adapter. KanbanFlow returns tasks grouped by
// column from a single endpoint; markers are left unresolved here because
// comments need one request per task.
func (a *KanbanFlowAdapter) FetchAllItems(ctx context.Context) ([]BucketItems, error) {
	data, status, err := a.transport.get(ctx, "/tasks")
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "fetching tasks"); err != nil {
		return nil, err
	}

	var columns []kfColumn
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, fmt.Errorf("decoding kanbanflow tasks: %w", err)
	}

	out := make([]BucketItems, 0, len(columns))
	for i, col := range columns {
		bucket := BucketItems{
			Bucket: models.Bucket{
				ID:          col.ColumnID,
				Name:        col.ColumnName,
				Index:       i,
				ParentIndex: -1,
			},
		}
		for _, task := range col.Tasks {
			bucket.Items = append(bucket.Items, &models.RemoteItem{
				ID:          task.ID,
				Title:       task.Name,
				Description: task.Description,
				BucketID:    col.ColumnID,
				Color:       task.Color,
			})
		}
		out = append(out, bucket)
	}
	return out, nil
}

// ItemAnnotations implements AnnotationFetcher by reading the task's
// comments sub-resource.
func (a *KanbanFlowAdapter) ItemAnnotations(ctx context.Context, item *models.RemoteItem) ([]string, error) {
	comments, err := a.fetchComments(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(comments))
	for _, c := range comments {
		texts = append(texts, c.Text)
	}
	return texts, nil
}

func (a *KanbanFlowAdapter) fetchComments(ctx context.Context, taskID string) ([]kfComment, error) {
	data, status, err := a.transport.get(ctx, "/tasks/"+taskID+"/comments")
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "fetching comments"); err != nil {
		return nil, err
	}
	var comments []kfComment
	if err := json.Unmarshal(data, &comments); err != nil {
		return nil, fmt.Errorf("decoding comments for task %s: %w", taskID, err)
	}
	return comments, nil
}

// CreateItem implements Adapter.
func (a *KanbanFlowAdapter) CreateItem(ctx context.Context, req CreateItemRequest) (*models.RemoteItem, error) {
	swimlane, err := a.swimlane(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"name":        req.Title,
		"columnId":    req.BucketID,
		"description": req.Description,
	}
	if swimlane != "" {
		payload["swimlaneId"] = swimlane
	}
	if req.Color != "" {
		payload["color"] = req.Color
	}

	data, status, err := a.transport.send(ctx, "POST", "/tasks", payload)
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "creating task"); err != nil {
		return nil, err
	}

	var created struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("decoding create response: %w", err)
	}

	return &models.RemoteItem{
		ID:          created.TaskID,
		Title:       req.Title,
		Description: req.Description,
		BucketID:    req.BucketID,
		Color:       req.Color,
	}, nil
}

// AttachMarker implements Adapter by posting a comment.
func (a *KanbanFlowAdapter) AttachMarker(ctx context.Context, item *models.RemoteItem, identifier string) error {
	marker := models.MarkerPrefix + identifier
	_, status, err := a.transport.send(ctx, "POST", "/tasks/"+item.ID+"/comments", map[string]string{"text": marker})
	if err != nil {
		return err
	}
	if err := a.transport.checkStatus(status, "attaching marker"); err != nil {
		return err
	}
	item.Marker = marker
	return nil
}

// CreateSubItem implements Adapter.
func (a *KanbanFlowAdapter) CreateSubItem(ctx context.Context, item *models.RemoteItem, name string, finished bool) error {
	payload := kfSubtask{Name: name, Finished: finished}
	_, status, err := a.transport.send(ctx, "POST", "/tasks/"+item.ID+"/subtasks", payload)
	if err != nil {
		return err
	}
	return a.transport.checkStatus(status, "creating subtask")
}

// UpdateItem implements Adapter; only dirty fields are sent.
func (a *KanbanFlowAdapter) UpdateItem(ctx context.Context, item *models.RemoteItem, update models.ItemUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	payload := map[string]any{}
	if update.Title != nil {
		payload["name"] = *update.Title
	}
	if update.Description != nil {
		payload["description"] = *update.Description
	}
	_, status, err := a.transport.send(ctx, "POST", "/tasks/"+item.ID, payload)
	if err != nil {
		return err
	}
	return a.transport.checkStatus(status, "updating task")
}

// ListSubItemNames implements Adapter.
func (a *KanbanFlowAdapter) ListSubItemNames(ctx context.Context, item *models.RemoteItem) (map[string]bool, error) {
	data, status, err := a.transport.get(ctx, "/tasks/"+item.ID+"/subtasks")
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "fetching subtasks"); err != nil {
		return nil, err
	}
	var subtasks []kfSubtask
	if err := json.Unmarshal(data, &subtasks); err != nil {
		return nil, fmt.Errorf("decoding subtasks for task %s: %w", item.ID, err)
	}
	names := make(map[string]bool, len(subtasks))
	for _, st := range subtasks {
		names[st.Name] = true
	}
	return names, nil
}

// RemoveMarker implements Adapter by deleting the marker comment.
func (a *KanbanFlowAdapter) RemoveMarker(ctx context.Context, item *models.RemoteItem) error {
	comments, err := a.fetchComments(ctx, item.ID)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if _, ok := parseMarker(c.Text); !ok {
			continue
		}
		_, status, err := a.transport.send(ctx, "DELETE", "/tasks/"+item.ID+"/comments/"+c.ID, nil)
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

// ListBuckets implements BucketLister from the board details endpoint.
// KanbanFlow columns are flat; every bucket is a root.
func (a *KanbanFlowAdapter) ListBuckets(ctx context.Context) (*LaneTable, error) {
	details, err := a.boardDetails(ctx)
	if err != nil {
		return nil, err
	}
	table := &LaneTable{}
	for i, col := range details.Columns {
		table.Add(models.Bucket{
			ID:          col.UniqueID,
			Name:        col.Name,
			Index:       i,
			ParentIndex: -1,
		})
	}
	return table, nil
}

// ClearBoard implements Clearer by deleting every task in every column.
func (a *KanbanFlowAdapter) ClearBoard(ctx context.Context) (int, error) {
	buckets, err := a.FetchAllItems(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, bucket := range buckets {
		for _, item := range bucket.Items {
			_, status, err := a.transport.send(ctx, "DELETE", "/tasks/"+item.ID, nil)
			if err != nil {
				return deleted, err
			}
			if err := a.transport.checkStatus(status, "deleting task"); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}

func (a *KanbanFlowAdapter) swimlane(ctx context.Context) (string, error) {
	if a.defaultSwimlane != "" {
		return a.defaultSwimlane, nil
	}
	details, err := a.boardDetails(ctx)
	if err != nil {
		return "", err
	}
	if len(details.Swimlanes) > 0 {
		a.defaultSwimlane = details.Swimlanes[0].UniqueID
	}
	return a.defaultSwimlane, nil
}

func (a *KanbanFlowAdapter) boardDetails(ctx context.Context) (*kfBoardDetails, error) {
	data, status, err := a.transport.get(ctx, "/board")
	if err != nil {
		return nil, err
	}
	if err := a.transport.checkStatus(status, "fetching board details"); err != nil {
		return nil, err
	}
	var details kfBoardDetails
	if err := json.Unmarshal(data, &details); err != nil {
		return nil, fmt.Errorf("decoding board details: %w", err)
	}
	return &details, nil
}
