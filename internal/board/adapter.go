// Package board defines the capability interface the reconciliation engine
// drives, the correlation index built from a board's remote state, and one
// adapter per supported backend (LeanKit, KanbanFlow, Trello, Zenkit).
// Adapters translate the engine's abstract operations into backend-specific
// HTTP calls and normalise every failure into the error kinds in errors.go;
// the engine never sees a raw transport error.
package board

import (
	"context"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// BucketItems pairs a bucket with the remote items currently in it, in the
// order the backend returned them.
type BucketItems struct {
	Bucket models.Bucket
	Items  []*models.RemoteItem
}

// CreateItemRequest carries the fields of a new remote item.
type CreateItemRequest struct {
	Title       string
	BucketID    string
	Description string
	Color       string
}

// CallStats is the operational accounting an adapter keeps for one run.
type CallStats struct {
	Requests         int
	BytesTransferred int
}

// Adapter is the capability set a backend exposes to the reconciliation
// engine. Implementations keep no state beyond one run other than the
// HTTP session and call accounting.
type Adapter interface {
	// Name identifies the backend in logs and reports.
	Name() string

	// FetchAllItems returns every bucket on the board with its items.
	// Items whose correlation marker is stored inline (a card field
	// rather than a comment) come back with Marker already populated.
	FetchAllItems(ctx context.Context) ([]BucketItems, error)

	// CreateItem creates a remote item and returns it with the
	// provider-assigned id filled in.
	CreateItem(ctx context.Context, req CreateItemRequest) (*models.RemoteItem, error)

	// AttachMarker writes the correlation annotation onto an item. It is
	// called immediately after CreateItem so a crash in between leaves an
	// unlabeled orphan rather than a future duplicate.
	AttachMarker(ctx context.Context, item *models.RemoteItem, identifier string) error

	// CreateSubItem adds a named sub-item, optionally already finished.
	CreateSubItem(ctx context.Context, item *models.RemoteItem, name string, finished bool) error

	// UpdateItem pushes a partial update; only non-nil fields are sent.
	UpdateItem(ctx context.Context, item *models.RemoteItem, update models.ItemUpdate) error

	// ListSubItemNames returns the names of the item's existing
	// sub-items. Names are the only dedup key: remote sub-items carry no
	// markers.
	ListSubItemNames(ctx context.Context, item *models.RemoteItem) (map[string]bool, error)

	// RemoveMarker deletes the correlation annotation from an item. Used
	// only after close-and-regenerate outcomes, so the regenerated task's
	// new identifier gets a fresh card on the next run.
	RemoveMarker(ctx context.Context, item *models.RemoteItem) error

	// Stats returns the call accounting for this adapter instance.
	Stats() CallStats
}

// AnnotationFetcher is implemented by adapters whose backends expose item
// annotations only through a per-item sub-resource. The index builder
// fetches these with a bounded worker pool since the N+1 calls dominate
// run cost.
type AnnotationFetcher interface {
	// ItemAnnotations returns the item's free-text annotations in board
	// order.
	ItemAnnotations(ctx context.Context, item *models.RemoteItem) ([]string, error)
}

// BucketLister is implemented by adapters that can enumerate the board's
// bucket hierarchy without fetching cards.
type BucketLister interface {
	ListBuckets(ctx context.Context) (*LaneTable, error)
}

// Clearer is implemented by adapters that support wiping every item off
// the board. Clearing is an explicit maintenance operation, never part of
// a reconciliation run.
type Clearer interface {
	ClearBoard(ctx context.Context) (int, error)
}
