package board

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

const defaultFetchWorkers = 4

// CorrelationIndex maps source task identifiers to the remote items that
// carry their marker, plus the refs found in completed buckets. It is
// rebuilt from remote state on every run and discarded afterwards.
type CorrelationIndex struct {
	items      map[string]*models.RemoteItem
	completed  []models.CompletedRef
	duplicates []string
}

// Find returns the remote item carrying the given identifier's marker.
func (ix *CorrelationIndex) Find(identifier string) (*models.RemoteItem, bool) {
	item, ok := ix.items[identifier]
	return item, ok
}

// Completed returns the (identifier, title) refs whose items currently sit
// in a completed bucket, in board scan order.
func (ix *CorrelationIndex) Completed() []models.CompletedRef {
	return ix.completed
}

// Len returns the number of correlated identifiers on the board.
func (ix *CorrelationIndex) Len() int {
	return len(ix.items)
}

// Duplicates returns the identifiers that appeared on more than one item
// during the scan. For each, the later-scanned item won; the anomaly is
// surfaced so duplicate-creation bugs are not masked silently.
func (ix *CorrelationIndex) Duplicates() []string {
	return ix.duplicates
}

// IndexBuilder scans a board's remote state into a CorrelationIndex.
type IndexBuilder struct {
	adapter          Adapter
	completedBuckets map[string]bool
	workers          int
	log              *logrus.Entry
}

// NewIndexBuilder creates a builder for the given adapter. completedBuckets
// lists the bucket ids classified as "done"; workers bounds concurrent
// per-item annotation fetches (0 means the default of 4).
func NewIndexBuilder(adapter Adapter, completedBuckets []string, workers int) *IndexBuilder {
	done := make(map[string]bool, len(completedBuckets))
	for _, id := range completedBuckets {
		done[id] = true
	}
	if workers <= 0 {
		workers = defaultFetchWorkers
	}
	return &IndexBuilder{
		adapter:          adapter,
		completedBuckets: done,
		workers:          workers,
		log:              logrus.WithField("backend", adapter.Name()),
	}
}

// Build fetches the board and constructs the index. When the backend
// exposes annotations only per item, those fetches run on a bounded
// worker pool; index insertion itself stays serial, in board scan order,
// so the duplicate tie-break (later item wins) is deterministic.
func (b *IndexBuilder) Build(ctx context.Context) (*CorrelationIndex, error) {
	buckets, err := b.adapter.FetchAllItems(ctx)
	if err != nil {
		return nil, err
	}

	if fetcher, ok := b.adapter.(AnnotationFetcher); ok {
		if err := b.resolveMarkers(ctx, fetcher, buckets); err != nil {
			return nil, err
		}
	}

	ix := &CorrelationIndex{items: make(map[string]*models.RemoteItem)}
	for _, bucket := range buckets {
		completed := b.completedBuckets[bucket.Bucket.ID]
		for _, item := range bucket.Items {
			identifier, ok := parseMarker(item.Marker)
			if !ok {
				// Unlabeled items (manually created cards) are
				// invisible to the index; not an error.
				continue
			}
			if _, exists := ix.items[identifier]; exists {
				b.log.Warnf("duplicate marker %s on item %s (%q); keeping the later item", identifier, item.ID, item.Title)
				ix.duplicates = append(ix.duplicates, identifier)
			}
			ix.items[identifier] = item
			if completed {
				ix.completed = append(ix.completed, models.CompletedRef{
					Identifier: identifier,
					Name:       item.Title,
				})
			}
		}
	}

	b.log.Debugf("indexed %d correlated items, %d in completed buckets", ix.Len(), len(ix.completed))
	return ix, nil
}

// resolveMarkers fetches annotations for items lacking an inline marker,
// bounded by the worker count. The first marker annotation found on an
// item wins. Failures on individual items are logged and leave the item
// unlabeled rather than aborting the scan.
func (b *IndexBuilder) resolveMarkers(ctx context.Context, fetcher AnnotationFetcher, buckets []BucketItems) error {
	sem := make(chan struct{}, b.workers)
	var wg sync.WaitGroup

	for _, bucket := range buckets {
		for _, item := range bucket.Items {
			if item.Marker != "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				wg.Wait()
				return &RemoteUnavailableError{Backend: b.adapter.Name(), Err: err}
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(item *models.RemoteItem) {
				defer wg.Done()
				defer func() { <-sem }()

				annotations, err := fetcher.ItemAnnotations(ctx, item)
				if err != nil {
					b.log.Warnf("failed to fetch annotations for item %s: %v", item.ID, err)
					return
				}
				for _, text := range annotations {
					if _, ok := parseMarker(text); ok {
						item.Marker = text
						return
					}
				}
			}(item)
		}
	}

	wg.Wait()
	return nil
}

// parseMarker extracts the source identifier from a marker annotation.
func parseMarker(text string) (string, bool) {
	if !strings.HasPrefix(text, models.MarkerPrefix) {
		return "", false
	}
	identifier := text[len(models.MarkerPrefix):]
	if identifier == "" {
		return "", false
	}
	return identifier, true
}
