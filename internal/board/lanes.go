package board

import "github.com/rhydlewis/omnifocus-to-kanban/pkg/models"

// LaneTable is a flat arena of buckets. Nested lane hierarchies (LeanKit
// boards nest lanes arbitrarily deep) are stored as a slice with
// parent-index fields instead of a linked tree, so there are no cyclic
// parent back-references to manage.
type LaneTable struct {
	Buckets []models.Bucket
}

// Add appends a bucket and returns its index in the table.
func (t *LaneTable) Add(b models.Bucket) int {
	t.Buckets = append(t.Buckets, b)
	return len(t.Buckets) - 1
}

// Children returns the table indexes of the buckets whose parent is the
// bucket at index parent, in Index order.
func (t *LaneTable) Children(parent int) []int {
	var out []int
	for i, b := range t.Buckets {
		if b.ParentIndex == parent {
			out = append(out, i)
		}
	}
	sortByBucketIndex(t, out)
	return out
}

// Roots returns the indexes of top-level buckets in Index order.
func (t *LaneTable) Roots() []int {
	var out []int
	for i, b := range t.Buckets {
		if b.ParentIndex < 0 {
			out = append(out, i)
		}
	}
	sortByBucketIndex(t, out)
	return out
}

// Walk visits every bucket depth-first in Index order, reporting nesting
// depth to the callback.
func (t *LaneTable) Walk(fn func(depth int, b models.Bucket)) {
	var visit func(idx, depth int)
	visit = func(idx, depth int) {
		fn(depth, t.Buckets[idx])
		for _, child := range t.Children(idx) {
			visit(child, depth+1)
		}
	}
	for _, root := range t.Roots() {
		visit(root, 0)
	}
}

// Find returns the first bucket with the given id, if any.
func (t *LaneTable) Find(id string) (models.Bucket, bool) {
	for _, b := range t.Buckets {
		if b.ID == id {
			return b, true
		}
	}
	return models.Bucket{}, false
}

func sortByBucketIndex(t *LaneTable, idxs []int) {
	for i := 1; i < len(idxs); i++ {
		for j := i; j > 0 && t.Buckets[idxs[j]].Index < t.Buckets[idxs[j-1]].Index; j-- {
			idxs[j], idxs[j-1] = idxs[j-1], idxs[j]
		}
	}
}
