package models

// MarkerPrefix is the literal prefix of the correlation annotation that
// links a remote item back to a source task. The annotation text is the
// prefix immediately followed by the source identifier, nothing else.
const MarkerPrefix = "external_id="

// RemoteItem is a card/task/entry on a kanban board, normalised across
// backends. ID is the provider-assigned id and is only unique within one
// board.
type RemoteItem struct {
	ID          string
	Title       string
	Description string
	BucketID    string
	Color       string
	// Marker holds the correlation annotation text when the backend
	// returns it inline with the item (Zenkit stores it in a text field,
	// LeanKit in ExternalCardID). Backends that expose annotations only
	// through a per-item sub-resource leave this empty and implement
	// board.AnnotationFetcher instead.
	Marker string
}

// SubItem is a checklist entry / sub-task attached to a remote item.
// Remote sub-items carry no correlation marker, so Name is the only
// dedup key available.
type SubItem struct {
	Name     string
	Finished bool
}

// Bucket is a board column, lane, or list. Boards with nested lanes are
// represented as a flat table of Buckets with parent indexes (see
// board.LaneTable) rather than a linked tree.
type Bucket struct {
	ID    string
	Name  string
	Index int
	// ParentIndex is the position of the parent bucket in the flat lane
	// table, or -1 for top-level buckets.
	ParentIndex int
	// DefaultDrop marks the bucket new items land in unless a type
	// mapping overrides the target.
	DefaultDrop bool
}

// TypeMapping maps a source task type (OmniFocus context name) to the
// presentation attributes used when creating its card. Loaded from
// configuration and never mutated at runtime.
type TypeMapping struct {
	Color string `yaml:"color" mapstructure:"color"`
	// Bucket optionally overrides the default drop bucket for this type.
	Bucket string `yaml:"bucket,omitempty" mapstructure:"bucket"`
}

// ItemUpdate carries the whitelisted fields of a partial remote update.
// A nil pointer means "leave unchanged".
type ItemUpdate struct {
	Title       *string
	Description *string
}

// IsEmpty reports whether the update would change nothing.
func (u ItemUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil
}
