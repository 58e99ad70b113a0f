package models

import (
	"sort"
	"time"
)

// SourceTask represents a single task read from the OmniFocus database.
// Identifier is OmniFocus's persistent identifier and is immutable for the
// lifetime of the task; everything the sync layer does is keyed on it.
type SourceTask struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Name       string `json:"name" yaml:"name"`
	Note       string `json:"note,omitempty" yaml:"note,omitempty"`
	// Type is the OmniFocus context (tag) name, mapped to a card color and
	// optional target bucket by the board configuration.
	Type          string     `json:"type,omitempty" yaml:"type,omitempty"`
	Completed     bool       `json:"completed" yaml:"completed"`
	DeferredUntil *time.Time `json:"deferred_until,omitempty" yaml:"deferred_until,omitempty"`
	Blocked       bool       `json:"blocked" yaml:"blocked"`
	HasNextStep   bool       `json:"has_next_step" yaml:"has_next_step"`
	// RepetitionRule is non-empty when the task repeats; closing such a
	// task makes OmniFocus regenerate it under a new identifier.
	RepetitionRule string        `json:"repetition_rule,omitempty" yaml:"repetition_rule,omitempty"`
	Children       []*SourceTask `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsDeferred reports whether the task's start date is strictly in the
// future relative to now.
func (t *SourceTask) IsDeferred(now time.Time) bool {
	return t.DeferredUntil != nil && t.DeferredUntil.After(now)
}

// IsRepeating reports whether closing this task would make the source
// store regenerate it.
func (t *SourceTask) IsRepeating() bool {
	return t.RepetitionRule != ""
}

// SortedChildren returns the task's children ordered lexicographically by
// name. Sub-item creation iterates this order so repeated runs create
// remote sub-items deterministically.
func (t *SourceTask) SortedChildren() []*SourceTask {
	children := make([]*SourceTask, len(t.Children))
	copy(children, t.Children)
	sort.Slice(children, func(i, j int) bool {
		return children[i].Name < children[j].Name
	})
	return children
}

// CloseOutcome describes what happened when the source store was asked to
// close a task.
type CloseOutcome int

const (
	// CloseSkipped means no close was issued: the task was already
	// complete, could not be found, or its name no longer matched.
	CloseSkipped CloseOutcome = iota
	// Closed means the task was marked complete.
	Closed
	// ClosedRepeating means the task was marked complete and the source
	// store regenerated it from its repetition rule.
	ClosedRepeating
)

// CompletedRef identifies a remote item sitting in a completed bucket: the
// source identifier recovered from its marker plus the remote title at the
// time of the scan. The name is checked against the source store before
// closing so a stale or reused identifier never force-closes the wrong task.
type CompletedRef struct {
	Identifier string
	Name       string
}
