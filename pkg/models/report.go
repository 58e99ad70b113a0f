package models

import "time"

// SyncReport summarises one reconciliation run. It is always produced,
// even when individual tasks failed part-way through.
type SyncReport struct {
	RunID   string    `json:"run_id" yaml:"run_id"`
	Board   string    `json:"board" yaml:"board"`
	Started time.Time `json:"started" yaml:"started"`
	Elapsed float64   `json:"elapsed_seconds" yaml:"elapsed_seconds"`

	TasksClosed          int `json:"tasks_closed" yaml:"tasks_closed"`
	RepeatingTasksClosed int `json:"repeating_tasks_closed" yaml:"repeating_tasks_closed"`
	CardsCreated         int `json:"cards_created" yaml:"cards_created"`
	CardsUpdated         int `json:"cards_updated" yaml:"cards_updated"`
	SubItemsCreated      int `json:"sub_items_created" yaml:"sub_items_created"`
	TasksSkipped         int `json:"tasks_skipped" yaml:"tasks_skipped"`

	// Operational accounting reported by the board adapter.
	APIRequests      int `json:"api_requests" yaml:"api_requests"`
	BytesTransferred int `json:"bytes_transferred" yaml:"bytes_transferred"`

	// Failures holds per-task failure descriptions. A non-empty slice
	// does not make the run unsuccessful; failed tasks are retried on the
	// next scheduled run.
	Failures []string `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Operations returns the total number of remote write operations made.
func (r *SyncReport) Operations() int {
	return r.CardsCreated + r.CardsUpdated + r.SubItemsCreated
}
