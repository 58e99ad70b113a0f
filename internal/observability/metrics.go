package observability

import (
	"fmt"
	"time"
)

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	Runs             int            `json:"runs"`
	RunsWithFailures int            `json:"runs_with_failures"`
	TasksClosed      int            `json:"tasks_closed"`
	CardsCreated     int            `json:"cards_created"`
	CardsUpdated     int            `json:"cards_updated"`
	SubItemsCreated  int            `json:"sub_items_created"`
	TasksSkipped     int            `json:"tasks_skipped"`
	APIRequests      int            `json:"api_requests"`
	BytesTransferred int            `json:"bytes_transferred"`
	RunsByBoard      map[string]int `json:"runs_by_board"`
	EventCount       int            `json:"event_count"`
	OldestEvent      *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		RunsByBoard: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		if event.Type != EventRunCompleted {
			continue
		}
		m.Runs++
		if board, ok := event.Data["board"].(string); ok {
			m.RunsByBoard[board]++
		}
		// JSON numbers decode as float64.
		m.TasksClosed += intField(event, "tasks_closed")
		m.CardsCreated += intField(event, "cards_created")
		m.CardsUpdated += intField(event, "cards_updated")
		m.SubItemsCreated += intField(event, "sub_items_created")
		m.TasksSkipped += intField(event, "tasks_skipped")
		m.APIRequests += intField(event, "api_requests")
		m.BytesTransferred += intField(event, "bytes_transferred")
		if intField(event, "failures") > 0 {
			m.RunsWithFailures++
		}
	}

	return m, nil
}

func intField(event Event, key string) int {
	switch v := event.Data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
