// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the OmniFocus sync pipeline as MCP tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhydlewis/omnifocus-to-kanban/internal/core"
	"github.com/rhydlewis/omnifocus-to-kanban/internal/observability"
	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// EngineFactory builds a reconciliation engine for the named board. The
// MCP server only ever asks for dry-run engines; it never writes to a
// board on behalf of an assistant.
type EngineFactory func(board string) (*core.Engine, error)

// Server wraps the sync services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	store       func(ctx context.Context) ([]*models.SourceTask, error)
	engines     EngineFactory
	metricsCalc observability.MetricsCalculator
}

// NewServer creates a new MCP server. metricsCalc may be nil if the
// event log is disabled.
func NewServer(tasks func(ctx context.Context) ([]*models.SourceTask, error), engines EngineFactory, metricsCalc observability.MetricsCalculator, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		store:       tasks,
		engines:     engines,
		metricsCalc: metricsCalc,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "ofkb", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type listEligibleTasksInput struct{}

type taskOutput struct {
	Identifier string   `json:"identifier"`
	Name       string   `json:"name"`
	Type       string   `json:"type,omitempty"`
	Note       string   `json:"note,omitempty"`
	Blocked    bool     `json:"blocked,omitempty"`
	Children   []string `json:"children,omitempty"`
}

type listEligibleTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type previewSyncInput struct {
	Board string `json:"board,omitempty" jsonschema:"board to preview against (leankit, kanbanflow, trello, zenkit); defaults to the configured board"`
}

type previewSyncOutput struct {
	Board           string   `json:"board"`
	WouldClose      int      `json:"would_close"`
	WouldCreate     int      `json:"would_create"`
	WouldUpdate     int      `json:"would_update"`
	WouldAddSubItem int      `json:"would_add_sub_items"`
	Failures        []string `json:"failures,omitempty"`
}

type getSyncMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	Runs             int            `json:"runs"`
	RunsWithFailures int            `json:"runs_with_failures"`
	TasksClosed      int            `json:"tasks_closed"`
	CardsCreated     int            `json:"cards_created"`
	CardsUpdated     int            `json:"cards_updated"`
	SubItemsCreated  int            `json:"sub_items_created"`
	RunsByBoard      map[string]int `json:"runs_by_board"`
	EventCount       int            `json:"event_count"`
	OldestEvent      string         `json:"oldest_event,omitempty"`
	NewestEvent      string         `json:"newest_event,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_eligible_tasks",
		Description: "List the flagged OmniFocus tasks that would be synced to the kanban board, with their child tasks.",
	}, s.handleListEligibleTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "preview_sync",
		Description: "Dry-run a sync against a board and report what would be closed, created, and updated. Makes no changes.",
	}, s.handlePreviewSync)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_sync_metrics",
		Description: "Get aggregated sync metrics from the event log: run counts, cards created and updated, tasks closed.",
	}, s.handleGetSyncMetrics)
}

// --- Tool handlers ---

func (s *Server) handleListEligibleTasks(ctx context.Context, _ *gomcp.CallToolRequest, _ listEligibleTasksInput) (*gomcp.CallToolResult, listEligibleTasksOutput, error) {
	tasks, err := s.store(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("reading eligible tasks: %s", err)), listEligibleTasksOutput{}, nil
	}

	out := listEligibleTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}

	return nil, out, nil
}

func (s *Server) handlePreviewSync(ctx context.Context, _ *gomcp.CallToolRequest, input previewSyncInput) (*gomcp.CallToolResult, previewSyncOutput, error) {
	engine, err := s.engines(input.Board)
	if err != nil {
		return errorResult(fmt.Sprintf("configuring board: %s", err)), previewSyncOutput{}, nil
	}

	report, err := engine.Run(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("previewing sync: %s", err)), previewSyncOutput{}, nil
	}

	out := previewSyncOutput{
		Board:           report.Board,
		WouldClose:      report.TasksClosed,
		WouldCreate:     report.CardsCreated,
		WouldUpdate:     report.CardsUpdated,
		WouldAddSubItem: report.SubItemsCreated,
		Failures:        report.Failures,
	}
	return nil, out, nil
}

func (s *Server) handleGetSyncMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getSyncMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		Runs:             metrics.Runs,
		RunsWithFailures: metrics.RunsWithFailures,
		TasksClosed:      metrics.TasksClosed,
		CardsCreated:     metrics.CardsCreated,
		CardsUpdated:     metrics.CardsUpdated,
		SubItemsCreated:  metrics.SubItemsCreated,
		RunsByBoard:      metrics.RunsByBoard,
		EventCount:       metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t *models.SourceTask) taskOutput {
	out := taskOutput{
		Identifier: t.Identifier,
		Name:       t.Name,
		Type:       t.Type,
		Note:       t.Note,
		Blocked:    t.Blocked,
	}
	for _, child := range t.SortedChildren() {
		out.Children = append(out.Children, child.Name)
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		RunsByBoard: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
