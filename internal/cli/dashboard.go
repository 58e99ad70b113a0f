package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rhydlewis/omnifocus-to-kanban/internal/observability"
)

// Dashboard panel indices.
const (
	panelTasks = iota
	panelMetrics
	panelRuns
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	taskCounts  map[string]int
	taskTotal   int
	metricsData *metricsSnapshot
	runs        []runSnapshot

	// State.
	loading bool
	err     error
}

type metricsSnapshot struct {
	runs            int
	tasksClosed     int
	cardsCreated    int
	cardsUpdated    int
	subItemsCreated int
	eventCount      int
}

type runSnapshot struct {
	board    string
	time     string
	failures int
	summary  string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	taskCounts map[string]int
	taskTotal  int
	metrics    *metricsSnapshot
	runs       []runSnapshot
	err        error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	runCleanStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	runFailedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelTasks,
		loading:     true,
		taskCounts:  make(map[string]int),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.taskCounts = msg.taskCounts
		m.taskTotal = msg.taskTotal
		m.metricsData = msg.metrics
		m.runs = msg.runs
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" OmniFocus Sync Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	tasksPanel := m.renderTasksPanel()
	metricsPanel := m.renderMetricsPanel()
	runsPanel := m.renderRunsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		tasksPanel = m.applyPanelStyle(panelTasks, tasksPanel, colWidth-4)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, colWidth-4)
		runsPanel = m.applyPanelStyle(panelRuns, runsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, tasksPanel, metricsPanel, runsPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		tasksPanel = m.applyPanelStyle(panelTasks, tasksPanel, panelWidth)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, panelWidth)
		runsPanel = m.applyPanelStyle(panelRuns, runsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, tasksPanel, metricsPanel, runsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderTasksPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Eligible Tasks"))
	b.WriteString("\n")

	if m.taskTotal == 0 {
		b.WriteString("  No eligible tasks.")
		return b.String()
	}

	types := make([]string, 0, len(m.taskCounts))
	for t := range m.taskCounts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		label := t
		if label == "" {
			label = "(untyped)"
		}
		b.WriteString(fmt.Sprintf("  %-14s %d\n", label, m.taskCounts[t]))
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d", m.taskTotal))

	return b.String()
}

func (m dashboardModel) renderMetricsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Metrics (7d)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	lines := []struct {
		label string
		value int
	}{
		{"Runs", md.runs},
		{"Closed", md.tasksClosed},
		{"Created", md.cardsCreated},
		{"Updated", md.cardsUpdated},
		{"Sub-items", md.subItemsCreated},
		{"Events", md.eventCount},
	}

	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}

	return b.String()
}

func (m dashboardModel) renderRunsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Recent Runs"))
	b.WriteString("\n")

	if len(m.runs) == 0 {
		b.WriteString("  No recorded runs.")
		return b.String()
	}

	for _, r := range m.runs {
		style := runCleanStyle
		marker := "ok"
		if r.failures > 0 {
			style = runFailedStyle
			marker = fmt.Sprintf("%d failed", r.failures)
		}
		b.WriteString(fmt.Sprintf("  %s %-12s %s %s\n",
			r.time, r.board, r.summary, style.Render(marker)))
	}

	return b.String()
}

const recentRunLimit = 8

func loadData() tea.Msg {
	result := dataLoadedMsg{
		taskCounts: make(map[string]int),
	}

	// Load eligible task counts from the OmniFocus cache.
	if OpenStore != nil {
		store, err := OpenStore()
		if err != nil {
			result.err = fmt.Errorf("opening omnifocus store: %w", err)
			return result
		}
		defer func() { _ = store.Close() }()

		tasks, err := store.EligibleTasks(context.Background())
		if err != nil {
			result.err = fmt.Errorf("loading tasks: %w", err)
			return result
		}
		result.taskTotal = len(tasks)
		for _, t := range tasks {
			result.taskCounts[t.Type]++
		}
	}

	// Load metrics from MetricsCalc.
	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.metrics = &metricsSnapshot{
			runs:            metrics.Runs,
			tasksClosed:     metrics.TasksClosed,
			cardsCreated:    metrics.CardsCreated,
			cardsUpdated:    metrics.CardsUpdated,
			subItemsCreated: metrics.SubItemsCreated,
			eventCount:      metrics.EventCount,
		}
	}

	// Load recent runs from the event log, newest last.
	if EventLog != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		events, err := EventLog.Read(observability.EventFilter{
			Since: &since,
			Type:  observability.EventRunCompleted,
		})
		if err != nil {
			result.err = fmt.Errorf("loading runs: %w", err)
			return result
		}
		if len(events) > recentRunLimit {
			events = events[len(events)-recentRunLimit:]
		}
		for _, e := range events {
			board, _ := e.Data["board"].(string)
			failures := 0
			if f, ok := e.Data["failures"].(float64); ok {
				failures = int(f)
			}
			result.runs = append(result.runs, runSnapshot{
				board:    board,
				time:     e.Time.Format("01-02 15:04"),
				failures: failures,
				summary:  e.Message,
			})
		}
	}

	return result
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for sync state and metrics",
	Long: `Launch an interactive terminal dashboard showing eligible tasks,
sync metrics, and recent runs.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
