package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	awerrors "agentwatch/internal/errors"
	"agentwatch/internal/model"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

const (
	viewList         = "list"
	viewConversation = "conversation"

	maxActivityLines = 8
	taskWidth        = 40
)

// ConversationLoader fetches an agent's history on demand.
type ConversationLoader func(ctx context.Context, agentID string) []model.ConversationTurn

// WatchModel is the live dashboard. It renders whatever snapshots arrive on
// its channel and never polls sources itself.
type WatchModel struct {
	updates <-chan model.Snapshot
	load    ConversationLoader
	style   string

	table    table.Model
	viewport viewport.Model
	help     help.Model

	snap       model.Snapshot
	hasSnap    bool
	width      int
	height     int
	viewMode   string
	convTitle  string
	message    string
	lastUpdate time.Time
}

type snapshotMsg model.Snapshot
type updatesClosedMsg struct{}
type conversationMsg struct {
	title   string
	content string
	err     error
}

// NewWatchModel creates the dashboard over a snapshot subscription.
func NewWatchModel(updates <-chan model.Snapshot, load ConversationLoader) WatchModel {
	columns := []table.Column{
		{Title: "NAME", Width: 22},
		{Title: "STATUS", Width: 9},
		{Title: "TYPE", Width: 16},
		{Title: "LOC", Width: 7},
		{Title: "TOKENS", Width: 9},
		{Title: "ELAPSED", Width: 8},
		{Title: "TASK", Width: taskWidth},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(paneStyle.GetBorderStyle()).
		BorderForeground(paneStyle.GetBorderTopForeground()).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(headerStyle.GetForeground()).
		Background(headerStyle.GetBackground()).
		Bold(false)
	t.SetStyles(s)

	return WatchModel{
		updates:  updates,
		load:     load,
		style:    "auto",
		table:    t,
		viewport: viewport.New(0, 0),
		help:     help.New(),
		viewMode: viewList,
	}
}

// WithStyle sets the glamour style used for conversations.
func (m WatchModel) WithStyle(style string) WatchModel {
	m.style = style
	return m
}

func (m WatchModel) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

func waitForSnapshot(ch <-chan model.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(m.width)
		m.table.SetHeight(max(m.height-18, 5))
		m.viewport.Width = m.width
		m.viewport.Height = max(m.height-4, 5)
		return m, nil

	case tea.KeyMsg:
		if m.viewMode == viewConversation {
			switch {
			case key.Matches(msg, watchKeys.Back), msg.String() == "q":
				m.viewMode = viewList
				return m, nil
			case msg.String() == "ctrl+c":
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, watchKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, watchKeys.Conversation):
			return m, m.openConversation()
		}

	case snapshotMsg:
		m.snap = model.Snapshot(msg)
		m.hasSnap = true
		m.lastUpdate = m.snap.GeneratedAt
		m.updateTableRows()
		return m, waitForSnapshot(m.updates)

	case updatesClosedMsg:
		return m, tea.Quit

	case conversationMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.message = ""
		m.convTitle = msg.title
		m.viewport.SetContent(msg.content)
		m.viewport.GotoTop()
		m.viewMode = viewConversation
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *WatchModel) openConversation() tea.Cmd {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.snap.Agents) {
		return nil
	}
	ag := m.snap.Agents[i]
	if !ag.HasConversation || m.load == nil {
		m.message = "No conversation available for " + ag.Name
		return nil
	}
	load, style, width := m.load, m.style, m.width
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		out, err := RenderConversation(load(ctx, ag.ID), width, style)
		return conversationMsg{title: ag.Name, content: out, err: err}
	}
}

func (m *WatchModel) updateTableRows() {
	rows := make([]table.Row, 0, len(m.snap.Agents))
	for _, ag := range m.snap.Agents {
		tokens := "-"
		if ag.Tokens > 0 {
			tokens = humanize.Comma(ag.Tokens)
		}
		task := ag.Task
		if ag.CurrentTool != "" {
			task = "[" + ag.CurrentTool + "] " + task
		}
		rows = append(rows, table.Row{
			ag.Name,
			string(ag.Status),
			string(ag.Type),
			string(ag.Location),
			tokens,
			ag.Elapsed,
			awerrors.Truncate(task, taskWidth),
		})
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func (m WatchModel) View() string {
	if m.viewMode == viewConversation {
		return fmt.Sprintf("%s\n%s\n%s",
			headerStyle.Render("Conversation: "+m.convTitle),
			m.viewport.View(),
			helpStyle.Render("esc/q back • ↑/↓ scroll"))
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("agentwatch"))
	if !m.lastUpdate.IsZero() {
		sb.WriteString(dimStyle.Render("  updated " + m.lastUpdate.Local().Format("15:04:05")))
	}
	sb.WriteString("\n")

	if !m.hasSnap {
		sb.WriteString("\n  Waiting for first poll...\n")
		return sb.String()
	}

	sb.WriteString(providerLine(m.snap.Providers))
	sb.WriteString("\n\n")

	if len(m.snap.Agents) == 0 {
		sb.WriteString("  No agents detected.\n")
	} else {
		sb.WriteString(m.table.View())
		sb.WriteString("\n")
	}

	sb.WriteString(sectionStyle.Render("Activity"))
	sb.WriteString("\n")
	sb.WriteString(activityLines(m.snap.Activity, maxActivityLines))

	if m.message != "" {
		sb.WriteString(messageStyle.Render(m.message))
		sb.WriteString("\n")
	}
	sb.WriteString(footerStyle.Render(statsLine(m.snap.Stats)))
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(m.help.View(watchKeys)))
	return sb.String()
}

func providerLine(providers []model.ProviderHealth) string {
	parts := make([]string, 0, len(providers))
	for _, p := range providers {
		label := fmt.Sprintf("● %s", p.Name)
		if p.State == model.HealthConnected {
			label += fmt.Sprintf(" (%d)", p.AgentCount)
		} else {
			label += " " + string(p.State)
		}
		parts = append(parts, healthStyle(p.State).Render(label))
	}
	if len(parts) == 0 {
		return dimStyle.Render("no sources configured")
	}
	return strings.Join(parts, "  ")
}

func activityLines(events []model.ActivityEvent, limit int) string {
	if len(events) == 0 {
		return dimStyle.Render("  nothing yet") + "\n"
	}
	if len(events) > limit {
		events = events[:limit]
	}
	var sb strings.Builder
	for _, ev := range events {
		line := fmt.Sprintf("  %s  %s: %s", ev.Timestamp.Local().Format("15:04:05"), ev.Origin, ev.Description)
		sb.WriteString(activityStyle(ev.Type).Render(line))
		sb.WriteString("\n")
	}
	return sb.String()
}

func statsLine(s model.Stats) string {
	return fmt.Sprintf("%d agents · %d active · %d done · %d errors · %s tokens · $%.2f",
		s.Total, s.Active, s.Completed, s.Errored, humanize.Comma(s.TotalTokens), s.EstimatedCost)
}

// RunWatch starts the dashboard and blocks until the user quits or updates
// is closed. style names the glamour style for conversations.
func RunWatch(updates <-chan model.Snapshot, load ConversationLoader, style string) error {
	m := NewWatchModel(updates, load)
	if style != "" {
		m = m.WithStyle(style)
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch dashboard failed: %w", err)
	}
	return nil
}
