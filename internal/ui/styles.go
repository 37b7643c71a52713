package ui

import (
	"agentwatch/internal/model"

	"github.com/charmbracelet/lipgloss"
)

// This file centralizes the lipgloss styles used by the watch TUI.

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginTop(1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("63"))

	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func healthStyle(s model.HealthState) lipgloss.Style {
	switch s {
	case model.HealthConnected:
		return okStyle
	case model.HealthDegraded:
		return warnStyle
	case model.HealthUnavailable:
		return errorStyle
	default:
		return dimStyle
	}
}

func activityStyle(t model.ActivityType) lipgloss.Style {
	switch t {
	case model.ActivityError:
		return errorStyle
	case model.ActivityComplete:
		return okStyle
	case model.ActivityStart:
		return warnStyle
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	}
}
