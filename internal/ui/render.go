package ui

import (
	"fmt"
	"strings"

	"agentwatch/internal/model"

	"github.com/charmbracelet/glamour"
)

// ConversationMarkdown lays out turns as a markdown document, one section
// per turn.
func ConversationMarkdown(turns []model.ConversationTurn) string {
	if len(turns) == 0 {
		return "_No conversation history._\n"
	}
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&sb, "### %s", t.Role)
		if !t.Timestamp.IsZero() {
			fmt.Fprintf(&sb, " · %s", t.Timestamp.Local().Format("15:04:05"))
		}
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(t.Content))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderConversation renders turns for a terminal. style is a glamour
// standard style name; "auto" picks one from the terminal.
func RenderConversation(turns []model.ConversationTurn, width int, style string) (string, error) {
	if width <= 0 {
		width = 80
	}
	if style == "" {
		style = "auto"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(ConversationMarkdown(turns))
	if err != nil {
		return "", fmt.Errorf("failed to render conversation: %w", err)
	}
	return out, nil
}
