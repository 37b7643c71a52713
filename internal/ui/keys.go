package ui

import "github.com/charmbracelet/bubbles/key"

type watchKeyMap struct {
	Up           key.Binding
	Down         key.Binding
	Conversation key.Binding
	Back         key.Binding
	Quit         key.Binding
}

func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Conversation, k.Back, k.Quit}
}

func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Conversation, k.Back, k.Quit},
	}
}

var watchKeys = watchKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Conversation: key.NewBinding(
		key.WithKeys("enter", "c"),
		key.WithHelp("enter", "conversation"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
