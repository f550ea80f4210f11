package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the scene bindings. Modal dialogs read raw keys instead.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Host    key.Binding
	Resolve key.Binding
	Clear   key.Binding
	Reset   key.Binding
	Quit    key.Binding
}

var defaultKeyMap = keyMap{
	Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "forward")),
	Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "back")),
	Left:    key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("←/h", "left")),
	Right:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("→/l", "right")),
	Host:    key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "host here")),
	Resolve: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resolve")),
	Clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	Reset:   key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "reset")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Host, k.Resolve, k.Clear, k.Reset, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		k.ShortHelp(),
	}
}
