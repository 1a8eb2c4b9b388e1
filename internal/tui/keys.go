package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Shift     key.Binding
	Break     key.Binding
	Claim     key.Binding
	Cancel    key.Binding
	Interrupt key.Binding
	Resume    key.Binding
	Verify    key.Binding
	Complete  key.Binding
	AllDay    key.Binding
	New       key.Binding
	Delete    key.Binding
	Rotate    key.Binding
	Export    key.Binding
	SignOut   key.Binding
	Tab1      key.Binding
	Tab2      key.Binding
	Tab3      key.Binding
	Tab4      key.Binding
	Tab5      key.Binding
	Tab6      key.Binding
	Tab       key.Binding
	Help      key.Binding
	Enter     key.Binding
	Back      key.Binding
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Shift: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "clock in/out"),
	),
	Break: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "break"),
	),
	Claim: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "claim"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "cancel"),
	),
	Interrupt: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "interrupt"),
	),
	Resume: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "resume"),
	),
	Verify: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "scan code"),
	),
	Complete: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "photo/complete"),
	),
	AllDay: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "hour/day"),
	),
	New: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "archive"),
	),
	Rotate: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "new token"),
	),
	Export: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "export"),
	),
	SignOut: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "sign out"),
	),
	Tab1: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "dashboard"),
	),
	Tab2: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "tasks"),
	),
	Tab3: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "recovery"),
	),
	Tab4: key.NewBinding(
		key.WithKeys("4"),
		key.WithHelp("4", "reports"),
	),
	Tab5: key.NewBinding(
		key.WithKeys("5"),
		key.WithHelp("5", "catalog"),
	),
	Tab6: key.NewBinding(
		key.WithKeys("6"),
		key.WithHelp("6", "settings"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "previous day"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next day"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Shift, k.Break, k.Claim, k.Verify, k.Complete, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Shift, k.Break, k.SignOut},
		{k.Claim, k.Cancel, k.Interrupt, k.Resume},
		{k.Verify, k.Complete, k.AllDay},
		{k.New, k.Delete, k.Rotate, k.Export},
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4, k.Tab5, k.Tab6},
		{k.Up, k.Down, k.Enter, k.Back, k.Quit},
	}
}
