package tui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Toggle      key.Binding
	Drink       key.Binding
	DrinkCustom key.Binding
	Interval    key.Binding
	Snooze      key.Binding
	Permission  key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Drink, k.Snooze, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Interval, k.Snooze, k.Permission},
		{k.Drink, k.DrinkCustom},
		{k.Help, k.Quit},
	}
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start/stop"),
		),
		Drink: key.NewBinding(
			key.WithKeys("d", " "),
			key.WithHelp("d", "drink 250ml"),
		),
		DrinkCustom: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "drink amount"),
		),
		Interval: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "set interval"),
		),
		Snooze: key.NewBinding(
			key.WithKeys("z"),
			key.WithHelp("z", "snooze 10m"),
		),
		Permission: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "notifications"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
