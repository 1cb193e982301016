package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the global and per-view key bindings.
type keyMap struct {
	Quit    key.Binding
	Help    key.Binding
	Home    key.Binding
	Groups  key.Binding
	Rooms   key.Binding
	Profile key.Binding
	About   key.Binding
	Login   key.Binding
	Signup  key.Binding
	Logout  key.Binding
	Goto    key.Binding
	Back    key.Binding

	Up      key.Binding
	Down    key.Binding
	Open    key.Binding
	Refresh key.Binding

	New        key.Binding
	Invite     key.Binding
	InviteUser key.Binding
	Copy       key.Binding
	Browse     key.Binding
	Leave      key.Binding
	JoinCode   key.Binding

	NextField key.Binding
	PrevField key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Help:    key.NewBinding(key.WithKeys("h", "?"), key.WithHelp("h", "help")),
	Home:    key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "home")),
	Groups:  key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "groups")),
	Rooms:   key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "rooms")),
	Profile: key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "profile")),
	About:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "about")),
	Login:   key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "log in")),
	Signup:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "register")),
	Logout:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "log out")),
	Goto:    key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "go to")),
	Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),

	Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),

	New:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
	Invite:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "invite")),
	InviteUser: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "invite user")),
	Copy:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy link")),
	Browse:     key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "open link")),
	Leave:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "leave")),
	JoinCode:   key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "join by code")),

	NextField: key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next")),
	PrevField: key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev")),
}

// helpLine renders bindings as a help bar.
func helpLine(bs ...key.Binding) string {
	out := ""
	for i, b := range bs {
		if i > 0 {
			out += "  "
		}
		h := b.Help()
		out += helpEntry(h.Key, h.Desc)
	}
	return " " + out
}
