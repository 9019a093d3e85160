package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/nuetzliches/routedit/internal/editor"
)

// KeyMap defines the key bindings of the editor.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	NextField key.Binding
	PrevField key.Binding
	// Prev and Next move within the focused field: hosts, scopes or the
	// method cursor.
	Prev key.Binding
	Next key.Binding

	AddRoute       key.Binding
	DuplicateRoute key.Binding
	DeleteRoute    key.Binding
	MoveUp         key.Binding
	MoveDown       key.Binding

	FilterUpstream   key.Binding
	FilterDownstream key.Binding

	Edit         key.Binding
	ToggleMethod key.Binding
	AddHost      key.Binding
	RemoveHost   key.Binding
	AddScope     key.Binding
	RemoveScope  key.Binding

	Diff   key.Binding
	New    key.Binding
	Open   key.Binding
	Save   key.Binding
	SaveAs key.Binding
	Quit   key.Binding

	Yes    key.Binding
	Cancel key.Binding
}

var DefaultKeyMap = KeyMap{
	Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	NextField: key.NewBinding(key.WithKeys("tab"), key.WithHelp("Tab", "next field")),
	PrevField: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("S-Tab", "prev field")),
	Prev:      key.NewBinding(key.WithKeys("[", "left"), key.WithHelp("[", "prev item")),
	Next:      key.NewBinding(key.WithKeys("]", "right"), key.WithHelp("]", "next item")),

	AddRoute:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	DuplicateRoute: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "duplicate")),
	DeleteRoute:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete")),
	MoveUp:         key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
	MoveDown:       key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),

	FilterUpstream:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter upstream")),
	FilterDownstream: key.NewBinding(key.WithKeys("\\"), key.WithHelp("\\", "filter downstream")),

	Edit:         key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
	ToggleMethod: key.NewBinding(key.WithKeys("m", " "), key.WithHelp("m", "toggle method")),
	AddHost:      key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "add host")),
	RemoveHost:   key.NewBinding(key.WithKeys("H"), key.WithHelp("H", "remove host")),
	AddScope:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "add scope")),
	RemoveScope:  key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "remove scope")),

	Diff:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "pending diff")),
	New:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("C-n", "new")),
	Open:   key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("C-o", "open")),
	Save:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("C-s", "save")),
	SaveAs: key.NewBinding(key.WithKeys("ctrl+w"), key.WithHelp("C-w", "save as")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

	Yes:    key.NewBinding(key.WithKeys("y", "Y")),
	Cancel: key.NewBinding(key.WithKeys("esc")),
}

type commandBinding struct {
	binding key.Binding
	cmd     editor.Command
}

// commandBindings pairs the bindings that are enabled by the command gate
// with their command, in help order.
func (k KeyMap) commandBindings() []commandBinding {
	return []commandBinding{
		{k.AddRoute, editor.CmdAddRoute},
		{k.DuplicateRoute, editor.CmdDuplicateRoute},
		{k.DeleteRoute, editor.CmdDeleteRoute},
		{k.MoveUp, editor.CmdMoveRouteUp},
		{k.MoveDown, editor.CmdMoveRouteDown},
		{k.AddHost, editor.CmdAddHost},
		{k.RemoveHost, editor.CmdRemoveHost},
		{k.RemoveScope, editor.CmdRemoveScope},
	}
}
