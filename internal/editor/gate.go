package editor

import (
	"fmt"
	"strings"
)

// Command is a user action whose availability depends on model state.
type Command int

const (
	CmdAddRoute Command = iota
	CmdDuplicateRoute
	CmdDeleteRoute
	CmdMoveRouteUp
	CmdMoveRouteDown
	CmdAddHost
	CmdRemoveHost
	CmdAddScope
	CmdRemoveScope
)

// Commands lists every command in declaration order.
var Commands = []Command{
	CmdAddRoute, CmdDuplicateRoute, CmdDeleteRoute, CmdMoveRouteUp, CmdMoveRouteDown,
	CmdAddHost, CmdRemoveHost, CmdAddScope, CmdRemoveScope,
}

func (c Command) String() string {
	switch c {
	case CmdAddRoute:
		return "add_route"
	case CmdDuplicateRoute:
		return "duplicate_route"
	case CmdDeleteRoute:
		return "delete_route"
	case CmdMoveRouteUp:
		return "move_route_up"
	case CmdMoveRouteDown:
		return "move_route_down"
	case CmdAddHost:
		return "add_host"
	case CmdRemoveHost:
		return "remove_host"
	case CmdAddScope:
		return "add_scope"
	case CmdRemoveScope:
		return "remove_scope"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Available evaluates cmd against the current state of m. Scope and host
// commands apply to the selected route.
func Available(m *Model, cmd Command) bool {
	sel := m.selected
	switch cmd {
	case CmdAddRoute, CmdAddHost:
		return true
	case CmdDuplicateRoute, CmdDeleteRoute:
		return sel != nil
	case CmdMoveRouteUp:
		return sel != nil && m.IndexOf(sel) > 0
	case CmdMoveRouteDown:
		idx := m.IndexOf(sel)
		return idx >= 0 && idx < len(m.routes)-1
	case CmdAddScope:
		return sel != nil && strings.TrimSpace(sel.auth.pendingScope) != ""
	case CmdRemoveScope:
		return sel != nil && sel.auth.selectedScope != ""
	case CmdRemoveHost:
		return sel != nil && sel.selectedHost != nil
	default:
		return false
	}
}

// Gate caches Available for every command and refreshes the cache on each
// change published on the model's bus.
type Gate struct {
	model     *Model
	state     map[Command]bool
	cancel    func()
	listeners []func(cmd Command, available bool)
}

func NewGate(m *Model) *Gate {
	g := &Gate{model: m, state: make(map[Command]bool, len(Commands))}
	for _, cmd := range Commands {
		g.state[cmd] = Available(m, cmd)
	}
	g.cancel = m.bus.Subscribe(func(Change) { g.Refresh() })
	return g
}

// Enabled returns the cached availability of cmd.
func (g *Gate) Enabled(cmd Command) bool {
	return g.state[cmd]
}

// OnTransition registers fn to run for every command whose availability
// flips.
func (g *Gate) OnTransition(fn func(cmd Command, available bool)) {
	g.listeners = append(g.listeners, fn)
}

// Refresh re-evaluates every command and notifies transitions.
func (g *Gate) Refresh() {
	for _, cmd := range Commands {
		now := Available(g.model, cmd)
		if g.state[cmd] == now {
			continue
		}
		g.state[cmd] = now
		for _, fn := range g.listeners {
			fn(cmd, now)
		}
	}
}

func (g *Gate) Close() {
	if g.cancel != nil {
		g.cancel()
	}
}
