package editor

import (
	"slices"
	"strconv"
	"strings"
)

// matchFold reports whether filter is blank or a case-insensitive substring
// of value.
func matchFold(value, filter string) bool {
	if strings.TrimSpace(filter) == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(filter))
}

// RouteView is the list of routes matching both the upstream and the
// downstream filter text, in model order. It follows the model's bus and
// never changes the model or its selection.
type RouteView struct {
	model      *Model
	upstream   string
	downstream string
	items      []*Route
	cancel     func()
}

func NewRouteView(m *Model) *RouteView {
	v := &RouteView{model: m}
	v.cancel = m.bus.Subscribe(v.observe)
	v.refresh()
	return v
}

func (v *RouteView) UpstreamFilter() string   { return v.upstream }
func (v *RouteView) DownstreamFilter() string { return v.downstream }

func (v *RouteView) SetUpstreamFilter(s string) {
	if v.upstream == s {
		return
	}
	v.upstream = s
	v.refresh()
}

func (v *RouteView) SetDownstreamFilter(s string) {
	if v.downstream == s {
		return
	}
	v.downstream = s
	v.refresh()
}

// Items returns the visible routes. The slice is a copy.
func (v *RouteView) Items() []*Route { return slices.Clone(v.items) }

func (v *RouteView) Len() int { return len(v.items) }

func (v *RouteView) Contains(r *Route) bool { return slices.Contains(v.items, r) }

func (v *RouteView) Close() {
	if v.cancel != nil {
		v.cancel()
	}
}

func (v *RouteView) observe(c Change) {
	switch c.Kind {
	case ChangeSelection, ChangePending:
		return
	}
	v.refresh()
}

func (v *RouteView) refresh() {
	v.items = v.items[:0]
	for _, r := range v.model.routes {
		if matchFold(r.upstream, v.upstream) && matchFold(r.downstream, v.downstream) {
			v.items = append(v.items, r)
		}
	}
}

// HostView is the filtered host list of one route. It closes itself once
// its route is detached from the model.
type HostView struct {
	route  *Route
	host   string
	port   string
	items  []*Host
	cancel func()
}

func NewHostView(r *Route) *HostView {
	v := &HostView{route: r}
	if r.model != nil {
		v.cancel = r.model.bus.Subscribe(v.observe)
	}
	v.refresh()
	return v
}

func (v *HostView) Route() *Route         { return v.route }
func (v *HostView) HostFilter() string    { return v.host }
func (v *HostView) PortFilter() string    { return v.port }
func (v *HostView) Items() []*Host        { return slices.Clone(v.items) }
func (v *HostView) Len() int              { return len(v.items) }
func (v *HostView) Contains(h *Host) bool { return slices.Contains(v.items, h) }

func (v *HostView) SetHostFilter(s string) {
	if v.host == s {
		return
	}
	v.host = s
	v.refresh()
}

func (v *HostView) SetPortFilter(s string) {
	if v.port == s {
		return
	}
	v.port = s
	v.refresh()
}

func (v *HostView) Close() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

func (v *HostView) observe(c Change) {
	if v.route.Detached() || (c.Kind == ChangeRouteRemoved && c.Route == v.route) {
		v.Close()
		return
	}
	if c.Route != v.route {
		return
	}
	switch c.Kind {
	case ChangeHostAdded, ChangeHostRemoved:
		v.refresh()
	case ChangeField:
		if c.Field == FieldHost || c.Field == FieldPort {
			v.refresh()
		}
	}
}

func (v *HostView) refresh() {
	v.items = v.items[:0]
	for _, h := range v.route.hosts {
		if matchFold(h.host, v.host) && matchFold(strconv.Itoa(h.port), v.port) {
			v.items = append(v.items, h)
		}
	}
}
