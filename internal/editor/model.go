// Package editor holds the in-memory editing model for a routing document
// and the components reacting to it: dirty tracking, filtered views,
// command availability and the load/save session.
//
// Everything here is single threaded. Mutations publish typed changes on the
// model's Bus synchronously; listeners run before the mutator returns.
package editor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nuetzliches/routedit/internal/routeconfig"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 80
)

// Model is the mutable working copy of one document.
type Model struct {
	bus        *Bus
	routes     []*Route
	selected   *Route
	global     *Global
	extensions routeconfig.Extensions
	keyStyle   routeconfig.KeyStyle
	methods    []string
}

// NewModel returns an empty model. Call Hydrate before editing.
func NewModel() *Model {
	m := &Model{
		bus:      &Bus{},
		keyStyle: routeconfig.KeyStyleCamel,
		methods:  slices.Clone(routeconfig.DefaultMethods),
	}
	m.global = &Global{model: m}
	return m
}

func (m *Model) Bus() *Bus { return m.bus }

// Hydrate replaces all state from doc. Changes raised while rebuilding are
// suppressed; a single ChangeLoaded follows on success. On failure the
// previous state is kept.
func (m *Model) Hydrate(doc *routeconfig.Document) error {
	if doc == nil {
		return fmt.Errorf("editor: hydrate: nil document")
	}
	token, err := m.bus.Suppress()
	if err != nil {
		return err
	}
	defer token.Release()

	next, err := m.build(doc)
	if err != nil {
		return err
	}

	for _, r := range m.routes {
		r.detach()
	}
	m.global.model = nil
	m.routes = next.routes
	m.methods = next.methods
	m.global = next.global
	m.extensions = next.extensions
	m.keyStyle = next.keyStyle
	m.selected = nil
	if len(m.routes) > 0 {
		m.selected = m.routes[0]
	}

	token.Release()
	m.bus.Publish(Change{Kind: ChangeLoaded})
	return nil
}

type hydrated struct {
	routes     []*Route
	methods    []string
	global     *Global
	extensions routeconfig.Extensions
	keyStyle   routeconfig.KeyStyle
}

// build constructs the new state with the regular mutators. It runs under
// suppression, so none of their notifications escape.
func (m *Model) build(doc *routeconfig.Document) (*hydrated, error) {
	if err := checkExtensions("document", doc.Extensions); err != nil {
		return nil, err
	}
	if err := checkExtensions("globalConfiguration", doc.Global.Extensions); err != nil {
		return nil, err
	}

	out := &hydrated{
		methods:    slices.Clone(routeconfig.DefaultMethods),
		extensions: doc.Extensions.Clone(),
		keyStyle:   doc.KeyStyle,
	}
	if out.keyStyle == "" {
		out.keyStyle = routeconfig.KeyStyleCamel
	}
	out.global = &Global{model: m, baseURL: doc.Global.BaseURL, extensions: doc.Global.Extensions.Clone()}

	for i, src := range doc.Routes {
		where := fmt.Sprintf("routes[%d]", i)
		if err := checkExtensions(where, src.Extensions); err != nil {
			return nil, err
		}
		if err := checkExtensions(where+".authenticationOptions", src.AuthenticationOptions.Extensions); err != nil {
			return nil, err
		}
		for j, h := range src.DownstreamHostAndPorts {
			if err := checkExtensions(fmt.Sprintf("%s.downstreamHostAndPorts[%d]", where, j), h.Extensions); err != nil {
				return nil, err
			}
		}

		r := newRoute(m)
		r.SetUpstreamPathTemplate(src.UpstreamPathTemplate)
		r.SetDownstreamPathTemplate(src.DownstreamPathTemplate)
		if strings.TrimSpace(src.DownstreamScheme) != "" {
			r.SetDownstreamScheme(src.DownstreamScheme)
		}
		r.SetCaseSensitive(src.RouteIsCaseSensitive)
		for _, method := range src.UpstreamHTTPMethod {
			if strings.TrimSpace(method) == "" {
				continue
			}
			out.methods = registerMethod(out.methods, method)
			r.selectMethod(canonicalMethod(out.methods, method))
		}
		for _, h := range src.DownstreamHostAndPorts {
			host := r.AddHost()
			host.SetHost(h.Host)
			host.SetPort(h.Port)
			host.extensions = h.Extensions.Clone()
		}
		if len(r.hosts) == 0 {
			host := r.AddHost()
			host.SetHost(DefaultHost)
			host.SetPort(DefaultPort)
		}
		r.selectedHost = nil
		r.auth.SetProviderKey(src.AuthenticationOptions.AuthenticationProviderKey)
		for _, scope := range src.AuthenticationOptions.AllowedScopes {
			r.auth.SetPendingScope(scope)
			// Blank and duplicate scopes are dropped.
			_ = r.auth.AddScope()
		}
		r.auth.extensions = src.AuthenticationOptions.Extensions.Clone()
		r.extensions = src.Extensions.Clone()
		out.routes = append(out.routes, r)
	}
	return out, nil
}

func checkExtensions(where string, ext routeconfig.Extensions) error {
	for _, mem := range ext.Members() {
		if mem.Value.Kind() == routeconfig.KindInvalid {
			return fmt.Errorf("editor: hydrate: %s: extension %q is not valid JSON", where, mem.Key)
		}
	}
	return nil
}

func (m *Model) publish(c Change) {
	m.bus.Publish(c)
}

// Routes returns the routes in document order. The slice is a copy.
func (m *Model) Routes() []*Route {
	return slices.Clone(m.routes)
}

func (m *Model) Len() int { return len(m.routes) }

// IndexOf returns the position of r, or -1.
func (m *Model) IndexOf(r *Route) int {
	if r == nil {
		return -1
	}
	return slices.Index(m.routes, r)
}

func (m *Model) Selected() *Route { return m.selected }

// SelectRoute selects r, or clears the selection when r is nil.
func (m *Model) SelectRoute(r *Route) error {
	if r != nil && m.IndexOf(r) < 0 {
		return ErrUnknownRoute
	}
	if m.selected == r {
		return nil
	}
	m.selected = r
	m.publish(Change{Kind: ChangeSelection, Route: r, Field: FieldSelectedRoute})
	return nil
}

func (m *Model) Global() *Global { return m.global }

func (m *Model) KeyStyle() routeconfig.KeyStyle { return m.keyStyle }

// Extensions returns a copy of the document-level extension data.
func (m *Model) Extensions() routeconfig.Extensions { return m.extensions.Clone() }

// MethodOptions returns the toggleable HTTP methods: the defaults followed
// by any other method seen while loading.
func (m *Model) MethodOptions() []string {
	return slices.Clone(m.methods)
}

// AddRoute appends a route with one default host and selects it.
func (m *Model) AddRoute() *Route {
	r := newRoute(m)
	h := newHost(r)
	h.host = DefaultHost
	h.port = DefaultPort
	h.recompute()
	r.hosts = []*Host{h}
	r.recompute()

	m.routes = append(m.routes, r)
	m.selected = r
	m.publish(Change{Kind: ChangeRouteAdded, Route: r})
	return r
}

// DuplicateRoute inserts a deep copy of r right after it and selects the
// copy.
func (m *Model) DuplicateRoute(r *Route) (*Route, error) {
	idx := m.IndexOf(r)
	if idx < 0 {
		return nil, ErrUnknownRoute
	}
	cp := r.clone(m)
	m.routes = slices.Insert(m.routes, idx+1, cp)
	m.selected = cp
	m.publish(Change{Kind: ChangeRouteAdded, Route: cp})
	return cp, nil
}

// DeleteRoute removes r. A selected r hands the selection to the route now
// at max(0, index-1), or to nothing when no routes remain.
func (m *Model) DeleteRoute(r *Route) error {
	idx := m.IndexOf(r)
	if idx < 0 {
		return ErrUnknownRoute
	}
	m.routes = slices.Delete(m.routes, idx, idx+1)
	if m.selected == r {
		m.selected = nil
		if len(m.routes) > 0 {
			m.selected = m.routes[max(0, idx-1)]
		}
	}
	m.publish(Change{Kind: ChangeRouteRemoved, Route: r})
	r.detach()
	return nil
}

// MoveRoute moves r by delta positions. A target outside the list returns
// ErrBoundary and changes nothing.
func (m *Model) MoveRoute(r *Route, delta int) error {
	idx := m.IndexOf(r)
	if idx < 0 {
		return ErrUnknownRoute
	}
	target := idx + delta
	if delta == 0 || target < 0 || target >= len(m.routes) {
		return ErrBoundary
	}
	m.routes = slices.Delete(m.routes, idx, idx+1)
	m.routes = slices.Insert(m.routes, target, r)
	m.publish(Change{Kind: ChangeRouteMoved, Route: r})
	return nil
}

// Snapshot returns an independent document of the current state without
// running the save gate.
func (m *Model) Snapshot() *routeconfig.Document {
	doc := &routeconfig.Document{
		Routes:     make([]routeconfig.Route, 0, len(m.routes)),
		Global:     routeconfig.GlobalSettings{BaseURL: m.global.baseURL, Extensions: m.global.extensions.Clone()},
		Extensions: m.extensions.Clone(),
		KeyStyle:   m.keyStyle,
	}
	for _, r := range m.routes {
		doc.Routes = append(doc.Routes, r.toRoute())
	}
	return doc
}

// Validate runs the save gate over the current state.
func (m *Model) Validate() error {
	return routeconfig.CheckDocument(m.Snapshot())
}

// ToDocument returns the snapshot to persist, or the *ValidationError that
// blocks saving.
func (m *Model) ToDocument() (*routeconfig.Document, error) {
	doc := m.Snapshot()
	if err := routeconfig.CheckDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// registerMethod appends method to options unless it is already there,
// compared case-insensitively.
func registerMethod(options []string, method string) []string {
	method = strings.TrimSpace(method)
	if method == "" || containsFold(options, method) {
		return options
	}
	return append(options, method)
}

// canonicalMethod returns the option spelling of method when one exists.
func canonicalMethod(options []string, method string) string {
	method = strings.TrimSpace(method)
	for _, o := range options {
		if strings.EqualFold(o, method) {
			return o
		}
	}
	return method
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
