package editor

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nuetzliches/routedit/internal/routeconfig"
)

// Route is one editable route. Its mutators publish on the owning model's
// bus; a route removed from its model keeps its values but stops
// publishing.
type Route struct {
	model *Model

	upstream      string
	downstream    string
	scheme        string
	caseSensitive bool
	methods       []string
	hosts         []*Host
	selectedHost  *Host
	auth          *Auth
	extensions    routeconfig.Extensions

	upstreamErr   string
	downstreamErr string
	valid         bool
}

func newRoute(m *Model) *Route {
	r := &Route{model: m, scheme: routeconfig.DefaultScheme}
	r.auth = &Auth{route: r}
	r.recompute()
	return r
}

func (r *Route) publish(c Change) {
	if r.model == nil {
		return
	}
	c.Route = r
	r.model.publish(c)
}

func (r *Route) detach() {
	r.model = nil
}

// Detached reports whether r was removed from its model or replaced by a
// later Hydrate.
func (r *Route) Detached() bool { return r.model == nil }

func (r *Route) UpstreamPathTemplate() string   { return r.upstream }
func (r *Route) DownstreamPathTemplate() string { return r.downstream }
func (r *Route) DownstreamScheme() string       { return r.scheme }
func (r *Route) CaseSensitive() bool            { return r.caseSensitive }
func (r *Route) Auth() *Auth                    { return r.auth }
func (r *Route) SelectedHost() *Host            { return r.selectedHost }
func (r *Route) UpstreamError() string          { return r.upstreamErr }
func (r *Route) DownstreamError() string        { return r.downstreamErr }

// Valid reports whether both templates are set and at least one host is
// valid.
func (r *Route) Valid() bool { return r.valid }

// Methods returns the selected HTTP methods in selection order.
func (r *Route) Methods() []string { return slices.Clone(r.methods) }

func (r *Route) MethodSelected(method string) bool {
	return containsFold(r.methods, method)
}

// Hosts returns the downstream hosts in order. The slice is a copy.
func (r *Route) Hosts() []*Host { return slices.Clone(r.hosts) }

// Extensions returns a copy of the route-level extension data.
func (r *Route) Extensions() routeconfig.Extensions { return r.extensions.Clone() }

// PrimaryHostSummary renders the first host as "host:port", or "" when the
// route has no hosts.
func (r *Route) PrimaryHostSummary() string {
	if len(r.hosts) == 0 {
		return ""
	}
	h := r.hosts[0]
	return h.host + ":" + strconv.Itoa(h.port)
}

func (r *Route) SetUpstreamPathTemplate(s string) {
	if r.upstream == s {
		return
	}
	r.upstream = s
	r.recompute()
	r.publish(Change{Kind: ChangeField, Field: FieldUpstreamPathTemplate})
}

func (r *Route) SetDownstreamPathTemplate(s string) {
	if r.downstream == s {
		return
	}
	r.downstream = s
	r.recompute()
	r.publish(Change{Kind: ChangeField, Field: FieldDownstreamPathTemplate})
}

func (r *Route) SetDownstreamScheme(s string) {
	if r.scheme == s {
		return
	}
	r.scheme = s
	r.publish(Change{Kind: ChangeField, Field: FieldDownstreamScheme})
}

func (r *Route) SetCaseSensitive(v bool) {
	if r.caseSensitive == v {
		return
	}
	r.caseSensitive = v
	r.publish(Change{Kind: ChangeField, Field: FieldCaseSensitive})
}

// SetMethodSelected selects or deselects method. The model's option
// spelling is used when one matches case-insensitively; a method outside
// the options is added to them.
func (r *Route) SetMethodSelected(method string, selected bool) {
	method = strings.TrimSpace(method)
	if method == "" || r.MethodSelected(method) == selected {
		return
	}
	if selected {
		if r.model != nil {
			r.model.methods = registerMethod(r.model.methods, method)
			method = canonicalMethod(r.model.methods, method)
		}
		r.selectMethod(method)
	} else {
		r.methods = slices.DeleteFunc(r.methods, func(m string) bool {
			return strings.EqualFold(m, method)
		})
	}
	r.publish(Change{Kind: ChangeField, Field: FieldMethods})
}

// ToggleMethod flips the selection of method and returns the new state.
func (r *Route) ToggleMethod(method string) bool {
	on := !r.MethodSelected(method)
	r.SetMethodSelected(method, on)
	return r.MethodSelected(method)
}

func (r *Route) selectMethod(method string) {
	if !containsFold(r.methods, method) {
		r.methods = append(r.methods, method)
	}
}

// AddHost appends an empty host and selects it.
func (r *Route) AddHost() *Host {
	h := newHost(r)
	r.hosts = append(r.hosts, h)
	r.selectedHost = h
	r.recompute()
	r.publish(Change{Kind: ChangeHostAdded, Host: h})
	return h
}

// RemoveHost drops h; removing the selected host clears the host selection.
func (r *Route) RemoveHost(h *Host) error {
	idx := slices.Index(r.hosts, h)
	if h == nil || idx < 0 {
		return ErrUnknownHost
	}
	r.hosts = slices.Delete(r.hosts, idx, idx+1)
	if r.selectedHost == h {
		r.selectedHost = nil
	}
	r.recompute()
	r.publish(Change{Kind: ChangeHostRemoved, Host: h})
	h.route = nil
	return nil
}

// SelectHost selects h, or clears the host selection when h is nil.
func (r *Route) SelectHost(h *Host) error {
	if h != nil && !slices.Contains(r.hosts, h) {
		return ErrUnknownHost
	}
	if r.selectedHost == h {
		return nil
	}
	r.selectedHost = h
	r.publish(Change{Kind: ChangeSelection, Host: h, Field: FieldSelectedHost})
	return nil
}

func (r *Route) recompute() {
	r.upstreamErr = routeconfig.CheckUpstream(r.upstream)
	r.downstreamErr = routeconfig.CheckDownstream(r.downstream)
	anyHost := false
	for _, h := range r.hosts {
		if h.Valid() {
			anyHost = true
			break
		}
	}
	r.valid = r.upstreamErr == "" && r.downstreamErr == "" && anyHost
}

// clone returns an independent copy owned by m.
func (r *Route) clone(m *Model) *Route {
	cp := newRoute(m)
	cp.upstream = r.upstream
	cp.downstream = r.downstream
	cp.scheme = r.scheme
	cp.caseSensitive = r.caseSensitive
	cp.methods = slices.Clone(r.methods)
	for _, h := range r.hosts {
		hc := newHost(cp)
		hc.host = h.host
		hc.port = h.port
		hc.portText = h.portText
		hc.extensions = h.extensions.Clone()
		hc.recompute()
		cp.hosts = append(cp.hosts, hc)
	}
	cp.auth.providerKey = r.auth.providerKey
	cp.auth.scopes = slices.Clone(r.auth.scopes)
	cp.auth.extensions = r.auth.extensions.Clone()
	cp.extensions = r.extensions.Clone()
	cp.recompute()
	return cp
}

func (r *Route) toRoute() routeconfig.Route {
	out := routeconfig.Route{
		UpstreamPathTemplate:   r.upstream,
		UpstreamHTTPMethod:     slices.Clone(r.methods),
		DownstreamPathTemplate: r.downstream,
		DownstreamScheme:       r.scheme,
		RouteIsCaseSensitive:   r.caseSensitive,
		AuthenticationOptions: routeconfig.AuthOptions{
			AuthenticationProviderKey: r.auth.providerKey,
			AllowedScopes:             slices.Clone(r.auth.scopes),
			Extensions:                r.auth.extensions.Clone(),
		},
		Extensions: r.extensions.Clone(),
	}
	for _, h := range r.hosts {
		out.DownstreamHostAndPorts = append(out.DownstreamHostAndPorts, routeconfig.HostAndPort{
			Host:       h.host,
			Port:       h.port,
			Extensions: h.extensions.Clone(),
		})
	}
	return out
}

func (r *Route) String() string {
	return fmt.Sprintf("%s -> %s", r.upstream, r.downstream)
}

// Host is one downstream host of a Route.
type Host struct {
	route      *Route
	host       string
	port       int
	portText   string
	extensions routeconfig.Extensions

	hostErr string
	portErr string
}

func newHost(r *Route) *Host {
	h := &Host{route: r}
	h.recompute()
	return h
}

func (h *Host) Host() string      { return h.host }
func (h *Host) Port() int         { return h.port }
func (h *Host) HostError() string { return h.hostErr }
func (h *Host) PortError() string { return h.portErr }
func (h *Host) Valid() bool       { return h.hostErr == "" && h.portErr == "" }

// PortText is the port as last entered, which may not be a number.
func (h *Host) PortText() string {
	if h.portText != "" {
		return h.portText
	}
	return strconv.Itoa(h.port)
}

func (h *Host) SetHost(s string) {
	if h.host == s {
		return
	}
	h.host = s
	h.changed(FieldHost)
}

func (h *Host) SetPort(port int) {
	if h.port == port && h.portText == "" {
		return
	}
	h.port = port
	h.portText = ""
	h.changed(FieldPort)
}

// SetPortText sets the port from user input. Text that is not an integer
// leaves the host invalid with port 0 until corrected.
func (h *Host) SetPortText(text string) {
	port, msg := routeconfig.CheckPortText(text)
	keep := ""
	if msg == routeconfig.MsgPortNotInteger {
		port = 0
		keep = text
	}
	if h.port == port && h.portText == keep {
		return
	}
	h.port = port
	h.portText = keep
	h.changed(FieldPort)
}

func (h *Host) changed(f Field) {
	h.recompute()
	if h.route == nil {
		return
	}
	h.route.recompute()
	h.route.publish(Change{Kind: ChangeField, Host: h, Field: f})
}

func (h *Host) recompute() {
	h.hostErr = routeconfig.CheckHost(h.host)
	if h.portText != "" {
		h.portErr = routeconfig.MsgPortNotInteger
	} else {
		h.portErr = routeconfig.CheckPort(h.port)
	}
}

// Auth is the authentication options of a Route, plus the scope editing
// state.
type Auth struct {
	route         *Route
	providerKey   string
	scopes        []string
	selectedScope string
	pendingScope  string
	extensions    routeconfig.Extensions
}

func (a *Auth) ProviderKey() string  { return a.providerKey }
func (a *Auth) Scopes() []string     { return slices.Clone(a.scopes) }
func (a *Auth) PendingScope() string { return a.pendingScope }

// SelectedScope returns the selected scope, if any.
func (a *Auth) SelectedScope() (string, bool) {
	return a.selectedScope, a.selectedScope != ""
}

func (a *Auth) Extensions() routeconfig.Extensions { return a.extensions.Clone() }

func (a *Auth) SetProviderKey(s string) {
	if a.providerKey == s {
		return
	}
	a.providerKey = s
	a.route.publish(Change{Kind: ChangeField, Field: FieldProviderKey})
}

func (a *Auth) SetPendingScope(s string) {
	if a.pendingScope == s {
		return
	}
	a.pendingScope = s
	a.route.publish(Change{Kind: ChangePending, Field: FieldPendingScope})
}

// AddScope appends the trimmed pending text as a scope and clears it. Blank
// text is rejected with ErrBlankScope; an already allowed scope clears the
// pending text and returns ErrDuplicateScope.
func (a *Auth) AddScope() error {
	scope := strings.TrimSpace(a.pendingScope)
	if scope == "" {
		return ErrBlankScope
	}
	if slices.Contains(a.scopes, scope) {
		a.SetPendingScope("")
		return ErrDuplicateScope
	}
	a.scopes = append(a.scopes, scope)
	a.pendingScope = ""
	a.route.publish(Change{Kind: ChangeField, Field: FieldScopes})
	return nil
}

func (a *Auth) SelectScope(scope string) error {
	if scope != "" && !slices.Contains(a.scopes, scope) {
		return ErrUnknownScope
	}
	if a.selectedScope == scope {
		return nil
	}
	a.selectedScope = scope
	a.route.publish(Change{Kind: ChangeSelection, Field: FieldSelectedScope})
	return nil
}

// RemoveScope drops the selected scope and clears the scope selection.
func (a *Auth) RemoveScope() error {
	if a.selectedScope == "" {
		return ErrNoSelection
	}
	a.scopes = slices.DeleteFunc(a.scopes, func(s string) bool { return s == a.selectedScope })
	a.selectedScope = ""
	a.route.publish(Change{Kind: ChangeField, Field: FieldScopes})
	return nil
}

// Global is the editable globalConfiguration object.
type Global struct {
	model      *Model
	baseURL    string
	extensions routeconfig.Extensions
}

func (g *Global) BaseURL() string { return g.baseURL }

func (g *Global) Extensions() routeconfig.Extensions { return g.extensions.Clone() }

func (g *Global) SetBaseURL(s string) {
	if g.baseURL == s {
		return
	}
	g.baseURL = s
	if g.model != nil {
		g.model.publish(Change{Kind: ChangeField, Field: FieldBaseURL})
	}
}
