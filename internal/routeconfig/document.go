// Package routeconfig reads and writes Ocelot-style routing configuration
// documents.
//
// Files are JSON extended with comments and trailing commas. Keys the schema
// does not know are kept per object level in [Extensions] and written back
// unchanged, so a document edited by this package loses nothing it did not
// touch.
package routeconfig

import "strings"

const DefaultScheme = "http"

// DefaultMethods is the toggle set every editing session starts with.
var DefaultMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

// KeyStyle is the spelling of recognized keys in a persisted document.
type KeyStyle string

const (
	// KeyStyleCamel writes "routes", "upstreamPathTemplate", ...
	KeyStyleCamel KeyStyle = "camel"
	// KeyStylePascal writes "Routes", "UpstreamPathTemplate", ... as Ocelot's
	// own samples do.
	KeyStylePascal KeyStyle = "pascal"
)

func (s KeyStyle) key(camel string) string {
	if s != KeyStylePascal || camel == "" {
		return camel
	}
	return strings.ToUpper(camel[:1]) + camel[1:]
}

type Document struct {
	Routes     []Route
	Global     GlobalSettings
	Extensions Extensions
	KeyStyle   KeyStyle
}

type GlobalSettings struct {
	BaseURL    string
	Extensions Extensions
}

type Route struct {
	UpstreamPathTemplate   string
	UpstreamHTTPMethod     []string
	DownstreamPathTemplate string
	DownstreamScheme       string
	DownstreamHostAndPorts []HostAndPort
	RouteIsCaseSensitive   bool
	AuthenticationOptions  AuthOptions
	Extensions             Extensions
}

type HostAndPort struct {
	Host       string
	Port       int
	Extensions Extensions
}

type AuthOptions struct {
	AuthenticationProviderKey string
	AllowedScopes             []string
	Extensions                Extensions
}

// Blank returns the document a fresh editing session starts from: one empty
// route so there is something to edit.
func Blank() *Document {
	return &Document{
		Routes:   []Route{NewRoute()},
		KeyStyle: KeyStyleCamel,
	}
}

// NewRoute returns a route with schema defaults and no hosts.
func NewRoute() Route {
	return Route{DownstreamScheme: DefaultScheme}
}

func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Routes:     make([]Route, len(d.Routes)),
		Global:     GlobalSettings{BaseURL: d.Global.BaseURL, Extensions: d.Global.Extensions.Clone()},
		Extensions: d.Extensions.Clone(),
		KeyStyle:   d.KeyStyle,
	}
	for i, r := range d.Routes {
		out.Routes[i] = r.Clone()
	}
	return out
}

func (r Route) Clone() Route {
	out := r
	out.UpstreamHTTPMethod = cloneStrings(r.UpstreamHTTPMethod)
	if r.DownstreamHostAndPorts != nil {
		out.DownstreamHostAndPorts = make([]HostAndPort, len(r.DownstreamHostAndPorts))
	}
	for i, h := range r.DownstreamHostAndPorts {
		out.DownstreamHostAndPorts[i] = HostAndPort{Host: h.Host, Port: h.Port, Extensions: h.Extensions.Clone()}
	}
	out.AuthenticationOptions = AuthOptions{
		AuthenticationProviderKey: r.AuthenticationOptions.AuthenticationProviderKey,
		AllowedScopes:             cloneStrings(r.AuthenticationOptions.AllowedScopes),
		Extensions:                r.AuthenticationOptions.Extensions.Clone(),
	}
	out.Extensions = r.Extensions.Clone()
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
