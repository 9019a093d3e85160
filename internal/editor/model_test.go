package editor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuetzliches/routedit/internal/routeconfig"
)

func parseDoc(t *testing.T, text string) *routeconfig.Document {
	t.Helper()
	doc, _, err := routeconfig.Parse([]byte(text))
	require.NoError(t, err)
	return doc
}

func hydrate(t *testing.T, text string) *Model {
	t.Helper()
	m := NewModel()
	require.NoError(t, m.Hydrate(parseDoc(t, text)))
	return m
}

// record collects every change published on m's bus.
func record(m *Model) *[]Change {
	var got []Change
	m.Bus().Subscribe(func(c Change) { got = append(got, c) })
	return &got
}

const threeRoutes = `{"routes":[
  {"upstreamPathTemplate":"a/b","downstreamPathTemplate":"/one","downstreamHostAndPorts":[{"host":"h1","port":81}]},
  {"upstreamPathTemplate":"a/c","downstreamPathTemplate":"/two","downstreamHostAndPorts":[{"host":"h2","port":82}]},
  {"upstreamPathTemplate":"x/y","downstreamPathTemplate":"/three","downstreamHostAndPorts":[{"host":"h3","port":83}]}
]}`

func TestHydrate_SynthesizesDefaultHost(t *testing.T) {
	m := hydrate(t, `{"routes":[{"upstreamPathTemplate":"/a","downstreamPathTemplate":"/b"}]}`)
	require.Equal(t, 1, m.Len())
	hosts := m.Routes()[0].Hosts()
	require.Len(t, hosts, 1)
	assert.Equal(t, DefaultHost, hosts[0].Host())
	assert.Equal(t, DefaultPort, hosts[0].Port())
	assert.Nil(t, m.Routes()[0].SelectedHost())
	assert.True(t, m.Routes()[0].Valid())
	assert.Equal(t, "localhost:80", m.Routes()[0].PrimaryHostSummary())
}

func TestHydrate_PublishesOnlyLoaded(t *testing.T) {
	m := NewModel()
	got := record(m)
	require.NoError(t, m.Hydrate(parseDoc(t, extendedDocJSON)))
	require.Len(t, *got, 1)
	assert.Equal(t, ChangeLoaded, (*got)[0].Kind)
	assert.False(t, m.Bus().Suppressed())
	assert.Same(t, m.Routes()[0], m.Selected())
}

func TestHydrate_NestedIsRejected(t *testing.T) {
	m := hydrate(t, threeRoutes)
	before := m.Routes()

	token, err := m.Bus().Suppress()
	require.NoError(t, err)
	err = m.Hydrate(routeconfig.Blank())
	assert.ErrorIs(t, err, ErrSuppressionActive)
	assert.Equal(t, before, m.Routes())
	token.Release()
	token.Release()

	require.NoError(t, m.Hydrate(routeconfig.Blank()))
	assert.Equal(t, 1, m.Len())
}

func TestHydrate_FailureReleasesSuppression(t *testing.T) {
	m := hydrate(t, threeRoutes)
	before := m.Routes()

	bad := parseDoc(t, threeRoutes)
	bad.Routes[2].AuthenticationOptions.Extensions.Set("broken", routeconfig.RawValue([]byte("{")))
	err := m.Hydrate(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	assert.False(t, m.Bus().Suppressed())
	assert.Equal(t, before, m.Routes())
	assert.False(t, before[0].Detached())

	got := record(m)
	before[0].SetUpstreamPathTemplate("changed")
	require.Len(t, *got, 1, "publishing works again after a failed hydrate")
}

func TestHydrate_DetachesPreviousRoutes(t *testing.T) {
	m := hydrate(t, threeRoutes)
	old := m.Routes()[0]
	require.NoError(t, m.Hydrate(routeconfig.Blank()))
	assert.True(t, old.Detached())

	got := record(m)
	old.SetUpstreamPathTemplate("ignored")
	assert.Empty(t, *got)
}

func TestHydrate_MethodOptions(t *testing.T) {
	m := hydrate(t, `{"routes":[{"upstreamHttpMethod":["get","OPTIONS","options","Head"]}]}`)
	assert.Equal(t, []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS", "Head"}, m.MethodOptions())
	assert.Equal(t, []string{"GET", "OPTIONS", "Head"}, m.Routes()[0].Methods())

	require.NoError(t, m.Hydrate(routeconfig.Blank()))
	assert.Equal(t, routeconfig.DefaultMethods, m.MethodOptions())
}

func TestSnapshot_RoundTripsLoadedDocument(t *testing.T) {
	doc := parseDoc(t, extendedDocJSON)
	want, err := routeconfig.Format(doc)
	require.NoError(t, err)

	m := NewModel()
	require.NoError(t, m.Hydrate(doc))
	got, err := routeconfig.Format(m.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	// The snapshot must not alias model state.
	snap := m.Snapshot()
	snap.Routes[0].DownstreamHostAndPorts[0].Host = "mutated"
	snap.Routes[0].AuthenticationOptions.AllowedScopes[0] = "mutated"
	assert.Equal(t, "orders.internal", m.Routes()[0].Hosts()[0].Host())
	assert.Equal(t, []string{"orders.read"}, m.Routes()[0].Auth().Scopes())
}

func TestAddRoute_DefaultsAndSelection(t *testing.T) {
	m := hydrate(t, threeRoutes)
	got := record(m)
	r := m.AddRoute()

	assert.Equal(t, 4, m.Len())
	assert.Same(t, r, m.Routes()[3])
	assert.Same(t, r, m.Selected())
	assert.Empty(t, r.Methods())
	assert.Equal(t, routeconfig.DefaultScheme, r.DownstreamScheme())
	require.Len(t, r.Hosts(), 1)
	assert.Equal(t, "localhost:80", r.PrimaryHostSummary())
	assert.False(t, r.Valid())
	require.Len(t, *got, 1)
	assert.Equal(t, ChangeRouteAdded, (*got)[0].Kind)
}

func TestDuplicateRoute_Isolation(t *testing.T) {
	m := hydrate(t, extendedDocJSON)
	src := m.Routes()[0]
	cp, err := m.DuplicateRoute(src)
	require.NoError(t, err)

	assert.Equal(t, 1, m.IndexOf(cp))
	assert.Same(t, cp, m.Selected())
	assert.Equal(t, src.toRoute(), cp.toRoute())

	cp.SetUpstreamPathTemplate("/copy")
	cp.Hosts()[0].SetHost("copy.internal")
	cp.AddHost()
	cp.SetMethodSelected("GET", false)
	cp.Auth().SetPendingScope("copy.write")
	require.NoError(t, cp.Auth().AddScope())

	assert.Equal(t, "/api/orders/{id}", src.UpstreamPathTemplate())
	assert.Equal(t, "orders.internal", src.Hosts()[0].Host())
	assert.Len(t, src.Hosts(), 1)
	assert.Equal(t, []string{"GET", "OPTIONS"}, src.Methods())
	assert.Equal(t, []string{"orders.read"}, src.Auth().Scopes())

	src.SetDownstreamPathTemplate("/src-only")
	assert.Equal(t, "/orders/{id}", cp.DownstreamPathTemplate())

	_, err = m.DuplicateRoute(&Route{})
	assert.ErrorIs(t, err, ErrUnknownRoute)
}

func TestDeleteRoute_Selection(t *testing.T) {
	m := hydrate(t, threeRoutes)
	rs := m.Routes()

	require.NoError(t, m.SelectRoute(rs[2]))
	require.NoError(t, m.DeleteRoute(rs[2]))
	assert.Same(t, rs[1], m.Selected())
	assert.True(t, rs[2].Detached())

	require.NoError(t, m.SelectRoute(rs[0]))
	require.NoError(t, m.DeleteRoute(rs[0]))
	assert.Same(t, rs[1], m.Selected(), "index 0 hands selection to the new first route")

	require.NoError(t, m.DeleteRoute(rs[1]))
	assert.Nil(t, m.Selected())
	assert.Equal(t, 0, m.Len())

	assert.ErrorIs(t, m.DeleteRoute(rs[1]), ErrUnknownRoute)
}

func TestDeleteRoute_UnselectedKeepsSelection(t *testing.T) {
	m := hydrate(t, threeRoutes)
	rs := m.Routes()
	require.NoError(t, m.SelectRoute(rs[2]))
	require.NoError(t, m.DeleteRoute(rs[0]))
	assert.Same(t, rs[2], m.Selected())
}

func TestMoveRoute_Boundaries(t *testing.T) {
	m := hydrate(t, threeRoutes)
	rs := m.Routes()
	got := record(m)

	assert.ErrorIs(t, m.MoveRoute(rs[0], -1), ErrBoundary)
	assert.ErrorIs(t, m.MoveRoute(rs[2], +1), ErrBoundary)
	assert.ErrorIs(t, m.MoveRoute(rs[1], 0), ErrBoundary)
	assert.Equal(t, rs, m.Routes())
	assert.Empty(t, *got)

	require.NoError(t, m.MoveRoute(rs[0], +1))
	assert.Equal(t, []*Route{rs[1], rs[0], rs[2]}, m.Routes())
	require.NoError(t, m.MoveRoute(rs[2], -2))
	assert.Equal(t, []*Route{rs[2], rs[1], rs[0]}, m.Routes())
	require.Len(t, *got, 2)
	assert.Equal(t, ChangeRouteMoved, (*got)[0].Kind)
}

func TestMutators_PublishOncePerChange(t *testing.T) {
	m := hydrate(t, threeRoutes)
	r := m.Routes()[0]
	got := record(m)

	r.SetUpstreamPathTemplate("a/b")
	assert.Empty(t, *got, "setting the same value is a no-op")

	r.SetUpstreamPathTemplate("  ")
	require.Len(t, *got, 1)
	assert.Equal(t, Change{Kind: ChangeField, Route: r, Field: FieldUpstreamPathTemplate}, (*got)[0])
	assert.Equal(t, routeconfig.MsgUpstreamRequired, r.UpstreamError())
	assert.False(t, r.Valid())

	r.SetUpstreamPathTemplate("a/b")
	assert.True(t, r.Valid())

	r.SetCaseSensitive(true)
	r.SetDownstreamScheme("https")
	m.Global().SetBaseURL("http://gw")
	assert.Len(t, *got, 5)
	assert.Equal(t, FieldBaseURL, (*got)[4].Field)
	assert.Nil(t, (*got)[4].Route)
}

func TestHosts_ValidityAndSummary(t *testing.T) {
	m := hydrate(t, threeRoutes)
	r := m.Routes()[0]
	first := r.Hosts()[0]

	extra := r.AddHost()
	assert.Same(t, extra, r.SelectedHost())
	assert.False(t, extra.Valid())
	assert.Equal(t, routeconfig.MsgHostRequired, extra.HostError())
	assert.True(t, r.Valid(), "one valid host is enough")

	first.SetHost("")
	assert.False(t, r.Valid())
	assert.Equal(t, ":81", r.PrimaryHostSummary())

	extra.SetHost("backup")
	extra.SetPortText("eighty")
	assert.Equal(t, routeconfig.MsgPortNotInteger, extra.PortError())
	assert.Equal(t, "eighty", extra.PortText())
	assert.Equal(t, 0, extra.Port())
	assert.False(t, r.Valid())

	extra.SetPortText("8080")
	assert.Empty(t, extra.PortError())
	assert.Equal(t, "8080", extra.PortText())
	assert.True(t, r.Valid())

	extra.SetPortText("8080.0")
	assert.Equal(t, routeconfig.MsgPortNotInteger, extra.PortError())
	assert.False(t, r.Valid())

	extra.SetPortText("0")
	assert.Equal(t, routeconfig.MsgPortPositive, extra.PortError())

	require.NoError(t, r.RemoveHost(extra))
	assert.Nil(t, r.SelectedHost())
	assert.ErrorIs(t, r.RemoveHost(extra), ErrUnknownHost)

	require.NoError(t, r.RemoveHost(first))
	assert.Equal(t, "", r.PrimaryHostSummary())
	assert.False(t, r.Valid())
}

func TestRemoveHost_UnselectedKeepsSelection(t *testing.T) {
	m := hydrate(t, threeRoutes)
	r := m.Routes()[0]
	first := r.Hosts()[0]
	second := r.AddHost()
	require.NoError(t, r.SelectHost(second))
	require.NoError(t, r.RemoveHost(first))
	assert.Same(t, second, r.SelectedHost())
	assert.ErrorIs(t, r.SelectHost(first), ErrUnknownHost)
}

func TestMethods_Toggle(t *testing.T) {
	m := hydrate(t, threeRoutes)
	r := m.Routes()[0]

	assert.True(t, r.ToggleMethod("post"))
	assert.Equal(t, []string{"POST"}, r.Methods())
	assert.True(t, r.MethodSelected("Post"))
	assert.False(t, r.ToggleMethod("POST"))
	assert.Empty(t, r.Methods())

	r.SetMethodSelected("TRACE", true)
	assert.Contains(t, m.MethodOptions(), "TRACE")
	r.SetMethodSelected("trace", true)
	assert.Equal(t, []string{"TRACE"}, r.Methods())
}

func TestAuth_Scopes(t *testing.T) {
	m := hydrate(t, threeRoutes)
	a := m.Routes()[0].Auth()

	assert.ErrorIs(t, a.AddScope(), ErrBlankScope)
	a.SetPendingScope("  orders.read  ")
	require.NoError(t, a.AddScope())
	assert.Equal(t, "", a.PendingScope())
	assert.Equal(t, []string{"orders.read"}, a.Scopes())

	a.SetPendingScope("orders.read")
	assert.ErrorIs(t, a.AddScope(), ErrDuplicateScope)
	assert.Equal(t, "", a.PendingScope())
	assert.Len(t, a.Scopes(), 1)

	assert.ErrorIs(t, a.RemoveScope(), ErrNoSelection)
	assert.ErrorIs(t, a.SelectScope("missing"), ErrUnknownScope)
	require.NoError(t, a.SelectScope("orders.read"))
	require.NoError(t, a.RemoveScope())
	_, selected := a.SelectedScope()
	assert.False(t, selected)
	assert.Empty(t, a.Scopes())

	a.SetProviderKey("Bearer")
	assert.Equal(t, "Bearer", m.Snapshot().Routes[0].AuthenticationOptions.AuthenticationProviderKey)
}

func TestToDocument_Gate(t *testing.T) {
	m := hydrate(t, threeRoutes)
	doc, err := m.ToDocument()
	require.NoError(t, err)
	assert.Len(t, doc.Routes, 3)

	m.Routes()[1].SetUpstreamPathTemplate("")
	_, err = m.ToDocument()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, routeconfig.MsgInvalidRoutes, ve.Message)
	require.NotEmpty(t, ve.Issues)
	assert.Equal(t, 1, ve.Issues[0].Route)

	for _, r := range m.Routes() {
		require.NoError(t, m.DeleteRoute(r))
	}
	_, err = m.ToDocument()
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, routeconfig.MsgNoRoutes, ve.Message)
}

func TestBus_CancelDuringPublish(t *testing.T) {
	var b Bus
	var calls []string
	var cancelA func()
	cancelA = b.Subscribe(func(Change) {
		calls = append(calls, "a")
		cancelA()
	})
	b.Subscribe(func(Change) { calls = append(calls, "b") })

	b.Publish(Change{Kind: ChangeField})
	b.Publish(Change{Kind: ChangeField})
	assert.Equal(t, []string{"a", "b", "b"}, calls)
	cancelA()
}

const extendedDocJSON = `{
  "routes": [{
    "upstreamPathTemplate": "/api/orders/{id}",
    "upstreamHttpMethod": ["GET", "OPTIONS"],
    "downstreamPathTemplate": "/orders/{id}",
    "downstreamScheme": "https",
    "downstreamHostAndPorts": [{"host": "orders.internal", "port": 8443, "weight": 3}],
    "routeIsCaseSensitive": true,
    "authenticationOptions": {
      "authenticationProviderKey": "Bearer",
      "allowedScopes": ["orders.read"],
      "audience": {"name": "orders"}
    },
    "rateLimitOptions": {"enableRateLimiting": true},
    "priority": 2
  }],
  "globalConfiguration": {"baseUrl": "https://gateway.example", "requestIdKey": "X-Request-Id"},
  "aggregates": []
}`
