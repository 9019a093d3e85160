package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upstreams(rs []*Route) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.UpstreamPathTemplate())
	}
	return out
}

func hostNames(hs []*Host) []string {
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.Host())
	}
	return out
}

func TestRouteView_UpstreamFilter(t *testing.T) {
	m := hydrate(t, threeRoutes)
	v := NewRouteView(m)
	defer v.Close()

	v.SetUpstreamFilter("a/")
	assert.Equal(t, []string{"a/b", "a/c"}, upstreams(v.Items()))

	v.SetUpstreamFilter("")
	assert.Equal(t, []string{"a/b", "a/c", "x/y"}, upstreams(v.Items()))

	v.SetUpstreamFilter("   ")
	assert.Equal(t, 3, v.Len(), "whitespace matches everything")
}

func TestRouteView_BothFiltersMustMatch(t *testing.T) {
	m := hydrate(t, threeRoutes)
	v := NewRouteView(m)

	v.SetUpstreamFilter("A/")
	v.SetDownstreamFilter("TWO")
	assert.Equal(t, []string{"a/c"}, upstreams(v.Items()))

	v.SetUpstreamFilter("")
	assert.Equal(t, []string{"a/c"}, upstreams(v.Items()))
}

func TestRouteView_FollowsModel(t *testing.T) {
	m := hydrate(t, threeRoutes)
	v := NewRouteView(m)
	v.SetUpstreamFilter("a/")
	rs := m.Routes()

	rs[2].SetUpstreamPathTemplate("a/z")
	assert.Equal(t, []string{"a/b", "a/c", "a/z"}, upstreams(v.Items()))

	require.NoError(t, m.MoveRoute(rs[2], -2))
	assert.Equal(t, []string{"a/z", "a/b", "a/c"}, upstreams(v.Items()))

	require.NoError(t, m.DeleteRoute(rs[0]))
	assert.Equal(t, []string{"a/z", "a/c"}, upstreams(v.Items()))

	added := m.AddRoute()
	assert.False(t, v.Contains(added), "an empty template does not match a non-blank filter")
	added.SetUpstreamPathTemplate("A/NEW")
	assert.True(t, v.Contains(added))

	require.NoError(t, m.Hydrate(parseDoc(t, `{"routes":[{"upstreamPathTemplate":"x"}]}`)))
	assert.Equal(t, 0, v.Len())
}

func TestRouteView_SelectionSurvivesFiltering(t *testing.T) {
	m := hydrate(t, threeRoutes)
	v := NewRouteView(m)
	target := m.Routes()[2]
	require.NoError(t, m.SelectRoute(target))

	v.SetUpstreamFilter("a/")
	assert.False(t, v.Contains(target))
	assert.Same(t, target, m.Selected())

	v.SetUpstreamFilter("")
	assert.Same(t, target, m.Selected())
}

func TestHostView_Filters(t *testing.T) {
	m := hydrate(t, `{"routes":[{"downstreamHostAndPorts":[
  {"host":"Alpha.internal","port":8080},
  {"host":"beta.internal","port":9080},
  {"host":"gamma","port":443}
]}]}`)
	r := m.Routes()[0]
	v := NewHostView(r)
	defer v.Close()

	v.SetHostFilter("INTERNAL")
	assert.Equal(t, []string{"Alpha.internal", "beta.internal"}, hostNames(v.Items()))

	v.SetPortFilter("080")
	assert.Equal(t, []string{"Alpha.internal", "beta.internal"}, hostNames(v.Items()))

	v.SetPortFilter("90")
	assert.Equal(t, []string{"beta.internal"}, hostNames(v.Items()))

	v.SetHostFilter("")
	v.SetPortFilter("")
	assert.Equal(t, 3, v.Len())

	v.SetHostFilter("gam")
	h := r.AddHost()
	assert.False(t, v.Contains(h))
	h.SetHost("gamma-2")
	assert.True(t, v.Contains(h))
	require.NoError(t, r.RemoveHost(h))
	assert.Equal(t, []string{"gamma"}, hostNames(v.Items()))
}

func TestHostView_IgnoresOtherRoutes(t *testing.T) {
	m := hydrate(t, threeRoutes)
	rs := m.Routes()
	v := NewHostView(rs[0])
	rs[1].AddHost()
	rs[1].Hosts()[0].SetHost("h1-lookalike")
	assert.Equal(t, []string{"h1"}, hostNames(v.Items()))
}

func TestHostView_ClosesWhenRouteDetached(t *testing.T) {
	m := hydrate(t, threeRoutes)
	r := m.Routes()[0]
	v := NewHostView(r)
	subs := len(m.Bus().subs)

	require.NoError(t, m.DeleteRoute(r))
	assert.Len(t, m.Bus().subs, subs-1)
	assert.Nil(t, v.cancel)
}
