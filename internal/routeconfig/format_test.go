package routeconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_BlankDocument(t *testing.T) {
	out, err := Format(Blank())
	require.NoError(t, err)

	want := `{
  "routes": [
    {
      "upstreamPathTemplate": "",
      "upstreamHttpMethod": [],
      "downstreamPathTemplate": "",
      "downstreamScheme": "http",
      "downstreamHostAndPorts": [],
      "routeIsCaseSensitive": false,
      "authenticationOptions": {
        "authenticationProviderKey": "",
        "allowedScopes": []
      }
    }
  ],
  "globalConfiguration": {
    "baseUrl": ""
  }
}
`
	assert.Equal(t, want, string(out))
}

func TestFormat_RoundTripPreservesEverything(t *testing.T) {
	first, _, err := Parse([]byte(extendedDoc))
	require.NoError(t, err)

	out, err := Format(first)
	require.NoError(t, err)

	second, rep, err := Parse(out)
	require.NoError(t, err)
	assert.Empty(t, rep.Warnings)
	assert.Equal(t, first, second)

	again, err := Format(second)
	require.NoError(t, err)
	assert.Equal(t, string(out), string(again), "format must be stable")
}

func TestFormat_ExtensionsFollowRecognizedKeys(t *testing.T) {
	doc, _, err := Parse([]byte(`{"zeta":1,"routes":[{"x":true,"upstreamPathTemplate":"/a"}],"alpha":null}`))
	require.NoError(t, err)
	out, err := Format(doc)
	require.NoError(t, err)
	text := string(out)

	idx := func(s string) int {
		i := strings.Index(text, s)
		require.GreaterOrEqual(t, i, 0, "missing %s", s)
		return i
	}
	assert.Less(t, idx(`"routes"`), idx(`"globalConfiguration"`))
	assert.Less(t, idx(`"globalConfiguration"`), idx(`"zeta"`))
	assert.Less(t, idx(`"zeta"`), idx(`"alpha": null`))
	assert.Less(t, idx(`"authenticationOptions"`), idx(`"x": true`))
}

func TestFormat_PascalCaseRoundTrip(t *testing.T) {
	in := `{"Routes":[{"UpstreamPathTemplate":"/u","DownstreamPathTemplate":"/d","DownstreamHostAndPorts":[{"Host":"h","Port":1}],"QoSOptions":{}}],"GlobalConfiguration":{"BaseUrl":"http://gw"}}`
	doc, _, err := Parse([]byte(in))
	require.NoError(t, err)
	out, err := Format(doc)
	require.NoError(t, err)
	text := string(out)

	for _, key := range []string{`"Routes"`, `"UpstreamPathTemplate"`, `"UpstreamHttpMethod"`, `"DownstreamHostAndPorts"`, `"Host"`, `"Port"`, `"AuthenticationOptions"`, `"AllowedScopes"`, `"GlobalConfiguration"`, `"BaseUrl"`, `"QoSOptions"`} {
		assert.Contains(t, text, key)
	}
	assert.NotContains(t, text, `"routes"`)
	assert.NotContains(t, text, `"upstreamPathTemplate"`)

	back, rep, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, KeyStylePascal, rep.KeyStyle)
	again, err := Format(back)
	require.NoError(t, err)
	assert.Equal(t, text, string(again))
}

func TestFormat_DoesNotEscapeHTML(t *testing.T) {
	doc := Blank()
	doc.Routes[0].UpstreamPathTemplate = "/a?x=<y>&z"
	out, err := Format(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"/a?x=<y>&z"`)
}

func TestFormat_InvalidExtensionFails(t *testing.T) {
	doc := Blank()
	doc.Routes[0].Extensions.Set("broken", RawValue([]byte(`{"a":`)))
	_, err := Format(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestFormat_NilDocument(t *testing.T) {
	_, err := Format(nil)
	require.Error(t, err)
}

func TestExtensions_SetDeleteClone(t *testing.T) {
	var ext Extensions
	ext.Set("a", MustValue(1))
	ext.Set("b", MustValue("two"))
	ext.Set("a", MustValue([]int{3}))
	assert.Equal(t, []string{"a", "b"}, ext.Keys())
	v, ok := ext.Get("a")
	require.True(t, ok)
	assert.Equal(t, KindArray, v.Kind())

	cp := ext.Clone()
	require.True(t, cp.Delete("a"))
	assert.False(t, cp.Delete("a"))
	assert.Equal(t, 2, ext.Len())
	assert.Equal(t, 1, cp.Len())
	assert.False(t, ext.Equal(cp))
	assert.True(t, ext.Equal(ext.Clone()))

	assert.True(t, RawValue([]byte(`{ "k" : 1 }`)).Equal(MustValue(map[string]int{"k": 1})))
	assert.Equal(t, KindInvalid, RawValue([]byte(`{`)).Kind())
}

func TestRouteClone_IsDeep(t *testing.T) {
	doc, _, err := Parse([]byte(extendedDoc))
	require.NoError(t, err)
	orig := doc.Routes[0]
	cp := orig.Clone()
	require.Equal(t, orig, cp)

	cp.UpstreamHTTPMethod[0] = "PUT"
	cp.DownstreamHostAndPorts[0].Host = "other"
	cp.AuthenticationOptions.AllowedScopes[0] = "changed"
	cp.Extensions.Set("priority", MustValue(9))

	assert.Equal(t, "GET", orig.UpstreamHTTPMethod[0])
	assert.Equal(t, "orders.internal", orig.DownstreamHostAndPorts[0].Host)
	assert.Equal(t, "orders.read", orig.AuthenticationOptions.AllowedScopes[0])
	v, _ := orig.Extensions.Get("priority")
	assert.Equal(t, "2", v.String())
}
