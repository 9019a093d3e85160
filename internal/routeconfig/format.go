package routeconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Format renders doc as two-space indented JSON with a trailing newline.
// Recognized keys come first in schema order, followed by each object's
// extension keys in the order they were read.
func Format(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("format: nil document")
	}
	style := doc.KeyStyle
	if style == "" {
		style = KeyStyleCamel
	}

	var compact bytes.Buffer
	w := objectWriter{buf: &compact, style: style}
	w.begin()
	w.array(keyRoutes, len(doc.Routes), func(i int) {
		if err := writeRoute(&compact, style, doc.Routes[i]); err != nil && w.err == nil {
			w.err = fmt.Errorf("routes[%d]: %w", i, err)
		}
	})
	w.object(keyGlobalConfiguration, func(g *objectWriter) {
		g.str(keyBaseURL, doc.Global.BaseURL)
		g.extensions(doc.Global.Extensions)
	})
	w.extensions(doc.Extensions)
	w.end()
	if w.err != nil {
		return nil, fmt.Errorf("format: %w", w.err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeRoute(buf *bytes.Buffer, style KeyStyle, r Route) error {
	w := objectWriter{buf: buf, style: style}
	w.begin()
	w.str(keyUpstreamPathTemplate, r.UpstreamPathTemplate)
	w.strs(keyUpstreamHTTPMethod, r.UpstreamHTTPMethod)
	w.str(keyDownstreamPathTemplate, r.DownstreamPathTemplate)
	scheme := r.DownstreamScheme
	if scheme == "" {
		scheme = DefaultScheme
	}
	w.str(keyDownstreamScheme, scheme)
	w.array(keyDownstreamHostAndPorts, len(r.DownstreamHostAndPorts), func(i int) {
		h := r.DownstreamHostAndPorts[i]
		hw := objectWriter{buf: buf, style: style}
		hw.begin()
		hw.str(keyHost, h.Host)
		hw.raw(keyPort, strconv.AppendInt(nil, int64(h.Port), 10))
		hw.extensions(h.Extensions)
		hw.end()
		if hw.err != nil && w.err == nil {
			w.err = hw.err
		}
	})
	w.boolean(keyRouteIsCaseSensitive, r.RouteIsCaseSensitive)
	w.object(keyAuthenticationOptions, func(a *objectWriter) {
		a.str(keyAuthProviderKey, r.AuthenticationOptions.AuthenticationProviderKey)
		a.strs(keyAllowedScopes, r.AuthenticationOptions.AllowedScopes)
		a.extensions(r.AuthenticationOptions.Extensions)
	})
	w.extensions(r.Extensions)
	w.end()
	return w.err
}

// objectWriter emits one compact JSON object. Errors are sticky.
type objectWriter struct {
	buf   *bytes.Buffer
	style KeyStyle
	n     int
	err   error
}

func (w *objectWriter) begin() { w.buf.WriteByte('{') }
func (w *objectWriter) end()   { w.buf.WriteByte('}') }

func (w *objectWriter) name(key string) {
	if w.n > 0 {
		w.buf.WriteByte(',')
	}
	w.n++
	w.buf.Write(encodeString(key))
	w.buf.WriteByte(':')
}

func (w *objectWriter) str(camel, value string) {
	w.name(w.style.key(camel))
	w.buf.Write(encodeString(value))
}

func (w *objectWriter) strs(camel string, values []string) {
	w.name(w.style.key(camel))
	w.buf.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		w.buf.Write(encodeString(v))
	}
	w.buf.WriteByte(']')
}

func (w *objectWriter) boolean(camel string, v bool) {
	w.name(w.style.key(camel))
	if v {
		w.buf.WriteString("true")
	} else {
		w.buf.WriteString("false")
	}
}

func (w *objectWriter) raw(camel string, v []byte) {
	w.name(w.style.key(camel))
	w.buf.Write(v)
}

func (w *objectWriter) array(camel string, n int, item func(i int)) {
	w.name(w.style.key(camel))
	w.buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		item(i)
	}
	w.buf.WriteByte(']')
}

func (w *objectWriter) object(camel string, fill func(*objectWriter)) {
	w.name(w.style.key(camel))
	inner := objectWriter{buf: w.buf, style: w.style}
	inner.begin()
	fill(&inner)
	inner.end()
	if inner.err != nil && w.err == nil {
		w.err = inner.err
	}
}

// extensions writes preserved members under their original keys.
func (w *objectWriter) extensions(ext Extensions) {
	for _, m := range ext.members {
		raw := compactOrSelf(m.Value.raw)
		if !json.Valid(raw) {
			if w.err == nil {
				w.err = fmt.Errorf("extension %q holds invalid JSON", m.Key)
			}
			continue
		}
		w.name(m.Key)
		w.buf.Write(raw)
	}
}

func encodeString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
