package routeconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

const (
	keyRoutes                 = "routes"
	keyGlobalConfiguration    = "globalConfiguration"
	keyBaseURL                = "baseUrl"
	keyUpstreamPathTemplate   = "upstreamPathTemplate"
	keyUpstreamHTTPMethod     = "upstreamHttpMethod"
	keyDownstreamPathTemplate = "downstreamPathTemplate"
	keyDownstreamScheme       = "downstreamScheme"
	keyDownstreamHostAndPorts = "downstreamHostAndPorts"
	keyRouteIsCaseSensitive   = "routeIsCaseSensitive"
	keyAuthenticationOptions  = "authenticationOptions"
	keyAuthProviderKey        = "authenticationProviderKey"
	keyAllowedScopes          = "allowedScopes"
	keyHost                   = "host"
	keyPort                   = "port"
)

// Report describes how a document was read.
type Report struct {
	// Tolerant is true when comments or trailing commas had to be stripped.
	Tolerant bool
	KeyStyle KeyStyle
	// Warnings lists recognized keys whose values had the wrong type and
	// were replaced by defaults.
	Warnings []string
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Parse reads a routing document. Comments and trailing commas are accepted;
// if stripping them does not produce valid JSON the original text is used as
// is. Only content that is not a JSON object fails, with *FormatError.
func Parse(data []byte) (*Document, Report, error) {
	rep := Report{KeyStyle: KeyStyleCamel}
	text := normalizeInput(data)

	if len(bytes.TrimSpace(text)) == 0 {
		rep.warnf("empty document")
		return &Document{KeyStyle: KeyStyleCamel}, rep, nil
	}

	canonical, tolerant := tolerantJSON(text)
	if canonical != nil {
		text = canonical
		rep.Tolerant = tolerant
	}

	if bytes.Equal(bytes.TrimSpace(text), []byte("null")) {
		rep.warnf("document is null")
		return &Document{KeyStyle: KeyStyleCamel}, rep, nil
	}

	members, err := decodeObject(text)
	if err != nil {
		return nil, rep, &FormatError{Reason: "top level must be a JSON object", Err: err}
	}

	doc := &Document{KeyStyle: KeyStyleCamel}
	for _, m := range members {
		switch {
		case strings.EqualFold(m.key, keyRoutes):
			if m.key == KeyStylePascal.key(keyRoutes) {
				doc.KeyStyle = KeyStylePascal
			}
			doc.Routes = decodeRoutes(m.value, &rep)
		case strings.EqualFold(m.key, keyGlobalConfiguration):
			doc.Global = decodeGlobal(m.value, &rep)
		default:
			doc.Extensions.Set(m.key, Value{raw: m.value})
		}
	}
	rep.KeyStyle = doc.KeyStyle
	return doc, rep, nil
}

// tolerantJSON strips comments and trailing commas and returns compact JSON.
// It returns nil when the stripped text still is not valid JSON.
func tolerantJSON(text []byte) ([]byte, bool) {
	stripped := jsonc.ToJSON(text)
	var buf bytes.Buffer
	if err := json.Compact(&buf, stripped); err != nil {
		return nil, false
	}
	return buf.Bytes(), !json.Valid(text)
}

// normalizeInput strips a UTF-8 BOM and turns CRLF/CR into LF.
func normalizeInput(in []byte) []byte {
	in = bytes.TrimPrefix(in, []byte{0xEF, 0xBB, 0xBF})
	if bytes.IndexByte(in, '\r') < 0 {
		return in
	}
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		if in[i] != '\r' {
			out = append(out, in[i])
			continue
		}
		if i+1 < len(in) && in[i+1] == '\n' {
			i++
		}
		out = append(out, '\n')
	}
	return out
}

type member struct {
	key   string
	value json.RawMessage
}

var errNotObject = errors.New("not a JSON object")

// decodeObject returns the members of a JSON object in document order.
func decodeObject(raw []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}
	var out []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		out = append(out, member{key: key, value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err == nil {
		return nil, errors.New("trailing data after top-level object")
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeGlobal(raw json.RawMessage, rep *Report) GlobalSettings {
	var out GlobalSettings
	if isNull(raw) {
		return out
	}
	members, err := decodeObject(raw)
	if err != nil {
		rep.warnf("%s: expected object, using defaults", keyGlobalConfiguration)
		return out
	}
	for _, m := range members {
		if strings.EqualFold(m.key, keyBaseURL) {
			out.BaseURL = decodeString(m.value, keyGlobalConfiguration+"."+keyBaseURL, rep)
			continue
		}
		out.Extensions.Set(m.key, Value{raw: m.value})
	}
	return out
}

func decodeRoutes(raw json.RawMessage, rep *Report) []Route {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		rep.warnf("%s: expected array, ignoring", keyRoutes)
		return nil
	}
	out := make([]Route, 0, len(items))
	for i, item := range items {
		members, err := decodeObject(item)
		if err != nil {
			rep.warnf("%s[%d]: expected object, skipping", keyRoutes, i)
			continue
		}
		out = append(out, decodeRoute(members, fmt.Sprintf("%s[%d]", keyRoutes, i), rep))
	}
	return out
}

func decodeRoute(members []member, where string, rep *Report) Route {
	r := NewRoute()
	for _, m := range members {
		field := where + "." + m.key
		switch {
		case strings.EqualFold(m.key, keyUpstreamPathTemplate):
			r.UpstreamPathTemplate = decodeString(m.value, field, rep)
		case strings.EqualFold(m.key, keyUpstreamHTTPMethod):
			r.UpstreamHTTPMethod = decodeStrings(m.value, field, rep)
		case strings.EqualFold(m.key, keyDownstreamPathTemplate):
			r.DownstreamPathTemplate = decodeString(m.value, field, rep)
		case strings.EqualFold(m.key, keyDownstreamScheme):
			if s := decodeString(m.value, field, rep); strings.TrimSpace(s) != "" {
				r.DownstreamScheme = s
			}
		case strings.EqualFold(m.key, keyDownstreamHostAndPorts):
			r.DownstreamHostAndPorts = decodeHosts(m.value, field, rep)
		case strings.EqualFold(m.key, keyRouteIsCaseSensitive):
			r.RouteIsCaseSensitive = decodeBool(m.value, field, rep)
		case strings.EqualFold(m.key, keyAuthenticationOptions):
			r.AuthenticationOptions = decodeAuth(m.value, field, rep)
		default:
			r.Extensions.Set(m.key, Value{raw: m.value})
		}
	}
	return r
}

func decodeHosts(raw json.RawMessage, where string, rep *Report) []HostAndPort {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		rep.warnf("%s: expected array, ignoring", where)
		return nil
	}
	out := make([]HostAndPort, 0, len(items))
	for i, item := range items {
		members, err := decodeObject(item)
		if err != nil {
			rep.warnf("%s[%d]: expected object, skipping", where, i)
			continue
		}
		var h HostAndPort
		for _, m := range members {
			field := fmt.Sprintf("%s[%d].%s", where, i, m.key)
			switch {
			case strings.EqualFold(m.key, keyHost):
				h.Host = decodeString(m.value, field, rep)
			case strings.EqualFold(m.key, keyPort):
				h.Port = decodePort(m.value, field, rep)
			default:
				h.Extensions.Set(m.key, Value{raw: m.value})
			}
		}
		out = append(out, h)
	}
	return out
}

func decodeAuth(raw json.RawMessage, where string, rep *Report) AuthOptions {
	var out AuthOptions
	if isNull(raw) {
		return out
	}
	members, err := decodeObject(raw)
	if err != nil {
		rep.warnf("%s: expected object, using defaults", where)
		return out
	}
	for _, m := range members {
		field := where + "." + m.key
		switch {
		case strings.EqualFold(m.key, keyAuthProviderKey):
			out.AuthenticationProviderKey = decodeString(m.value, field, rep)
		case strings.EqualFold(m.key, keyAllowedScopes):
			out.AllowedScopes = uniqueStrings(decodeStrings(m.value, field, rep))
		default:
			out.Extensions.Set(m.key, Value{raw: m.value})
		}
	}
	return out
}

func decodeString(raw json.RawMessage, where string, rep *Report) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		rep.warnf("%s: expected string, using empty value", where)
		return ""
	}
	return s
}

func decodeBool(raw json.RawMessage, where string, rep *Report) bool {
	if isNull(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		rep.warnf("%s: expected boolean, using false", where)
		return false
	}
	return b
}

func decodeStrings(raw json.RawMessage, where string, rep *Report) []string {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		rep.warnf("%s: expected array of strings, ignoring", where)
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			rep.warnf("%s[%d]: expected string, skipping", where, i)
			continue
		}
		out = append(out, s)
	}
	return out
}

// decodePort accepts a JSON integer, an integral JSON number such as 8080.0,
// or a string holding an integer. Anything else becomes 0, which validation
// rejects.
func decodePort(raw json.RawMessage, where string, rep *Report) int {
	if isNull(raw) {
		return 0
	}
	text := string(bytes.TrimSpace(raw))
	quoted := strings.HasPrefix(text, `"`)
	if quoted {
		if err := json.Unmarshal(raw, &text); err != nil {
			rep.warnf("%s: expected integer, using 0", where)
			return 0
		}
	}
	port, ok := ParsePort(text)
	if !ok && !quoted {
		port, ok = integralNumber(text)
	}
	if !ok {
		rep.warnf("%s: %q is not an integer, using 0", where, text)
		return 0
	}
	return port
}

func integralNumber(text string) (int, bool) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// ParsePort parses the decimal integer form of a port.
func ParsePort(text string) (int, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
