package routeconfig

import (
	"bytes"
	"encoding/json"
)

// Kind classifies an opaque JSON value without decoding it.
type Kind int

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// Value is a JSON value carried verbatim. The editor never looks inside it.
type Value struct {
	raw json.RawMessage
}

// RawValue wraps already-encoded JSON. The bytes are copied and compacted;
// invalid JSON yields a Value whose Kind is KindInvalid.
func RawValue(raw []byte) Value {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return Value{raw: append(json.RawMessage(nil), raw...)}
	}
	return Value{raw: buf.Bytes()}
}

// MustValue encodes v as JSON and panics on failure. Intended for tests and
// literals.
func MustValue(v any) Value {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Value{raw: raw}
}

func (v Value) Kind() Kind {
	raw := bytes.TrimSpace(v.raw)
	if len(raw) == 0 || !json.Valid(raw) {
		return KindInvalid
	}
	switch raw[0] {
	case 'n':
		return KindNull
	case 't', 'f':
		return KindBool
	case '"':
		return KindString
	case '[':
		return KindArray
	case '{':
		return KindObject
	default:
		return KindNumber
	}
}

// Raw returns a copy of the encoded value.
func (v Value) Raw() json.RawMessage {
	return append(json.RawMessage(nil), v.raw...)
}

// Equal reports whether both values encode the same JSON text once
// insignificant whitespace is removed.
func (v Value) Equal(other Value) bool {
	return bytes.Equal(compactOrSelf(v.raw), compactOrSelf(other.raw))
}

func (v Value) String() string {
	return string(v.raw)
}

func compactOrSelf(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// Member is one key of an Extensions mapping.
type Member struct {
	Key   string
	Value Value
}

// Extensions holds the keys of a JSON object that the schema does not know,
// in the order they were read.
type Extensions struct {
	members []Member
}

func (e Extensions) Len() int {
	return len(e.members)
}

func (e Extensions) Get(key string) (Value, bool) {
	for _, m := range e.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Set replaces the value of an existing key in place or appends a new one.
func (e *Extensions) Set(key string, v Value) {
	for i := range e.members {
		if e.members[i].Key == key {
			e.members[i].Value = v
			return
		}
	}
	e.members = append(e.members, Member{Key: key, Value: v})
}

func (e *Extensions) Delete(key string) bool {
	for i := range e.members {
		if e.members[i].Key == key {
			e.members = append(e.members[:i], e.members[i+1:]...)
			return true
		}
	}
	return false
}

func (e Extensions) Keys() []string {
	out := make([]string, 0, len(e.members))
	for _, m := range e.members {
		out = append(out, m.Key)
	}
	return out
}

// Members returns the entries in order. The slice is a copy.
func (e Extensions) Members() []Member {
	return append([]Member(nil), e.members...)
}

// Clone returns a deep copy; no byte slice is shared with the receiver.
func (e Extensions) Clone() Extensions {
	if len(e.members) == 0 {
		return Extensions{}
	}
	out := make([]Member, len(e.members))
	for i, m := range e.members {
		out[i] = Member{Key: m.Key, Value: Value{raw: m.Value.Raw()}}
	}
	return Extensions{members: out}
}

// Equal compares key order and values.
func (e Extensions) Equal(other Extensions) bool {
	if len(e.members) != len(other.members) {
		return false
	}
	for i := range e.members {
		if e.members[i].Key != other.members[i].Key || !e.members[i].Value.Equal(other.members[i].Value) {
			return false
		}
	}
	return true
}
