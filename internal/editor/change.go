package editor

import "fmt"

// ChangeKind classifies a change published on the model's bus.
type ChangeKind int

const (
	// ChangeLoaded is published once after every Hydrate.
	ChangeLoaded ChangeKind = iota
	ChangeField
	ChangeRouteAdded
	ChangeRouteRemoved
	ChangeRouteMoved
	ChangeHostAdded
	ChangeHostRemoved
	// ChangeSelection covers route, host and scope selection.
	ChangeSelection
	// ChangePending is an edit of the new-scope text box.
	ChangePending
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeLoaded:
		return "loaded"
	case ChangeField:
		return "field"
	case ChangeRouteAdded:
		return "route_added"
	case ChangeRouteRemoved:
		return "route_removed"
	case ChangeRouteMoved:
		return "route_moved"
	case ChangeHostAdded:
		return "host_added"
	case ChangeHostRemoved:
		return "host_removed"
	case ChangeSelection:
		return "selection"
	case ChangePending:
		return "pending"
	default:
		return fmt.Sprintf("change(%d)", int(k))
	}
}

// Mutates reports whether the change alters persisted content.
func (k ChangeKind) Mutates() bool {
	switch k {
	case ChangeLoaded, ChangeSelection, ChangePending:
		return false
	default:
		return true
	}
}

// Field names the edited attribute of a ChangeField or ChangeSelection.
type Field string

const (
	FieldUpstreamPathTemplate   Field = "upstreamPathTemplate"
	FieldDownstreamPathTemplate Field = "downstreamPathTemplate"
	FieldDownstreamScheme       Field = "downstreamScheme"
	FieldCaseSensitive          Field = "routeIsCaseSensitive"
	FieldMethods                Field = "upstreamHttpMethod"
	FieldHost                   Field = "host"
	FieldPort                   Field = "port"
	FieldProviderKey            Field = "authenticationProviderKey"
	FieldScopes                 Field = "allowedScopes"
	FieldBaseURL                Field = "baseUrl"

	FieldSelectedRoute Field = "selectedRoute"
	FieldSelectedHost  Field = "selectedHost"
	FieldSelectedScope Field = "selectedScope"
	FieldPendingScope  Field = "pendingScope"
)

// Change is one typed notification. Route and Host are nil when the change
// is not about a specific route or host.
type Change struct {
	Kind  ChangeKind
	Route *Route
	Host  *Host
	Field Field
}

type Listener func(Change)

type subscription struct {
	fn     Listener
	active bool
}

// Bus delivers changes synchronously, in subscription order. It is not safe
// for concurrent use.
type Bus struct {
	subs       []*subscription
	suppressed bool
}

// Subscribe registers fn and returns a function that removes it. The cancel
// function may be called more than once, including from inside fn.
func (b *Bus) Subscribe(fn Listener) (cancel func()) {
	s := &subscription{fn: fn, active: true}
	b.subs = append(b.subs, s)
	return func() {
		if !s.active {
			return
		}
		s.active = false
		for i, other := range b.subs {
			if other == s {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers c to every listener, or drops it while suppressed.
func (b *Bus) Publish(c Change) {
	if b.suppressed {
		return
	}
	subs := append([]*subscription(nil), b.subs...)
	for _, s := range subs {
		if s.active {
			s.fn(c)
		}
	}
}

func (b *Bus) Suppressed() bool {
	return b.suppressed
}

// Suppress drops every change until the returned token is released. Only
// one token can be held at a time.
func (b *Bus) Suppress() (*Suppression, error) {
	if b.suppressed {
		return nil, ErrSuppressionActive
	}
	b.suppressed = true
	return &Suppression{bus: b}, nil
}

// Suppression is the scope token returned by Bus.Suppress.
type Suppression struct {
	bus      *Bus
	released bool
}

// Release re-enables publishing. Calling it again has no effect.
func (s *Suppression) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	s.bus.suppressed = false
}
