package editor

// Tracker keeps the unsaved-changes flag of a model. It is cleared by
// ChangeLoaded and MarkSaved and set by any mutating change that reaches the
// bus. Changes dropped by a Suppression never reach it.
type Tracker struct {
	dirty     bool
	cancel    func()
	listeners []func(dirty bool)
}

func NewTracker(bus *Bus) *Tracker {
	t := &Tracker{}
	t.cancel = bus.Subscribe(t.observe)
	return t
}

func (t *Tracker) Dirty() bool { return t.dirty }

// MarkSaved clears the flag after a successful save.
func (t *Tracker) MarkSaved() { t.set(false) }

// OnChange registers fn to run whenever the flag flips.
func (t *Tracker) OnChange(fn func(dirty bool)) {
	t.listeners = append(t.listeners, fn)
}

// Close detaches the tracker from its bus.
func (t *Tracker) Close() {
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Tracker) observe(c Change) {
	switch {
	case c.Kind == ChangeLoaded:
		t.set(false)
	case c.Kind.Mutates():
		t.set(true)
	}
}

func (t *Tracker) set(dirty bool) {
	if t.dirty == dirty {
		return
	}
	t.dirty = dirty
	for _, fn := range t.listeners {
		fn(dirty)
	}
}
