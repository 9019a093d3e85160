package tui

// bridge answers the session's dialog and file prompts. The terminal UI
// asks the user first, then arms the answer and calls the session, so the
// session never blocks the update loop.
type bridge struct {
	answer    bool
	readPath  string
	writePath string

	errMsg string
	notice string
}

func (b *bridge) Notify(message, title string) { b.notice = message }

func (b *bridge) NotifyError(message, title string) { b.errMsg = message }

func (b *bridge) Confirm(message, title string) bool { return b.answer }

func (b *bridge) OpenForRead(string) (string, bool) {
	return b.readPath, b.readPath != ""
}

func (b *bridge) OpenForWrite(_ string, suggested string) (string, bool) {
	if b.writePath != "" {
		return b.writePath, true
	}
	return suggested, suggested != ""
}

// arm sets the answers for the next session call and returns a func that
// clears them.
func (b *bridge) arm(answer bool, readPath, writePath string) func() {
	b.answer, b.readPath, b.writePath = answer, readPath, writePath
	return func() { b.answer, b.readPath, b.writePath = false, "", "" }
}

// takeError returns and clears the last reported error.
func (b *bridge) takeError() string {
	msg := b.errMsg
	b.errMsg = ""
	return msg
}
