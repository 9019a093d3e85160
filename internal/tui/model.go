// Package tui is the terminal front end of routedit. It renders an
// editor.Session and turns key presses into session and model operations.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nuetzliches/routedit/internal/editor"
	"github.com/nuetzliches/routedit/internal/routeconfig"
	"github.com/nuetzliches/routedit/internal/watch"
)

// field is a focusable row of the detail pane.
type field int

const (
	fieldUpstream field = iota
	fieldDownstream
	fieldScheme
	fieldCaseSensitive
	fieldMethods
	fieldHost
	fieldPort
	fieldProviderKey
	fieldScopes
	fieldBaseURL
	fieldCount
)

func (f field) label() string {
	switch f {
	case fieldUpstream:
		return "Upstream"
	case fieldDownstream:
		return "Downstream"
	case fieldScheme:
		return "Scheme"
	case fieldCaseSensitive:
		return "Case sensitive"
	case fieldMethods:
		return "Methods"
	case fieldHost:
		return "Host"
	case fieldPort:
		return "Port"
	case fieldProviderKey:
		return "Auth provider"
	case fieldScopes:
		return "Scopes"
	case fieldBaseURL:
		return "Base URL"
	default:
		return ""
	}
}

type inputMode int

const (
	inputNone inputMode = iota
	inputField
	inputFilterUpstream
	inputFilterDownstream
	inputScope
	inputOpenPath
	inputSavePath
)

type confirmation struct {
	message string
	run     func(m *Model) tea.Cmd
}

// Options configure a Model.
type Options struct {
	// Path is the file to open on start.
	Path    string
	Context context.Context
	Logger  *slog.Logger
	// Store defaults to routeconfig.FileStore.
	Store    editor.Persistence
	Recorder editor.Recorder
	// Lock, when set, is called before a file becomes the session's file.
	// It returns a func that gives the lock up again.
	Lock func(path string) (release func() error, err error)
	// Watch reports changes made to the open file by other programs.
	Watch    bool
	Debounce time.Duration
	Keys     *KeyMap
	Theme    *Theme
}

type fileEventMsg struct {
	ev   watch.Event
	from *watch.Watcher
}

// Model is the bubbletea model of the editor.
type Model struct {
	opts   Options
	ctx    context.Context
	logger *slog.Logger
	keys   KeyMap
	styles styles

	session *editor.Session
	bridge  *bridge
	gate    *editor.Gate
	routes  *editor.RouteView
	hosts   *editor.HostView

	field        field
	methodCursor int
	mode         inputMode
	input        textinput.Model
	confirm      *confirmation
	showDiff     bool

	// target is where the first save goes when the session has no path yet.
	target    string
	lastError string
	warning   string
	notice    string

	release    func() error
	lockedPath string
	lockErr    error
	watcher    *watch.Watcher

	width  int
	height int
}

var _ tea.Model = (*Model)(nil)

func New(opts Options) *Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Store == nil {
		opts.Store = routeconfig.FileStore{Logger: opts.Logger}
	}
	keys := DefaultKeyMap
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	theme := DefaultTheme
	if opts.Theme != nil {
		theme = *opts.Theme
	}

	b := &bridge{}
	sessionOpts := []editor.SessionOption{editor.WithLogger(opts.Logger)}
	if opts.Recorder != nil {
		sessionOpts = append(sessionOpts, editor.WithRecorder(opts.Recorder))
	}
	s := editor.NewSession(opts.Store, b, b, sessionOpts...)

	ti := textinput.New()
	ti.CharLimit = 2048

	m := &Model{
		opts:    opts,
		ctx:     opts.Context,
		logger:  opts.Logger,
		keys:    keys,
		styles:  newStyles(theme),
		session: s,
		bridge:  b,
		gate:    editor.NewGate(s.Model()),
		routes:  editor.NewRouteView(s.Model()),
		input:   ti,
	}
	m.syncHosts()
	return m
}

func (m *Model) Session() *editor.Session { return m.session }

// Load opens path as the session's file. Failures are kept in the status
// line and reported as false.
func (m *Model) Load(path string) bool {
	ok := m.withLock(path, func() bool {
		return m.session.LoadPath(m.ctx, path) == nil
	})
	m.collect()
	m.syncHosts()
	return ok
}

// Target makes path the destination of the first save without loading it.
func (m *Model) Target(path string) bool {
	if !m.withLock(path, func() bool { return true }) {
		return false
	}
	m.target = path
	m.session.SetStatus(editor.StatusNew)
	return true
}

// LastError is the message of the most recent failure shown to the user.
func (m *Model) LastError() string { return m.lastError }

// failure returns the lock error of the last lock attempt, or the last
// reported message as an error.
func (m *Model) failure() error {
	if m.lockErr != nil {
		return m.lockErr
	}
	return errors.New(m.lastError)
}

// Close stops watching, releases the file lock and detaches the views.
func (m *Model) Close() {
	m.stopWatch()
	m.unlock()
	if m.hosts != nil {
		m.hosts.Close()
	}
	m.routes.Close()
	m.gate.Close()
}

func (m *Model) Init() tea.Cmd {
	return m.rewatch()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case fileEventMsg:
		cmd = m.handleFileEvent(msg)
	case tea.KeyMsg:
		switch {
		case m.confirm != nil:
			cmd = m.handleConfirmKeys(msg)
		case m.mode != inputNone:
			cmd = m.handleInputKeys(msg)
		default:
			cmd = m.handleKeys(msg)
		}
		m.collect()
		m.syncHosts()
	}
	return m, cmd
}

// collect moves messages the session reported through the bridge into the
// status line.
func (m *Model) collect() {
	if msg := m.bridge.takeError(); msg != "" {
		m.lastError = msg
	}
	if m.bridge.notice != "" {
		m.notice, m.bridge.notice = m.bridge.notice, ""
	}
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) tea.Cmd {
	c := m.confirm
	m.confirm = nil
	if key.Matches(msg, m.keys.Yes) {
		return c.run(m)
	}
	m.notice = "Cancelled"
	return nil
}

func (m *Model) ask(message string, run func(m *Model) tea.Cmd) {
	m.confirm = &confirmation{message: message, run: run}
}

func (m *Model) handleKeys(msg tea.KeyMsg) tea.Cmd {
	m.lastError, m.notice = "", ""
	model := m.session.Model()
	sel := model.Selected()

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.session.Dirty() {
			m.ask(editor.MsgDiscardChanges, func(*Model) tea.Cmd { return tea.Quit })
			return nil
		}
		return tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(+1)
	case key.Matches(msg, m.keys.NextField):
		m.field = (m.field + 1) % fieldCount
	case key.Matches(msg, m.keys.PrevField):
		m.field = (m.field + fieldCount - 1) % fieldCount
	case key.Matches(msg, m.keys.Prev):
		m.step(-1)
	case key.Matches(msg, m.keys.Next):
		m.step(+1)

	case key.Matches(msg, m.keys.AddRoute):
		if m.gate.Enabled(editor.CmdAddRoute) {
			model.AddRoute()
			m.field = fieldUpstream
		}
	case key.Matches(msg, m.keys.DuplicateRoute):
		if m.gate.Enabled(editor.CmdDuplicateRoute) {
			_, err := model.DuplicateRoute(sel)
			m.report(err)
		}
	case key.Matches(msg, m.keys.DeleteRoute):
		if m.gate.Enabled(editor.CmdDeleteRoute) {
			m.ask(editor.MsgDeleteRoute, func(m *Model) tea.Cmd {
				defer m.bridge.arm(true, "", "")()
				m.session.DeleteSelectedRoute()
				return nil
			})
		}
	case key.Matches(msg, m.keys.MoveUp):
		if m.gate.Enabled(editor.CmdMoveRouteUp) {
			m.report(model.MoveRoute(sel, -1))
		}
	case key.Matches(msg, m.keys.MoveDown):
		if m.gate.Enabled(editor.CmdMoveRouteDown) {
			m.report(model.MoveRoute(sel, +1))
		}

	case key.Matches(msg, m.keys.FilterUpstream):
		return m.startInput(inputFilterUpstream, "upstream filter: ", m.routes.UpstreamFilter())
	case key.Matches(msg, m.keys.FilterDownstream):
		return m.startInput(inputFilterDownstream, "downstream filter: ", m.routes.DownstreamFilter())

	case key.Matches(msg, m.keys.Edit):
		return m.edit(sel)
	case key.Matches(msg, m.keys.ToggleMethod):
		if sel != nil {
			m.toggleMethod(sel)
		}
	case key.Matches(msg, m.keys.AddHost):
		if sel != nil && m.gate.Enabled(editor.CmdAddHost) {
			sel.AddHost()
			m.field = fieldHost
		}
	case key.Matches(msg, m.keys.RemoveHost):
		if m.gate.Enabled(editor.CmdRemoveHost) {
			m.report(sel.RemoveHost(sel.SelectedHost()))
		}
	case key.Matches(msg, m.keys.AddScope):
		if sel != nil {
			m.field = fieldScopes
			return m.startInput(inputScope, "new scope: ", sel.Auth().PendingScope())
		}
	case key.Matches(msg, m.keys.RemoveScope):
		if m.gate.Enabled(editor.CmdRemoveScope) {
			m.report(sel.Auth().RemoveScope())
		}

	case key.Matches(msg, m.keys.Diff):
		m.showDiff = !m.showDiff
	case key.Matches(msg, m.keys.New):
		if m.session.Dirty() {
			m.ask(editor.MsgDiscardChanges, (*Model).newDocument)
			return nil
		}
		return m.newDocument()
	case key.Matches(msg, m.keys.Open):
		return m.startInput(inputOpenPath, "open: ", m.session.Path())
	case key.Matches(msg, m.keys.Save):
		return m.save(false)
	case key.Matches(msg, m.keys.SaveAs):
		return m.save(true)
	}
	return nil
}

func (m *Model) report(err error) {
	if err != nil {
		m.lastError = err.Error()
	}
}

// moveCursor selects the route delta rows away in the filtered list.
func (m *Model) moveCursor(delta int) {
	items := m.routes.Items()
	if len(items) == 0 {
		return
	}
	idx := slices.Index(items, m.session.Model().Selected())
	switch {
	case idx < 0:
		idx = 0
	default:
		idx = min(max(idx+delta, 0), len(items)-1)
	}
	m.report(m.session.Model().SelectRoute(items[idx]))
}

// step moves within the focused list field.
func (m *Model) step(delta int) {
	sel := m.session.Model().Selected()
	switch m.field {
	case fieldMethods:
		n := len(m.session.Model().MethodOptions())
		if n > 0 {
			m.methodCursor = (m.methodCursor + delta + n) % n
		}
	case fieldHost, fieldPort:
		if sel == nil || m.hosts == nil || m.hosts.Len() == 0 {
			return
		}
		items := m.hosts.Items()
		idx := slices.Index(items, sel.SelectedHost())
		idx = (idx + delta + len(items)) % len(items)
		m.report(sel.SelectHost(items[idx]))
	case fieldScopes:
		if sel == nil {
			return
		}
		scopes := sel.Auth().Scopes()
		if len(scopes) == 0 {
			return
		}
		cur, _ := sel.Auth().SelectedScope()
		idx := slices.Index(scopes, cur)
		idx = (idx + delta + len(scopes)) % len(scopes)
		m.report(sel.Auth().SelectScope(scopes[idx]))
	}
}

func (m *Model) toggleMethod(r *editor.Route) {
	options := m.session.Model().MethodOptions()
	if len(options) == 0 {
		return
	}
	m.methodCursor = min(m.methodCursor, len(options)-1)
	r.ToggleMethod(options[m.methodCursor])
}

// edit acts on the focused field: flags toggle, text fields open the input.
func (m *Model) edit(r *editor.Route) tea.Cmd {
	if m.field == fieldBaseURL {
		return m.startInput(inputField, "base url: ", m.session.Model().Global().BaseURL())
	}
	if r == nil {
		m.lastError = "No route selected"
		return nil
	}
	switch m.field {
	case fieldCaseSensitive:
		r.SetCaseSensitive(!r.CaseSensitive())
		return nil
	case fieldMethods:
		m.toggleMethod(r)
		return nil
	case fieldScopes:
		return m.startInput(inputScope, "new scope: ", r.Auth().PendingScope())
	case fieldHost, fieldPort:
		h := r.SelectedHost()
		if h == nil {
			m.lastError = "No host selected"
			return nil
		}
		if m.field == fieldHost {
			return m.startInput(inputField, "host: ", h.Host())
		}
		return m.startInput(inputField, "port: ", h.PortText())
	}
	return m.startInput(inputField, strings.ToLower(m.field.label())+": ", m.fieldValue(r))
}

func (m *Model) fieldValue(r *editor.Route) string {
	switch m.field {
	case fieldUpstream:
		return r.UpstreamPathTemplate()
	case fieldDownstream:
		return r.DownstreamPathTemplate()
	case fieldScheme:
		return r.DownstreamScheme()
	case fieldProviderKey:
		return r.Auth().ProviderKey()
	}
	return ""
}

func (m *Model) applyField(value string) {
	if m.field == fieldBaseURL {
		m.session.Model().Global().SetBaseURL(value)
		return
	}
	r := m.session.Model().Selected()
	if r == nil {
		return
	}
	switch m.field {
	case fieldUpstream:
		r.SetUpstreamPathTemplate(value)
	case fieldDownstream:
		r.SetDownstreamPathTemplate(value)
	case fieldScheme:
		r.SetDownstreamScheme(value)
	case fieldProviderKey:
		r.Auth().SetProviderKey(value)
	case fieldHost:
		if h := r.SelectedHost(); h != nil {
			h.SetHost(value)
		}
	case fieldPort:
		if h := r.SelectedHost(); h != nil {
			h.SetPortText(value)
		}
	}
}

func (m *Model) startInput(mode inputMode, prompt, value string) tea.Cmd {
	m.mode = mode
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) stopInput() {
	m.mode = inputNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.stopInput()
		return m.handleKeys(msg)
	case tea.KeyEsc:
		switch m.mode {
		case inputFilterUpstream:
			m.routes.SetUpstreamFilter("")
		case inputFilterDownstream:
			m.routes.SetDownstreamFilter("")
		}
		m.stopInput()
		return nil
	case tea.KeyEnter:
		return m.commitInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	value := m.input.Value()
	switch m.mode {
	case inputFilterUpstream:
		m.routes.SetUpstreamFilter(value)
	case inputFilterDownstream:
		m.routes.SetDownstreamFilter(value)
	case inputScope:
		if sel := m.session.Model().Selected(); sel != nil {
			sel.Auth().SetPendingScope(value)
		}
	}
	return cmd
}

func (m *Model) commitInput() tea.Cmd {
	mode, value := m.mode, m.input.Value()
	m.stopInput()

	switch mode {
	case inputField:
		m.applyField(value)
	case inputScope:
		sel := m.session.Model().Selected()
		if sel == nil {
			return nil
		}
		sel.Auth().SetPendingScope(value)
		if m.gate.Enabled(editor.CmdAddScope) {
			m.report(sel.Auth().AddScope())
		}
	case inputOpenPath:
		path := strings.TrimSpace(value)
		if path == "" {
			return nil
		}
		if m.session.Dirty() {
			m.ask(editor.MsgDiscardChanges, func(m *Model) tea.Cmd { return m.open(path) })
			return nil
		}
		return m.open(path)
	case inputSavePath:
		path := strings.TrimSpace(value)
		if path == "" {
			return nil
		}
		return m.saveAs(path)
	}
	return nil
}

func (m *Model) open(path string) tea.Cmd {
	m.withLock(path, func() bool {
		defer m.bridge.arm(true, path, "")()
		return m.session.Open(m.ctx)
	})
	m.target = ""
	return m.rewatch()
}

func (m *Model) newDocument() tea.Cmd {
	func() {
		defer m.bridge.arm(true, "", "")()
		m.session.New(m.ctx)
	}()
	m.target = ""
	m.unlock()
	return m.rewatch()
}

func (m *Model) save(as bool) tea.Cmd {
	path := m.watchedPath()
	if as || path == "" {
		return m.startInput(inputSavePath, "save as: ", path)
	}
	if m.session.Path() == "" {
		return m.saveAs(path)
	}
	m.withLock(path, func() bool { return m.session.Save(m.ctx) })
	return nil
}

func (m *Model) saveAs(path string) tea.Cmd {
	if m.withLock(path, func() bool {
		defer m.bridge.arm(false, "", path)()
		return m.session.SaveAs(m.ctx)
	}) {
		m.target = ""
	}
	return m.rewatch()
}

// withLock runs fn while holding the lock for path. The previous lock is
// given up only when fn succeeds.
func (m *Model) withLock(path string, fn func() bool) bool {
	if m.opts.Lock == nil || samePath(path, m.lockedPath) {
		return fn()
	}
	release, err := m.opts.Lock(path)
	m.lockErr = err
	if err != nil {
		m.lastError = err.Error()
		return false
	}
	if !fn() {
		_ = release()
		return false
	}
	m.unlock()
	m.release, m.lockedPath = release, path
	return true
}

func (m *Model) unlock() {
	if m.release == nil {
		return
	}
	if err := m.release(); err != nil {
		m.logger.Warn("lock_release_failed", slog.String("path", m.lockedPath), slog.Any("err", err))
	}
	m.release, m.lockedPath = nil, ""
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return aa == bb
}

// syncHosts keeps the host view on the selected route.
func (m *Model) syncHosts() {
	sel := m.session.Model().Selected()
	if m.hosts != nil && sel != nil && m.hosts.Route() == sel {
		return
	}
	if m.hosts != nil {
		m.hosts.Close()
		m.hosts = nil
	}
	if sel != nil {
		m.hosts = editor.NewHostView(sel)
	}
}

func (m *Model) watchedPath() string {
	if p := m.session.Path(); p != "" {
		return p
	}
	return m.target
}

// rewatch points the watcher at the current file.
func (m *Model) rewatch() tea.Cmd {
	path := m.watchedPath()
	if !m.opts.Watch || path == "" {
		m.stopWatch()
		return nil
	}
	if m.watcher != nil && samePath(m.watcher.Path(), path) {
		return nil
	}
	m.stopWatch()
	w, err := watch.New(path, watch.WithDebounce(m.opts.Debounce), watch.WithLogger(m.logger))
	if err != nil {
		m.logger.Warn("watch_disabled", slog.String("path", path), slog.Any("err", err))
		return nil
	}
	m.watcher = w
	return listenWatch(w)
}

func (m *Model) stopWatch() {
	if m.watcher == nil {
		return
	}
	_ = m.watcher.Close()
	m.watcher = nil
}

func listenWatch(w *watch.Watcher) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-w.Events()
		if !ok {
			return nil
		}
		return fileEventMsg{ev: ev, from: w}
	}
}

func (m *Model) handleFileEvent(msg fileEventMsg) tea.Cmd {
	if msg.from != m.watcher {
		return nil
	}
	name := filepath.Base(msg.ev.Path)
	changed, err := m.session.DiskChanged()
	switch {
	case err != nil && msg.ev.Removed():
		m.warning = fmt.Sprintf("%s was removed on disk", name)
	case err != nil:
		m.warning = err.Error()
	case changed:
		m.warning = fmt.Sprintf("%s changed on disk; saving will overwrite it", name)
	default:
		m.warning = ""
	}
	return listenWatch(m.watcher)
}
