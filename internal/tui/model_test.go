package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuetzliches/routedit/internal/editor"
	"github.com/nuetzliches/routedit/internal/routeconfig"
)

const threeRoutes = `{
  "Routes": [
    {"UpstreamPathTemplate": "/a/b", "DownstreamPathTemplate": "/one", "DownstreamHostAndPorts": [{"Host": "h1", "Port": 81}]},
    {"UpstreamPathTemplate": "/a/c", "DownstreamPathTemplate": "/two", "DownstreamHostAndPorts": [{"Host": "h2", "Port": 82}]},
    {"UpstreamPathTemplate": "/x/y", "DownstreamPathTemplate": "/three", "DownstreamHostAndPorts": [{"Host": "h3", "Port": 83}]}
  ]
}
`

type fakeRecorder struct {
	paths []string
}

func (r *fakeRecorder) Record(_ context.Context, path string, _ []byte, _ int) error {
	r.paths = append(r.paths, path)
	return nil
}

type fakeLocks struct {
	held     map[string]bool
	acquired []string
	released []string
	fail     error
}

func (l *fakeLocks) lock(path string) (func() error, error) {
	if l.fail != nil {
		return nil, l.fail
	}
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	l.held[path] = true
	l.acquired = append(l.acquired, path)
	return func() error {
		delete(l.held, path)
		l.released = append(l.released, path)
		return nil
	}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestModel(t *testing.T, opts Options) *Model {
	t.Helper()
	opts.Logger = quietLogger()
	m := New(opts)
	t.Cleanup(m.Close)
	return m
}

func loaded(t *testing.T, opts Options) (*Model, string) {
	t.Helper()
	path := writeConfig(t, "ocelot.json", threeRoutes)
	m := newTestModel(t, opts)
	require.True(t, m.Load(path), m.LastError())
	return m, path
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+w":
		return tea.KeyMsg{Type: tea.KeyCtrlW}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	case "ctrl+o":
		return tea.KeyMsg{Type: tea.KeyCtrlO}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m *Model, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = m.Update(keyPress(k))
	}
	return cmd
}

// setField edits the focused field, replacing its value.
func setField(m *Model, value string) {
	press(m, "e")
	m.input.SetValue(value)
	press(m, "enter")
}

func upstreams(m *Model) []string {
	var out []string
	for _, r := range m.Session().Model().Routes() {
		out = append(out, r.UpstreamPathTemplate())
	}
	return out
}

func TestModel_AddRouteAndEditUpstream(t *testing.T) {
	m := newTestModel(t, Options{})
	before := m.Session().Model().Len()

	press(m, "a")
	model := m.Session().Model()
	require.Equal(t, before+1, model.Len())
	assert.Same(t, model.Routes()[before], model.Selected())

	press(m, "e")
	assert.Equal(t, inputField, m.mode)
	m.input.SetValue("/api/{everything}")
	press(m, "enter")
	assert.Equal(t, inputNone, m.mode)
	assert.Equal(t, "/api/{everything}", model.Selected().UpstreamPathTemplate())
	assert.True(t, m.Session().Dirty())
	assert.Contains(t, m.View(), "modified")
}

func TestModel_EscCancelsFieldEdit(t *testing.T) {
	m, _ := loaded(t, Options{})
	press(m, "e", "/changed", "esc")
	assert.Equal(t, "/a/b", m.Session().Model().Selected().UpstreamPathTemplate())
	assert.False(t, m.Session().Dirty())
}

func TestModel_DeleteAsksFirst(t *testing.T) {
	m, _ := loaded(t, Options{})

	press(m, "x")
	require.NotNil(t, m.confirm)
	assert.Equal(t, editor.MsgDeleteRoute, m.confirm.message)
	assert.Contains(t, m.View(), editor.MsgDeleteRoute)
	press(m, "n")
	assert.Nil(t, m.confirm)
	assert.Equal(t, 3, m.Session().Model().Len())

	press(m, "x", "y")
	assert.Equal(t, []string{"/a/c", "/x/y"}, upstreams(m))
	assert.True(t, m.Session().Dirty())
}

func TestModel_NavigateAndMove(t *testing.T) {
	m, _ := loaded(t, Options{})
	model := m.Session().Model()

	press(m, "k")
	assert.Equal(t, "/a/b", model.Selected().UpstreamPathTemplate(), "cursor stops at the top")
	press(m, "j")
	assert.Equal(t, "/a/c", model.Selected().UpstreamPathTemplate())

	press(m, "K")
	assert.Equal(t, []string{"/a/c", "/a/b", "/x/y"}, upstreams(m))
	assert.False(t, m.gate.Enabled(editor.CmdMoveRouteUp))

	press(m, "K")
	assert.Equal(t, []string{"/a/c", "/a/b", "/x/y"}, upstreams(m), "disabled command is a no-op")
	assert.Empty(t, m.LastError())

	press(m, "c")
	require.Equal(t, 4, model.Len())
	assert.Equal(t, "/a/c", model.Routes()[1].UpstreamPathTemplate())
	assert.Same(t, model.Routes()[1], model.Selected())
}

func TestModel_FilterIsLiveAndEscClears(t *testing.T) {
	m, _ := loaded(t, Options{})

	press(m, "/", "a/")
	assert.Equal(t, inputFilterUpstream, m.mode)
	assert.Equal(t, 2, m.routes.Len())
	assert.Contains(t, m.View(), "Routes (2/3)")

	press(m, "enter")
	assert.Equal(t, "a/", m.routes.UpstreamFilter())

	press(m, "\\", "three")
	assert.Equal(t, 0, m.routes.Len())
	press(m, "esc")
	assert.Equal(t, "", m.routes.DownstreamFilter())
	assert.Equal(t, 2, m.routes.Len())
	assert.False(t, m.Session().Dirty(), "filtering is not an edit")
}

func TestModel_Scopes(t *testing.T) {
	m, _ := loaded(t, Options{})
	auth := m.Session().Model().Selected().Auth()

	press(m, "s", "read")
	assert.Equal(t, "read", auth.PendingScope())
	assert.True(t, m.gate.Enabled(editor.CmdAddScope))
	press(m, "enter")
	assert.Equal(t, []string{"read"}, auth.Scopes())
	assert.Equal(t, "", auth.PendingScope())

	press(m, "s", "read", "enter")
	assert.Equal(t, editor.ErrDuplicateScope.Error(), m.LastError())
	assert.Equal(t, []string{"read"}, auth.Scopes())

	assert.Equal(t, fieldScopes, m.field)
	press(m, "]")
	cur, ok := auth.SelectedScope()
	require.True(t, ok)
	assert.Equal(t, "read", cur)
	press(m, "S")
	assert.Empty(t, auth.Scopes())
}

func TestModel_HostsAndMethods(t *testing.T) {
	m, _ := loaded(t, Options{})
	r := m.Session().Model().Selected()

	press(m, "h")
	require.Len(t, r.Hosts(), 2)
	assert.Equal(t, fieldHost, m.field)
	setField(m, "backend")
	press(m, "tab")
	setField(m, "8080")
	h := r.SelectedHost()
	require.NotNil(t, h)
	assert.Equal(t, "backend", h.Host())
	assert.Equal(t, 8080, h.Port())

	press(m, "H")
	assert.Len(t, r.Hosts(), 1)
	assert.Nil(t, r.SelectedHost())

	m.field = fieldMethods
	method := m.Session().Model().MethodOptions()[0]
	was := r.MethodSelected(method)
	press(m, "m")
	assert.Equal(t, !was, r.MethodSelected(method))
}

func TestModel_SaveWritesFileAndRecords(t *testing.T) {
	rec := &fakeRecorder{}
	m, path := loaded(t, Options{Recorder: rec})

	press(m, "tab", "tab")
	setField(m, "https")
	require.True(t, m.Session().Dirty())
	press(m, "ctrl+s")

	assert.False(t, m.Session().Dirty())
	assert.Equal(t, editor.StatusSaved, m.Session().Status())
	assert.Equal(t, []string{path}, rec.paths)

	doc, _, err := routeconfig.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "https", doc.Routes[0].DownstreamScheme)
}

func TestModel_SaveGateFailureIsShown(t *testing.T) {
	m, path := loaded(t, Options{})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	setField(m, "")
	press(m, "ctrl+s")
	assert.Equal(t, routeconfig.MsgInvalidRoutes, m.LastError())
	assert.True(t, m.Session().Dirty())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestModel_SaveAsMovesLock(t *testing.T) {
	locks := &fakeLocks{}
	m, path := loaded(t, Options{Lock: locks.lock})
	require.Equal(t, []string{path}, locks.acquired)

	target := filepath.Join(t.TempDir(), "copy.json")
	press(m, "ctrl+w")
	assert.Equal(t, inputSavePath, m.mode)
	m.input.SetValue(target)
	press(m, "enter")

	assert.Equal(t, target, m.Session().Path())
	assert.Equal(t, []string{path, target}, locks.acquired)
	assert.Equal(t, []string{path}, locks.released)
	_, err := os.Stat(target)
	require.NoError(t, err)
}

func TestModel_LockFailureKeepsDocument(t *testing.T) {
	locks := &fakeLocks{}
	m, path := loaded(t, Options{Lock: locks.lock})

	other := writeConfig(t, "other.json", `{"Routes":[{"UpstreamPathTemplate":"/o","DownstreamPathTemplate":"/o"}]}`)
	locks.fail = errors.New("held by pid 42")
	assert.False(t, m.Load(other))
	assert.Equal(t, "held by pid 42", m.LastError())
	assert.ErrorIs(t, m.failure(), locks.fail)
	assert.Equal(t, path, m.Session().Path())
	assert.Equal(t, 3, m.Session().Model().Len())
}

func TestModel_OpenAsksWhenDirty(t *testing.T) {
	m, _ := loaded(t, Options{})
	other := writeConfig(t, "other.json", `{"Routes":[{"UpstreamPathTemplate":"/o","DownstreamPathTemplate":"/o"}]}`)

	press(m, "c")
	require.True(t, m.Session().Dirty())
	press(m, "ctrl+o")
	m.input.SetValue(other)
	press(m, "enter")
	require.NotNil(t, m.confirm)
	assert.Equal(t, editor.MsgDiscardChanges, m.confirm.message)

	press(m, "y")
	assert.Equal(t, other, m.Session().Path())
	assert.Equal(t, []string{"/o"}, upstreams(m))
	assert.False(t, m.Session().Dirty())
}

func TestModel_QuitConfirmsDiscard(t *testing.T) {
	m, _ := loaded(t, Options{})
	cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	press(m, "c", "q")
	require.NotNil(t, m.confirm)
	cmd = press(m, "y")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_NewDropsPathAndLock(t *testing.T) {
	locks := &fakeLocks{}
	m, path := loaded(t, Options{Lock: locks.lock})

	press(m, "ctrl+n")
	assert.Equal(t, "", m.Session().Path())
	assert.Equal(t, editor.StatusNew, m.Session().Status())
	assert.Equal(t, []string{path}, locks.released)
	assert.Contains(t, m.View(), "untitled")
}

func TestModel_TargetSavesWithoutPrompt(t *testing.T) {
	m := newTestModel(t, Options{})
	path := filepath.Join(t.TempDir(), "new.json")
	require.True(t, m.Target(path))

	setField(m, "/in")
	press(m, "tab")
	setField(m, "/out")
	press(m, "ctrl+s")
	assert.Equal(t, inputNone, m.mode)
	assert.Equal(t, path, m.Session().Path(), m.LastError())
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestModel_DiffPane(t *testing.T) {
	m, _ := loaded(t, Options{})
	press(m, "d")
	assert.Contains(t, m.View(), "no unsaved changes")

	setField(m, "/renamed")
	view := m.View()
	assert.Contains(t, view, "/renamed")
	assert.Contains(t, view, "(edited)")
}

func TestModel_WatchReportsExternalChange(t *testing.T) {
	m, path := loaded(t, Options{Watch: true, Debounce: 20 * time.Millisecond})
	cmd := m.Init()
	require.NotNil(t, cmd)

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(threeRoutes, "/one", "/uno", 1)), 0o644))

	got := make(chan tea.Msg, 1)
	go func() { got <- cmd() }()
	select {
	case msg := <-got:
		_, next := m.Update(msg)
		assert.NotNil(t, next)
	case <-time.After(5 * time.Second):
		t.Fatalf("no file event")
	}
	assert.Contains(t, m.warning, "changed on disk")
}
