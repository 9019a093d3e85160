package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, w *Watcher, timeout time.Duration) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		return ev, ok
	case <-time.After(timeout):
		return Event{}, false
	}
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ocelot.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	w, err := New(path, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{"routes":[]}`), 0o644))
	}

	ev, ok := waitEvent(t, w, 3*time.Second)
	require.True(t, ok, "expected an event")
	assert.Equal(t, w.Path(), ev.Path)
	assert.NotZero(t, ev.Op)

	_, ok = waitEvent(t, w, 300*time.Millisecond)
	assert.False(t, ok, "burst must produce a single event")
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ocelot.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	w, err := New(path, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644))
	_, ok := waitEvent(t, w, 300*time.Millisecond)
	assert.False(t, ok)
}

func TestWatcher_SeesAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ocelot.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	w, err := New(path, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	tmp := filepath.Join(dir, ".ocelot.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{"routes":[]}`), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	_, ok := waitEvent(t, w, 3*time.Second)
	assert.True(t, ok)
}

func TestWatcher_CloseClosesEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocelot.json")
	w, err := New(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(" ")
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "missing", "ocelot.json"))
	assert.Error(t, err)
}
