package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuetzliches/routedit/internal/history"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "sqlite", s.History.Backend)
	assert.Equal(t, "history.db", filepath.Base(s.History.SQLitePath))
	assert.Equal(t, history.DefaultKeep, s.History.Keep)
	assert.True(t, s.Watch.Enabled)
	assert.Equal(t, 200*time.Millisecond, s.Watch.Debounce)
}

func TestLoadSettings_FileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
history:
  backend: postgres
  postgres_dsn: postgres://localhost/routedit
  keep: 5
watch:
  debounce: 1s
`), 0o644))

	s, err := LoadSettings(path, true)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "stderr", s.Log.Output, "unset keys keep their default")
	assert.Equal(t, "postgres", s.History.Backend)
	assert.Equal(t, 5, s.History.Keep)
	assert.Equal(t, time.Second, s.Watch.Debounce)
	assert.True(t, s.Watch.Enabled)
}

func TestLoadSettings_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	s, err := LoadSettings(path, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	_, err = LoadSettings(path, true)
	assert.Error(t, err)
}

func TestLoadSettings_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unclosed"), 0o644))
	_, err := LoadSettings(path, true)
	assert.ErrorContains(t, err, "parse settings")
}

func TestSettings_ApplyEnv(t *testing.T) {
	s := DefaultSettings()
	err := s.ApplyEnv(lookupMap(map[string]string{
		"ROUTEDIT_LOG_LEVEL":           " warn ",
		"ROUTEDIT_HISTORY_BACKEND":     "memory",
		"ROUTEDIT_HISTORY_KEEP":        "3",
		"ROUTEDIT_TRACING_ENDPOINT":    "http://collector:4318",
		"ROUTEDIT_TRACING_INSECURE":    "true",
		"ROUTEDIT_WATCH_ENABLED":       "false",
		"ROUTEDIT_WATCH_DEBOUNCE":      "50ms",
		"ROUTEDIT_HISTORY_SQLITE_PATH": "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "warn", s.Log.Level)
	assert.Equal(t, "memory", s.History.Backend)
	assert.Equal(t, 3, s.History.Keep)
	assert.Equal(t, "http://collector:4318", s.Tracing.Endpoint)
	assert.True(t, s.Tracing.Insecure)
	assert.False(t, s.Watch.Enabled)
	assert.Equal(t, 50*time.Millisecond, s.Watch.Debounce)
	assert.Equal(t, DefaultSettings().History.SQLitePath, s.History.SQLitePath, "blank values are ignored")
}

func TestSettings_ApplyEnvErrors(t *testing.T) {
	for _, tc := range []struct{ key, val string }{
		{"ROUTEDIT_HISTORY_KEEP", "many"},
		{"ROUTEDIT_WATCH_ENABLED", "perhaps"},
		{"ROUTEDIT_WATCH_DEBOUNCE", "soon"},
	} {
		t.Run(tc.key, func(t *testing.T) {
			err := DefaultSettings().ApplyEnv(lookupMap(map[string]string{tc.key: tc.val}))
			assert.ErrorContains(t, err, tc.key)
		})
	}
}

func TestSettings_Validate(t *testing.T) {
	cases := map[string]func(s *Settings){
		"log level":         func(s *Settings) { s.Log.Level = "loud" },
		"log output":        func(s *Settings) { s.Log.Output = "syslog" },
		"log file path":     func(s *Settings) { s.Log.Output = "file" },
		"backend":           func(s *Settings) { s.History.Backend = "redis" },
		"sqlite path":       func(s *Settings) { s.History.SQLitePath = " " },
		"postgres dsn":      func(s *Settings) { s.History.Backend = "postgres" },
		"negative keep":     func(s *Settings) { s.History.Keep = -1 },
		"negative debounce": func(s *Settings) { s.Watch.Debounce = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := DefaultSettings()
			mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestOpenHistory(t *testing.T) {
	store, err := openHistory(HistorySettings{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = openHistory(HistorySettings{Backend: "memory"})
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NoError(t, store.Close())

	store, err = openHistory(HistorySettings{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "h.db")})
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
