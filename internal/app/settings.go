package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nuetzliches/routedit/internal/history"
)

// Settings is the user-level configuration of routedit.
type Settings struct {
	Log     LogSettings     `yaml:"log"`
	History HistorySettings `yaml:"history"`
	Tracing TracingSettings `yaml:"tracing"`
	Watch   WatchSettings   `yaml:"watch"`
}

type LogSettings struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Output is stderr, stdout or file. The editor never logs to the
	// terminal it draws on; use file to keep its logs.
	Output string `yaml:"output"`
	Path   string `yaml:"path"`
}

type HistorySettings struct {
	// Backend is none, memory, sqlite or postgres.
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	// Keep bounds the revisions kept per file; 0 keeps everything.
	Keep int `yaml:"keep"`
}

type TracingSettings struct {
	// Endpoint is an OTLP/HTTP collector URL. Tracing is off when empty.
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

type WatchSettings struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

func DefaultSettings() *Settings {
	return &Settings{
		Log: LogSettings{
			Level:  "info",
			Output: "stderr",
		},
		History: HistorySettings{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(userDir(), "history.db"),
			Keep:       history.DefaultKeep,
		},
		Watch: WatchSettings{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
	}
}

// DefaultSettingsPath is settings.yaml in the per-user config directory.
func DefaultSettingsPath() string {
	return filepath.Join(userDir(), "settings.yaml")
}

func userDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".routedit"
	}
	return filepath.Join(dir, "routedit")
}

// LoadSettings reads path over the defaults. A missing file is only an error
// when required is set.
func LoadSettings(path string, required bool) (*Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return s, nil
}

// ApplyEnv overrides settings from ROUTEDIT_* variables.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ROUTEDIT_LOG_LEVEL", &s.Log.Level)
	str("ROUTEDIT_LOG_OUTPUT", &s.Log.Output)
	str("ROUTEDIT_LOG_PATH", &s.Log.Path)
	str("ROUTEDIT_HISTORY_BACKEND", &s.History.Backend)
	str("ROUTEDIT_HISTORY_SQLITE_PATH", &s.History.SQLitePath)
	str("ROUTEDIT_HISTORY_POSTGRES_DSN", &s.History.PostgresDSN)
	str("ROUTEDIT_TRACING_ENDPOINT", &s.Tracing.Endpoint)

	if v, ok := lookup("ROUTEDIT_HISTORY_KEEP"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ROUTEDIT_HISTORY_KEEP: %w", err)
		}
		s.History.Keep = n
	}
	for key, dst := range map[string]*bool{
		"ROUTEDIT_TRACING_INSECURE": &s.Tracing.Insecure,
		"ROUTEDIT_WATCH_ENABLED":    &s.Watch.Enabled,
	} {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	if v, ok := lookup("ROUTEDIT_WATCH_DEBOUNCE"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ROUTEDIT_WATCH_DEBOUNCE: %w", err)
		}
		s.Watch.Debounce = d
	}
	return nil
}

func (s *Settings) Validate() error {
	if _, err := parseLogLevel(s.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(s.Log.Output) {
	case "", "stderr", "stdout":
	case "file":
		if strings.TrimSpace(s.Log.Path) == "" {
			return errors.New("log.path is required when log.output is file")
		}
	default:
		return fmt.Errorf("log.output %q must be stderr, stdout or file", s.Log.Output)
	}

	switch strings.ToLower(s.History.Backend) {
	case "", "none", "memory":
	case "sqlite":
		if strings.TrimSpace(s.History.SQLitePath) == "" {
			return errors.New("history.sqlite_path is required for the sqlite backend")
		}
	case "postgres":
		if strings.TrimSpace(s.History.PostgresDSN) == "" {
			return errors.New("history.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("history.backend %q must be none, memory, sqlite or postgres", s.History.Backend)
	}
	if s.History.Keep < 0 {
		return errors.New("history.keep must not be negative")
	}
	if s.Watch.Debounce < 0 {
		return errors.New("watch.debounce must not be negative")
	}
	return nil
}

// openHistory returns nil when history is disabled.
func openHistory(h HistorySettings) (history.Store, error) {
	switch strings.ToLower(h.Backend) {
	case "", "none":
		return nil, nil
	case "memory":
		return history.NewMemoryStore(), nil
	case "sqlite":
		return history.NewSQLiteStore(h.SQLitePath)
	case "postgres":
		return history.NewPostgresStore(h.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown history backend %q", h.Backend)
	}
}
